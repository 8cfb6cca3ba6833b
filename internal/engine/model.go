package engine

import (
	"path/filepath"
	"sort"
	"strings"
)

// Spec describes one supported super-resolution model.
type Spec struct {
	// Name is the model identifier jobs select by.
	Name string
	// Ratio is the network's fixed native upscale ratio. Inference always
	// multiplies tile dimensions by this; the requested scale factor is
	// reached by resampling afterwards.
	Ratio int
}

var models = map[string]Spec{
	"realesr-animevideov3": {Name: "realesr-animevideov3", Ratio: 4},
	"realesrgan-x2plus":    {Name: "realesrgan-x2plus", Ratio: 2},
}

// Lookup returns the spec for a model name.
func Lookup(name string) (Spec, bool) {
	spec, ok := models[strings.TrimSpace(name)]
	return spec, ok
}

// Names lists the supported model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WeightsPath returns the weights file for a model under the weights
// directory. Weights are read-only from the pipeline's perspective.
func WeightsPath(weightsDir, model string) string {
	return filepath.Join(weightsDir, model+".pth")
}
