// Package preflight provides readiness checks for the external tools,
// directories, and model weights the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs a warning for each failed
//     check. Failures do not block startup; a job that hits a missing
//     dependency fails individually with a clearer message.
//   - The CLI "upscale status" command uses CheckSystemDeps and ProbeModels
//     to display tool and model availability.
//
// Checks gated by configuration are skipped when the feature is off.
package preflight
