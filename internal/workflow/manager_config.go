package workflow

import (
	"time"

	"github.com/703deuce/upscale/internal/queue"
)

// ConfigureStages registers the concrete stage handlers the workflow will run.
//
// The intake lane claims pending items so downloads overlap frame processing;
// the processing lane runs extraction through remux and keeps accelerator use
// serialized on a single goroutine.
func (m *Manager) ConfigureStages(set StageSet) {
	intake := &laneState{kind: laneIntake, name: string(laneIntake)}
	processing := &laneState{kind: laneProcessing, name: string(laneProcessing)}

	if set.Fetcher != nil {
		intake.stages = append(intake.stages, pipelineStage{
			name:             "intake",
			handler:          set.Fetcher,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusFetching,
			doneStatus:       queue.StatusFetched,
			timeout:          stageTimeout(m.cfg.Workflow.FetchTimeout),
		})
	}
	if set.Extractor != nil {
		processing.stages = append(processing.stages, pipelineStage{
			name:             "extraction",
			handler:          set.Extractor,
			startStatus:      queue.StatusFetched,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusExtracted,
			timeout:          stageTimeout(m.cfg.Workflow.ExtractTimeout),
		})
	}
	if set.Upscaler != nil {
		processing.stages = append(processing.stages, pipelineStage{
			name:             "upscaling",
			handler:          set.Upscaler,
			startStatus:      queue.StatusExtracted,
			processingStatus: queue.StatusUpscaling,
			doneStatus:       queue.StatusUpscaled,
			timeout:          stageTimeout(m.cfg.Workflow.UpscaleTimeout),
		})
	}
	if set.Assembler != nil {
		processing.stages = append(processing.stages, pipelineStage{
			name:             "assembly",
			handler:          set.Assembler,
			startStatus:      queue.StatusUpscaled,
			processingStatus: queue.StatusEncoding,
			doneStatus:       queue.StatusEncoded,
			timeout:          stageTimeout(m.cfg.Workflow.EncodeTimeout),
		})
	}
	if set.Remuxer != nil {
		processing.stages = append(processing.stages, pipelineStage{
			name:             "remux",
			handler:          set.Remuxer,
			startStatus:      queue.StatusEncoded,
			processingStatus: queue.StatusRemuxing,
			doneStatus:       queue.StatusCompleted,
			timeout:          stageTimeout(m.cfg.Workflow.RemuxTimeout),
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(intake.stages) > 0 {
		intake.finalize()
		lanes[intake.kind] = intake
		order = append(order, intake.kind)
	}
	if len(processing.stages) > 0 {
		processing.finalize()
		lanes[processing.kind] = processing
		order = append(order, processing.kind)
	}

	for _, lane := range lanes {
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}

// stageTimeout converts a configured timeout in seconds into a duration.
// Zero or negative disables the deadline.
func stageTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
