// Package events handles event emission for pipeline run lifecycle changes.
// Emission is best-effort: a publish failure is logged and never fails the run.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter publishes run lifecycle events. A nil Emitter is valid and emits
// nothing, so callers never need an enabled/disabled branch.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunStarted emits a run.started event
func (e *Emitter) EmitRunStarted(ctx context.Context, runID string) {
	e.emit(ctx, &kafka.RunEvent{
		EventType: "run.started",
		RunID:     runID,
	})
}

// EmitStage emits a run.stage event as the pipeline enters a stage
func (e *Emitter) EmitStage(ctx context.Context, runID string, stage string) {
	e.emit(ctx, &kafka.RunEvent{
		EventType: "run.stage",
		RunID:     runID,
		Stage:     stage,
	})
}

// EmitRunCompleted emits a run.completed event with the final counts
func (e *Emitter) EmitRunCompleted(ctx context.Context, runID string, report *models.RunReport) {
	nodeCounts := make(map[string]int, len(report.Nodes.Counts))
	for label, count := range report.Nodes.Counts {
		nodeCounts[string(label)] = count
	}
	relCounts := make(map[string]int, len(report.Relationships.Counts))
	for relType, count := range report.Relationships.Counts {
		relCounts[string(relType)] = count
	}

	e.emit(ctx, &kafka.RunEvent{
		EventType:          "run.completed",
		RunID:              runID,
		NodeCounts:         nodeCounts,
		RelationshipCounts: relCounts,
		Warnings:           len(report.Warnings),
	})
}

// EmitRunFailed emits a run.failed event with the failing stage and cause
func (e *Emitter) EmitRunFailed(ctx context.Context, runID string, stage string, runErr error) {
	e.emit(ctx, &kafka.RunEvent{
		EventType: "run.failed",
		RunID:     runID,
		Stage:     stage,
		Error:     runErr.Error(),
	})
}

func (e *Emitter) emit(ctx context.Context, event *kafka.RunEvent) {
	if e == nil || e.producer == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", event.EventType).Error("Failed to emit run event")
	}
}
