// Package pipeline sequences one full ETL run: wait for dependencies, apply
// the graph schema, extract, transform, then load nodes and relationships.
// Every step is blocking and strictly ordered; a failure short-circuits the
// rest of the run with no compensating actions.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/transformer"
)

// CompletionMarker is printed exactly once at the end of a successful run.
// The end-to-end checker keys off this line; do not reword it.
const CompletionMarker = "ETL process completed successfully."

// State tracks a run through its fixed sequence of stages.
type State string

const (
	StateIdle                   State = "Idle"
	StateWaitingForDependencies State = "WaitingForDependencies"
	StateSchemaReady            State = "SchemaReady"
	StateExtracted              State = "Extracted"
	StateTransformed            State = "Transformed"
	StateNodesLoaded            State = "NodesLoaded"
	StateRelationshipsLoaded    State = "RelationshipsLoaded"
	StateComplete               State = "Complete"
	StateFailed                 State = "Failed"
)

// transitions holds the only legal predecessor for each state. No state is
// skipped and none is revisited within a run; Failed is reachable from any
// non-terminal state.
var transitions = map[State]State{
	StateWaitingForDependencies: StateIdle,
	StateSchemaReady:            StateWaitingForDependencies,
	StateExtracted:              StateSchemaReady,
	StateTransformed:            StateExtracted,
	StateNodesLoaded:            StateTransformed,
	StateRelationshipsLoaded:    StateNodesLoaded,
	StateComplete:               StateRelationshipsLoaded,
}

// Extractor reads the relational store.
type Extractor interface {
	ExtractAll(ctx context.Context) (*models.SourceTables, error)
}

// SchemaInitializer applies constraints and indexes to the graph store.
type SchemaInitializer interface {
	Apply(ctx context.Context) error
}

// Loader applies the graph model to the store in idempotent batches.
type Loader interface {
	LoadNodes(ctx context.Context, nodes []models.Node) (models.NodeLoadStats, error)
	LoadRelationships(ctx context.Context, rels []models.Relationship) (models.RelationshipLoadStats, error)
}

// Dependency is an external store the run must wait for before any work.
type Dependency struct {
	Name  string
	Probe startup.Probe
}

// Config holds orchestration settings.
type Config struct {
	MaxAttempts   int
	RetryInterval time.Duration
}

// Pipeline owns one run at a time. It is not safe for concurrent runs; run a
// single instance.
type Pipeline struct {
	cfg          Config
	logger       ectologger.Logger
	dependencies []Dependency
	schema       SchemaInitializer
	extractor    Extractor
	transformer  *transformer.Transformer
	loader       Loader
	emitter      *events.Emitter

	state State
}

// New creates a new pipeline. emitter may be nil when run events are disabled.
func New(
	logger ectologger.Logger,
	cfg Config,
	dependencies []Dependency,
	schema SchemaInitializer,
	extractor Extractor,
	transform *transformer.Transformer,
	loader Loader,
	emitter *events.Emitter,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		logger:       logger,
		dependencies: dependencies,
		schema:       schema,
		extractor:    extractor,
		transformer:  transform,
		loader:       loader,
		emitter:      emitter,
		state:        StateIdle,
	}
}

// State returns the current run state.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes one full ETL run and returns its completion report. On error
// the returned report is nil, the state is Failed, and already-committed
// batches stay committed; re-invoking the run reconciles them safely because
// every write is an idempotent merge.
func (p *Pipeline) Run(ctx context.Context) (*models.RunReport, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.Run")
	defer span.End()

	runID := uuid.New().String()
	start := time.Now()
	log := p.logger.WithContext(ctx).WithField("run_id", runID)

	p.state = StateIdle
	p.emitter.EmitRunStarted(ctx, runID)
	log.Info("Starting ETL run")

	if err := p.transition(ctx, runID, StateWaitingForDependencies); err != nil {
		return nil, p.fail(ctx, log, runID, "readiness", err)
	}
	stageStart := time.Now()
	for _, dep := range p.dependencies {
		if err := startup.WaitUntilReady(ctx, p.logger, dep.Name, dep.Probe, p.cfg.MaxAttempts, p.cfg.RetryInterval); err != nil {
			return nil, p.fail(ctx, log, runID, "readiness", err)
		}
	}
	metrics.StageDuration.WithLabelValues("readiness").Observe(time.Since(stageStart).Seconds())

	if err := p.transition(ctx, runID, StateSchemaReady); err != nil {
		return nil, p.fail(ctx, log, runID, "schema", err)
	}
	stageStart = time.Now()
	if err := p.schema.Apply(ctx); err != nil {
		return nil, p.fail(ctx, log, runID, "schema", err)
	}
	metrics.StageDuration.WithLabelValues("schema").Observe(time.Since(stageStart).Seconds())

	if err := p.transition(ctx, runID, StateExtracted); err != nil {
		return nil, p.fail(ctx, log, runID, "extract", err)
	}
	stageStart = time.Now()
	tables, err := p.extractor.ExtractAll(ctx)
	if err != nil {
		return nil, p.fail(ctx, log, runID, "extract", err)
	}
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(stageStart).Seconds())

	if err := p.transition(ctx, runID, StateTransformed); err != nil {
		return nil, p.fail(ctx, log, runID, "transform", err)
	}
	stageStart = time.Now()
	model, warnings := p.transformer.Transform(tables)
	metrics.StageDuration.WithLabelValues("transform").Observe(time.Since(stageStart).Seconds())
	log.WithFields(map[string]any{
		"nodes":         len(model.Nodes),
		"relationships": len(model.Relationships),
		"warnings":      len(warnings),
	}).Info("Transformed source tables into graph model")

	if err := p.transition(ctx, runID, StateNodesLoaded); err != nil {
		return nil, p.fail(ctx, log, runID, "load-nodes", err)
	}
	stageStart = time.Now()
	nodeStats, err := p.loader.LoadNodes(ctx, model.Nodes)
	if err != nil {
		return nil, p.fail(ctx, log, runID, "load-nodes", err)
	}
	metrics.StageDuration.WithLabelValues("load-nodes").Observe(time.Since(stageStart).Seconds())

	if err := p.transition(ctx, runID, StateRelationshipsLoaded); err != nil {
		return nil, p.fail(ctx, log, runID, "load-relationships", err)
	}
	stageStart = time.Now()
	relStats, err := p.loader.LoadRelationships(ctx, model.Relationships)
	if err != nil {
		return nil, p.fail(ctx, log, runID, "load-relationships", err)
	}
	metrics.StageDuration.WithLabelValues("load-relationships").Observe(time.Since(stageStart).Seconds())

	if err := p.transition(ctx, runID, StateComplete); err != nil {
		return nil, p.fail(ctx, log, runID, "complete", err)
	}

	report := &models.RunReport{
		RunID:         runID,
		Nodes:         nodeStats,
		Relationships: relStats,
		Warnings:      warnings,
		Elapsed:       time.Since(start),
	}

	metrics.RunsTotal.WithLabelValues("success").Inc()
	p.emitter.EmitRunCompleted(ctx, runID, report)
	log.WithFields(map[string]any{
		"nodes":         report.Nodes.Total(),
		"relationships": report.Relationships.Total(),
		"elapsed":       report.Elapsed.String(),
	}).Info("ETL run complete")

	return report, nil
}

// transition advances the state machine, rejecting any out-of-order move.
func (p *Pipeline) transition(ctx context.Context, runID string, next State) error {
	expected, ok := transitions[next]
	if !ok || p.state != expected {
		return fmt.Errorf("illegal state transition from %s to %s", p.state, next)
	}
	p.state = next
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": runID,
		"state":  string(next),
	}).Debug("Pipeline state changed")
	p.emitter.EmitStage(ctx, runID, string(next))
	return nil
}

// fail marks the run failed and wraps the cause with its stage.
func (p *Pipeline) fail(ctx context.Context, log ectologger.Logger, runID string, stage string, err error) error {
	p.state = StateFailed
	metrics.RunsTotal.WithLabelValues("failed").Inc()
	p.emitter.EmitRunFailed(ctx, runID, stage, err)
	log.WithError(err).WithField("stage", stage).Error("ETL run failed")
	return fmt.Errorf("%s stage failed: %w", stage, err)
}
