package agentrt

import (
	"context"

	"github.com/fluxgraph/workflow-core/broker"
	"github.com/fluxgraph/workflow-core/coreerr"
	"github.com/fluxgraph/workflow-core/coretypes"
	"github.com/fluxgraph/workflow-core/telemetry"
)

// Broker is the subset of broker.Broker the runtime needs. Declared as an
// interface so tests can substitute a stub without standing up a full
// Context Broker.
type Broker interface {
	GetContext(ctx context.Context, agentDID string, credentials coretypes.Credentials) (coretypes.ContextView, error)
	Traverse(ctx context.Context, contextID, affordanceID string, parameters map[string]any, credentials coretypes.Credentials) broker.TraverseOutcome
}

// Options configures one Agent Runtime instance.
type Options struct {
	ID            string
	DID           string
	AATID         string
	Credentials   coretypes.Credentials
	Reasoner      Reasoner
	Broker        Broker
	MaxIterations int
	SystemPrompt  string
	Logger        telemetry.Logger
	Tracer        telemetry.Tracer
}

const defaultMaxIterations = 10

// Runtime is the per-agent decision/traversal loop of spec.md §4.5.
type Runtime struct {
	id            string
	did           string
	aatID         string
	credentials   coretypes.Credentials
	reasoner      Reasoner
	broker        Broker
	maxIterations int
	systemPrompt  string
	logger        telemetry.Logger
	tracer        telemetry.Tracer

	actionHistory []ActionRecord
}

// New builds an Agent Runtime.
func New(opts Options) *Runtime {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Runtime{
		id:            opts.ID,
		did:           opts.DID,
		aatID:         opts.AATID,
		credentials:   opts.Credentials,
		reasoner:      opts.Reasoner,
		broker:        opts.Broker,
		maxIterations: maxIter,
		systemPrompt:  opts.SystemPrompt,
		logger:        logger,
		tracer:        tracer,
	}
}

// Run executes the decision loop for one task, terminating with a
// TaskResult once a terminal action is observed, the loop runs out of
// iterations, or the agent transitions to waiting for a missing credential.
func (r *Runtime) Run(ctx context.Context, task coretypes.Task) TaskResult {
	ctx, span := r.tracer.StartSpan(ctx, "agentrt.run")
	defer span.End()

	l := &loop{rt: r, task: task}
	return l.run(ctx)
}
