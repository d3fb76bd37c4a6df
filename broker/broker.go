// Package broker implements the Context Broker: it issues single-use
// ContextViews to agents and mediates every action an agent takes against
// that view, running parameter validation, policy evaluation, and the
// registered effect handler before writing a trace.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/fluxgraph/workflow-core/aat"
	"github.com/fluxgraph/workflow-core/coreerr"
	"github.com/fluxgraph/workflow-core/coretypes"
	"github.com/fluxgraph/workflow-core/ids"
	"github.com/fluxgraph/workflow-core/policy"
	"github.com/fluxgraph/workflow-core/provenance"
	"github.com/fluxgraph/workflow-core/telemetry"
	"github.com/fluxgraph/workflow-core/validator"
)

// EffectResult is what an effect handler returns after performing the
// side effect associated with one actionType.
type EffectResult struct {
	ResultType    string
	StateChanges  []string
	EventsEmitted []string
	Output        map[string]any
}

// EffectHandler executes the real-world consequence of traversing an
// affordance. Handlers are registered per actionType; TRAVERSE invokes the
// one matching the traversed affordance's actionType.
type EffectHandler func(ctx context.Context, agentDID string, affordance coretypes.Affordance, params map[string]any) (EffectResult, error)

// ViewSource supplies the raw material GET-CONTEXT assembles into a
// ContextView: the affordances visible to an agentType (already filtered by
// AAT action-space and required credentials is the broker's job, not the
// source's), the constraints active for a scope, and the structural
// requirement (if any) for that AAT.
type ViewSource interface {
	AffordancesFor(agentType string) []coretypes.Affordance
	ConstraintsFor(scope string) []coretypes.Constraint
	ScopeFor(agentDID string, credentials coretypes.Credentials) string
}

// TraverseOutcome is what TRAVERSE returns to its caller.
type TraverseOutcome struct {
	Success bool
	TraceID string
	Result  map[string]any
	Err     error
}

// Options configures a Broker.
type Options struct {
	AATRegistry    *aat.Registry
	Policy         *policy.Engine
	Traces         provenance.Store
	Validator      validator.ParamValidator
	ViewSource     ViewSource
	ViewTTL        time.Duration
	Logger         telemetry.Logger
	Tracer         telemetry.Tracer
	SchemaRefFor   func(actionType string) string
	Clock          func() time.Time
}

const defaultViewTTL = 5 * time.Minute

// Broker implements GET-CONTEXT and TRAVERSE.
type Broker struct {
	aatRegistry *aat.Registry
	policy      *policy.Engine
	traces      provenance.Store
	validate    validator.ParamValidator
	source      ViewSource
	viewTTL     time.Duration
	logger      telemetry.Logger
	tracer      telemetry.Tracer
	schemaRefFor func(actionType string) string
	clock       func() time.Time

	mu       sync.Mutex
	views    map[string]coretypes.ContextView
	handlers map[string]EffectHandler
}

// New builds a Broker from Options.
func New(opts Options) *Broker {
	ttl := opts.ViewTTL
	if ttl <= 0 {
		ttl = defaultViewTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Broker{
		aatRegistry:  opts.AATRegistry,
		policy:       opts.Policy,
		traces:       opts.Traces,
		validate:     opts.Validator,
		source:       opts.ViewSource,
		viewTTL:      ttl,
		logger:       logger,
		tracer:       tracer,
		schemaRefFor: opts.SchemaRefFor,
		clock:        clock,
		views:        make(map[string]coretypes.ContextView),
		handlers:     make(map[string]EffectHandler),
	}
}

// RegisterEffectHandler wires the handler executing actionType's real-world
// consequence. Registering a handler for an actionType that already has one
// replaces it.
func (b *Broker) RegisterEffectHandler(actionType string, h EffectHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[actionType] = h
}

// GetContext implements GET-CONTEXT.
func (b *Broker) GetContext(ctx context.Context, agentDID string, credentials coretypes.Credentials) (coretypes.ContextView, error) {
	ctx, span := b.tracer.StartSpan(ctx, "broker.get_context")
	defer span.End()

	agentType := credentials.AgentType
	scope := b.source.ScopeFor(agentDID, credentials)
	candidates := b.source.AffordancesFor(agentType)

	var aatDef *aat.AAT
	if b.aatRegistry != nil {
		aatDef = b.aatRegistry.GetAAT(agentType)
	}

	affordances := make([]coretypes.Affordance, 0, len(candidates))
	for _, a := range candidates {
		if b.aatRegistry != nil && aatDef == nil {
			continue // unknown AAT forbids everything
		}
		if b.aatRegistry != nil && !b.aatRegistry.IsActionAllowed(agentType, aat.ActionType(a.ActionType)) {
			continue
		}
		if !credentials.Satisfies(a.RequiresCredential) {
			continue
		}
		affordances = append(affordances, a)
	}

	view := coretypes.ContextView{
		ID:                  ids.NewPrefixed("view"),
		AgentDID:            agentDID,
		AgentType:           agentType,
		Timestamp:           b.clock(),
		ExpiresAt:           b.clock().Add(b.viewTTL),
		Nonce:               ids.New(),
		Scope:               scope,
		VerifiedCredentials: credentials.Grants,
		Constraints:         b.source.ConstraintsFor(scope),
		Affordances:         affordances,
	}

	if b.aatRegistry != nil {
		if action := b.aatRegistry.GetRequiredOutputAction(agentType); action != "" {
			view.StructuralReqs = &coretypes.StructuralRequirements{RequiredOutputAction: string(action)}
		}
	}

	b.mu.Lock()
	b.views[view.ID] = view
	b.mu.Unlock()

	return view, nil
}

// Traverse implements TRAVERSE.
func (b *Broker) Traverse(ctx context.Context, contextID, affordanceID string, parameters map[string]any, credentials coretypes.Credentials) TraverseOutcome {
	ctx, span := b.tracer.StartSpan(ctx, "broker.traverse")
	defer span.End()

	started := b.clock()

	view, ok := b.lookupView(contextID)
	if !ok {
		return b.fail(ctx, started, view, "", parameters, credentials, coreerr.New(coreerr.KindContextExpired, "context id is unknown"))
	}
	if view.Expired(b.clock()) {
		return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindContextExpired, "context view has expired"))
	}

	affordance, ok := view.Affordance(affordanceID)
	if !ok {
		return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindAffordanceUnknown, "affordance not present in view"))
	}
	if !affordance.Enabled {
		return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindAffordanceDisabled, "affordance is disabled"))
	}
	if b.aatRegistry != nil && b.aatRegistry.IsActionForbidden(view.AgentType, aat.ActionType(affordance.ActionType)) {
		return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindAATViolation, "action is forbidden for this agent type"))
	}
	if !credentials.Satisfies(affordance.RequiresCredential) {
		return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindCredentialsInsufficient, "required credential not satisfied"))
	}

	if b.validate != nil {
		schemaRef := affordance.Params.ParamsSchemaRef
		if b.schemaRefFor != nil && schemaRef == "" {
			schemaRef = b.schemaRefFor(affordance.ActionType)
		}
		result, err := b.validate.Validate(ctx, schemaRef, parameters)
		if err != nil {
			return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.Wrap(coreerr.KindParamsInvalid, err, "param validation failed"))
		}
		if !result.OK {
			return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindParamsInvalid, "parameters violate schema"))
		}
	}

	if b.policy != nil {
		decision := b.policy.Evaluate(ctx, policy.Input{View: view, AffordanceID: affordanceID, Parameters: parameters})
		if !decision.Allow {
			return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindPolicyDenied, joinReasons(decision.DenyReasons)))
		}
	}

	b.mu.Lock()
	handler, ok := b.handlers[affordance.ActionType]
	b.mu.Unlock()
	if !ok {
		return b.fail(ctx, started, view, affordanceID, parameters, credentials, coreerr.New(coreerr.KindEffectFailed, "no effect handler registered for action type"))
	}

	effect, err := handler(ctx, view.AgentDID, affordance, parameters)
	if err != nil {
		return b.failWithOutcome(ctx, started, view, affordanceID, parameters, credentials, provenance.OutcomeFailure, coreerr.Wrap(coreerr.KindEffectFailed, err, "effect handler failed"))
	}

	trace := provenance.Trace{
		ID:                ids.NewPrefixed("trace"),
		StartedAt:         started,
		EndedAt:           b.clock(),
		WasAssociatedWith: provenance.Association{AgentDID: view.AgentDID, AgentType: view.AgentType},
		Used: provenance.Usage{
			ContextSnapshotRef: view.ID,
			Affordance:         affordance.ActionType,
			Parameters:         parameters,
			Credentials:        credentials.Grants,
		},
		Generated: provenance.Generation{
			Outcome:       provenance.OutcomeSuccess,
			ResultType:    effect.ResultType,
			StateChanges:  effect.StateChanges,
			EventsEmitted: effect.EventsEmitted,
		},
	}
	b.store(ctx, trace)

	return TraverseOutcome{Success: true, TraceID: trace.ID, Result: effect.Output}
}

func (b *Broker) lookupView(contextID string) (coretypes.ContextView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[contextID]
	return v, ok
}

func (b *Broker) fail(ctx context.Context, started time.Time, view coretypes.ContextView, affordanceID string, parameters map[string]any, credentials coretypes.Credentials, err error) TraverseOutcome {
	return b.failWithOutcome(ctx, started, view, affordanceID, parameters, credentials, provenance.OutcomeDenied, err)
}

func (b *Broker) failWithOutcome(ctx context.Context, started time.Time, view coretypes.ContextView, affordanceID string, parameters map[string]any, credentials coretypes.Credentials, outcome provenance.Outcome, err error) TraverseOutcome {
	trace := provenance.Trace{
		ID:                ids.NewPrefixed("trace"),
		StartedAt:         started,
		EndedAt:           b.clock(),
		WasAssociatedWith: provenance.Association{AgentDID: view.AgentDID, AgentType: view.AgentType},
		Used: provenance.Usage{
			ContextSnapshotRef: view.ID,
			Affordance:         affordanceID,
			Parameters:         parameters,
			Credentials:        credentials.Grants,
		},
		Generated: provenance.Generation{
			Outcome: outcome,
		},
	}
	b.store(ctx, trace)
	return TraverseOutcome{Success: false, TraceID: trace.ID, Err: err}
}

func (b *Broker) store(ctx context.Context, trace provenance.Trace) {
	if b.traces == nil {
		return
	}
	if _, err := b.traces.Store(ctx, trace); err != nil {
		b.logger.Error(ctx, "failed to persist trace", "trace_id", trace.ID, "err", err)
	}
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
