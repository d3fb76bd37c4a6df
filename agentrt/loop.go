package agentrt

import (
	"context"
	"regexp"
	"strings"

	"github.com/fluxgraph/workflow-core/broker"
	"github.com/fluxgraph/workflow-core/coreerr"
	"github.com/fluxgraph/workflow-core/coretypes"
)

// loop holds the mutable per-run state for one Runtime.Run call, mirroring
// the teacher's pattern of threading a run's state through a small owning
// struct rather than passing a dozen parameters between helpers.
type loop struct {
	rt   *Runtime
	task coretypes.Task

	history []ActionRecord
}

func (l *loop) run(ctx context.Context) TaskResult {
	archetype := l.task.Type.Archetype()

	for i := 0; i < l.rt.maxIterations; i++ {
		view, err := l.rt.broker.GetContext(ctx, l.rt.did, l.rt.credentials)
		if err != nil {
			return l.finish("failed", nil, coreerr.Wrap(coreerr.KindReasonerFailure, err, "failed to obtain context view"))
		}

		enabled := view.EnabledAffordances()
		if len(enabled) == 0 {
			if aff, ok := findByActionType(view.Affordances, "RequestCredential"); ok {
				return TaskResult{Status: "waiting", Output: map[string]any{"affordanceId": aff.ID}, History: l.history}
			}
		}

		decision, err := l.decide(ctx, archetype, view)
		if err != nil {
			// Recoverable per spec.md §7: retry next iteration with a fresh view.
			l.rt.logger.Warn(ctx, "reasoner failed, retrying", "iteration", i, "err", err)
			continue
		}

		decision = l.applyRefusalOverride(archetype, decision, view)
		decision = l.enforceStructural(archetype, decision, view)

		if !decision.ShouldContinue || decision.SelectedAffordanceID == "" {
			return l.finishSuccess(view, archetype)
		}

		affordance, ok := view.Affordance(decision.SelectedAffordanceID)
		if !ok {
			continue
		}

		params := l.injectParameters(affordance.ActionType, decision.Parameters)

		if archetype == "executor" {
			if runner, ok := l.rt.reasoner.(ToolRunner); ok {
				result, terr := runner.RunWithTools(ctx, l.task, allowedTools(l.task))
				if terr == nil {
					params["executionResult"] = map[string]any{
						"success": result.Success,
						"output":  result.Output,
						"error":   errString(result.Err),
					}
				}
			}
		}

		outcome := l.rt.broker.Traverse(ctx, view.ID, affordance.ID, params, l.rt.credentials)
		l.record(i, affordance, params, outcome)

		if !outcome.Success {
			return l.finish("failed", nil, outcome.Err)
		}
		requiredDone := view.StructuralReqs != nil && affordance.ActionType == view.StructuralReqs.RequiredOutputAction
		if isTerminalAction(archetype, affordance.ActionType) || requiredDone {
			return l.finishSuccess(view, archetype)
		}
	}

	return l.finish("failed", nil, coreerr.New(coreerr.KindMaxIterationsReached, "max iterations reached"))
}

func (l *loop) decide(ctx context.Context, archetype string, view coretypes.ContextView) (Decision, error) {
	if d, ok := l.deterministicShortcut(archetype, view); ok {
		return d, nil
	}
	if l.rt.reasoner == nil {
		return Decision{}, coreerr.New(coreerr.KindReasonerFailure, "no reasoner configured")
	}
	return l.rt.reasoner.ReasonAboutContext(ctx, l.rt.systemPrompt, view, l.task, l.history)
}

// deterministicShortcut builds a Decision directly for archetypes whose
// next move is fully determined by task context, without consulting the
// reasoner (spec.md §4.5 step 4a).
func (l *loop) deterministicShortcut(archetype string, view coretypes.ContextView) (Decision, bool) {
	switch archetype {
	case "archivist":
		content, hasContent := l.task.Input["content"]
		contentType, hasType := l.task.Input["contentType"]
		if hasContent && hasType {
			if aff, ok := findByActionType(view.Affordances, "Store"); ok {
				return Decision{
					Reasoning:            "archivist stores task content deterministically",
					SelectedAffordanceID: aff.ID,
					Parameters:           map[string]any{"content": content, "contentType": contentType},
					ShouldContinue:       true,
				}, true
			}
		}
	case "arbiter":
		if aff, ok := findByActionType(view.Affordances, "Approve"); ok {
			return Decision{
				Reasoning:            "arbiter auto-approves",
				SelectedAffordanceID: aff.ID,
				Parameters:           map[string]any{},
				ShouldContinue:       true,
			}, true
		}
	case "analyst":
		if l.lastSuccessfulActionType() == "QueryData" {
			if aff, ok := findByActionType(view.Affordances, "EmitInsight"); ok {
				rows, _ := l.lastSuccessfulResult()["rows"]
				return Decision{
					Reasoning:            "analyst summarizes prior query results",
					SelectedAffordanceID: aff.ID,
					Parameters:           map[string]any{"summary": summarizeRows(rows)},
					ShouldContinue:       true,
				}, true
			}
		}
	}
	return Decision{}, false
}

// applyRefusalOverride substitutes a fallback query when the reasoner
// refused or returned nothing selectable and the agent is an analyst with
// an enabled QueryData affordance (spec.md §4.5 step 5).
func (l *loop) applyRefusalOverride(archetype string, d Decision, view coretypes.ContextView) Decision {
	if d.SelectedAffordanceID != "" && !isRefusal(d) {
		return d
	}
	if archetype != "analyst" {
		return d
	}
	aff, ok := findByActionType(view.EnabledAffordances(), "QueryData")
	if !ok {
		return d
	}
	return Decision{
		Reasoning:            "falling back to default query after refusal",
		SelectedAffordanceID: aff.ID,
		Parameters:           map[string]any{"query": defaultSPARQLQuery, "queryLanguage": "sparql"},
		ShouldContinue:       true,
	}
}

// enforceStructural replaces the decision with the AAT's required output
// action when the current selection does not match it (spec.md §4.5 step 6).
func (l *loop) enforceStructural(archetype string, d Decision, view coretypes.ContextView) Decision {
	if view.StructuralReqs == nil || view.StructuralReqs.RequiredOutputAction == "" {
		return d
	}
	required := view.StructuralReqs.RequiredOutputAction

	selectedType := ""
	if d.SelectedAffordanceID != "" {
		if aff, ok := view.Affordance(d.SelectedAffordanceID); ok {
			selectedType = aff.ActionType
		}
	}
	if selectedType == required {
		return d
	}

	aff, ok := findByActionType(view.Affordances, required)
	if !ok {
		return d
	}

	params := map[string]any{}
	if required == "EmitPlan" {
		if goal, ok := l.task.Input["goal"]; ok {
			params["goal"] = goal
		}
		if steps, ok := parseNumberedSteps(d.Reasoning); ok {
			params["steps"] = steps
		} else {
			params["steps"] = []map[string]any{{"action": l.task.ID}}
		}
	} else {
		params["reasoning"] = d.Reasoning
	}

	return Decision{
		Reasoning:            d.Reasoning,
		SelectedAffordanceID: aff.ID,
		Parameters:           params,
		ShouldContinue:       true,
	}
}

// injectParameters applies the task-context → affordance-parameter
// injection table of spec.md §6.
func (l *loop) injectParameters(actionType string, params map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range params {
		out[k] = v
	}
	switch actionType {
	case "Act":
		if v, ok := l.task.Input["actionRef"]; ok {
			out["actionRef"] = v
		}
		if v, ok := l.task.Input["target"]; ok {
			out["target"] = v
		}
	case "QueryData":
		if _, ok := out["query"]; !ok {
			out["query"] = defaultSPARQLQuery
		}
		out["queryLanguage"] = "sparql"
		if v, ok := l.task.Input["semanticLayerRef"]; ok {
			out["semanticLayerRef"] = v
		}
		if v, ok := l.task.Input["sourceRef"]; ok {
			out["sourceRef"] = v
		}
	case "Store":
		if v, ok := l.task.Input["content"]; ok {
			out["content"] = v
		}
		if v, ok := l.task.Input["contentType"]; ok {
			out["contentType"] = v
		}
	}
	return out
}

// project derives a TaskResult's output from the actions actually traversed
// (spec.md §4.5 step 7): the runtime never returns raw reasoning as output.
func (l *loop) project(archetype string) map[string]any {
	switch archetype {
	case "planner":
		for _, rec := range l.history {
			if rec.Success && rec.ActionType == "EmitPlan" {
				return map[string]any{"plan": rec.Parameters}
			}
		}
	case "executor":
		results := make([]map[string]any, 0, len(l.history))
		for _, rec := range l.history {
			if rec.ActionType == "Act" {
				results = append(results, rec.Result)
			}
		}
		return map[string]any{"results": results}
	case "observer":
		for _, rec := range l.history {
			if rec.Success {
				return map[string]any{"report": rec.Result}
			}
		}
	case "arbiter":
		for _, rec := range l.history {
			if rec.ActionType == "Approve" || rec.ActionType == "Deny" {
				return map[string]any{"decision": rec.ActionType, "result": rec.Result}
			}
		}
	case "archivist":
		for _, rec := range l.history {
			if rec.ActionType == "Store" {
				return map[string]any{"storageRef": rec.Result}
			}
		}
	case "analyst":
		for _, rec := range l.history {
			switch rec.ActionType {
			case "EmitInsight", "GenerateReport", "DetectAnomaly":
				return map[string]any{"insight": rec.Result}
			}
		}
	}
	return map[string]any{}
}

func (l *loop) finish(status string, output map[string]any, err error) TaskResult {
	return TaskResult{Status: status, Output: output, Err: err, History: l.history}
}

// finishSuccess finalizes a run the loop believes has succeeded, enforcing
// P-Structural (spec.md §8): a view that declares a required output action
// may only terminate successfully once actionHistory holds a successful
// traversal of that action. A run that reaches a terminal or continuation
// stop without ever traversing it fails with KindStructuralMissingRequiredOutput
// instead of silently reporting success.
func (l *loop) finishSuccess(view coretypes.ContextView, archetype string) TaskResult {
	if view.StructuralReqs != nil && view.StructuralReqs.RequiredOutputAction != "" {
		if !l.hasSuccessfulAction(view.StructuralReqs.RequiredOutputAction) {
			return l.finish("failed", nil, coreerr.New(coreerr.KindStructuralMissingRequiredOutput, "run terminated without traversing the required output action"))
		}
	}
	return l.finish("completed", l.project(archetype), nil)
}

func (l *loop) hasSuccessfulAction(actionType string) bool {
	for _, rec := range l.history {
		if rec.Success && rec.ActionType == actionType {
			return true
		}
	}
	return false
}

func (l *loop) record(iteration int, aff coretypes.Affordance, params map[string]any, outcome broker.TraverseOutcome) {
	rec := ActionRecord{
		Iteration:    iteration,
		AffordanceID: aff.ID,
		ActionType:   aff.ActionType,
		Parameters:   params,
		Success:      outcome.Success,
		Result:       outcome.Result,
		Err:          outcome.Err,
	}
	l.history = append(l.history, rec)
}

func (l *loop) lastSuccessfulActionType() string {
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].Success {
			return l.history[i].ActionType
		}
	}
	return ""
}

func (l *loop) lastSuccessfulResult() map[string]any {
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].Success {
			return l.history[i].Result
		}
	}
	return nil
}

// allowedTools reads the tool whitelist a task carries for the executor's
// tool-execution hook (spec.md §4.5 step 9), if any.
func allowedTools(task coretypes.Task) []string {
	raw, ok := task.Input["allowedTools"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

const defaultSPARQLQuery = "SELECT * WHERE { ?s ?p ?o } LIMIT 100"

func findByActionType(affordances []coretypes.Affordance, actionType string) (coretypes.Affordance, bool) {
	for _, a := range affordances {
		if a.ActionType == actionType {
			return a, true
		}
	}
	return coretypes.Affordance{}, false
}

func isTerminalAction(archetype, actionType string) bool {
	switch archetype {
	case "archivist":
		return actionType == "Store"
	case "arbiter":
		return actionType == "Approve" || actionType == "Deny"
	case "analyst":
		return actionType == "EmitInsight" || actionType == "GenerateReport" || actionType == "DetectAnomaly"
	}
	return false
}

func isRefusal(d Decision) bool {
	if d.SelectedAffordanceID == "" {
		return true
	}
	lower := strings.ToLower(d.Message)
	return strings.Contains(lower, "refuse") || strings.Contains(lower, "cannot comply") || strings.Contains(lower, "i won't")
}

var numberedStepRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*(.+)$`)

// parseNumberedSteps extracts a numbered list ("1. do X", "2) do Y") from
// free-form reasoning text, per spec.md §4.5 step 6's EmitPlan synthesis.
func parseNumberedSteps(reasoning string) ([]map[string]any, bool) {
	matches := numberedStepRe.FindAllStringSubmatch(reasoning, -1)
	if len(matches) == 0 {
		return nil, false
	}
	steps := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		steps = append(steps, map[string]any{"action": strings.TrimSpace(m[1])})
	}
	return steps, true
}

func summarizeRows(rows any) string {
	if rows == nil {
		return "no rows returned"
	}
	return "summarized query results"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
