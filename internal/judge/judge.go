// Package judge decides whether tracked behavior looks like concealment.
// Implementations are injected strategies: the rule-based local judge needs
// no credentials; the model judge consults an external reasoner and degrades
// to the same conservative default the local judge would give.
package judge

import "context"

// Recommended actions.
const (
	ActionAlert   = "alert"
	ActionLogOnly = "log_only"
)

// Confidence levels of the rule-based judge.
const (
	likelyConfidence   = 0.7
	unlikelyConfidence = 0.2
)

// Input is the evidence presented to a judge for one track observation.
type Input struct {
	FramePaths          []string
	Location            string
	CameraID            string
	SuspicionScore      int
	SuspicionReasons    []string
	ExitWithoutCheckout bool
	TorsoRatioSpike     bool
}

// Result is the verdict.
type Result struct {
	ConcealmentLikely   bool     `json:"concealment_likely"`
	Confidence          float64  `json:"confidence_0_1"`
	Evidence            []string `json:"evidence"`
	RiskOfFalsePositive []string `json:"risk_of_false_positive"`
	RecommendedAction   string   `json:"recommended_action"`
}

// Judge converts evidence into a verdict. Implementations must not fail
// with anything other than a conservative result; callers still treat a
// returned error as that same conservative default.
type Judge interface {
	Judge(ctx context.Context, in Input) (Result, error)
}

// Conservative is the safe default verdict used when a judge fails.
func Conservative() Result {
	return Result{
		Confidence:          unlikelyConfidence,
		Evidence:            []string{},
		RiskOfFalsePositive: []string{"judge_error"},
		RecommendedAction:   ActionLogOnly,
	}
}

// Local is the deterministic rule-based judge. No credentials required.
type Local struct{}

// Judge applies the rule: concealment is likely when the track exited
// without checkout or showed a torso ratio spike.
func (Local) Judge(_ context.Context, in Input) (Result, error) {
	likely := in.ExitWithoutCheckout || in.TorsoRatioSpike

	confidence := unlikelyConfidence
	if likely {
		confidence = likelyConfidence
	}

	evidence := []string{}
	if in.ExitWithoutCheckout {
		evidence = append(evidence, "exit_without_checkout")
	}
	if in.TorsoRatioSpike {
		evidence = append(evidence, "torso_ratio_spike")
	}

	action := ActionLogOnly
	if likely && confidence >= likelyConfidence {
		action = ActionAlert
	}

	return Result{
		ConcealmentLikely:   likely,
		Confidence:          confidence,
		Evidence:            evidence,
		RiskOfFalsePositive: []string{"rule-based heuristic; no visual analysis"},
		RecommendedAction:   action,
	}, nil
}
