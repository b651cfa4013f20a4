package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/storewatch/storewatch/internal/reason"
)

const modelSystemPrompt = `You are a retail loss-prevention analyst. You receive behavioral
signals for one tracked person and must judge whether concealment is likely.

Return ONLY valid JSON, no markdown fences, no commentary:
{"concealment_likely":bool,"confidence":number 0-1,"evidence":[string],"risk_of_false_positive":[string],"recommended_action":"alert"|"log_only"}`

// Model is a reasoner-backed judge. It keeps the Judge contract: on any
// failure, including malformed model output, it returns the conservative
// default instead of propagating the error.
type Model struct {
	reasoner reason.Reasoner
}

// NewModel creates a model-backed judge.
func NewModel(r reason.Reasoner) *Model {
	return &Model{reasoner: r}
}

type modelVerdict struct {
	ConcealmentLikely   bool     `json:"concealment_likely"`
	Confidence          float64  `json:"confidence"`
	Evidence            []string `json:"evidence"`
	RiskOfFalsePositive []string `json:"risk_of_false_positive"`
	RecommendedAction   string   `json:"recommended_action"`
}

// Judge asks the reasoner for a verdict over the suspicion signals.
func (m *Model) Judge(ctx context.Context, in Input) (Result, error) {
	if m.reasoner == nil || !m.reasoner.Configured() {
		return Conservative(), nil
	}

	prompt := fmt.Sprintf(`Camera: %s
Location: %s
Suspicion score: %d/100
Signals: %s
Exited without checkout: %t
Torso ratio spike: %t`,
		in.CameraID, in.Location, in.SuspicionScore,
		strings.Join(in.SuspicionReasons, ", "),
		in.ExitWithoutCheckout, in.TorsoRatioSpike)

	raw, err := m.reasoner.TextCompletion(ctx, []reason.Message{
		{Role: "system", Content: modelSystemPrompt},
		{Role: "user", Content: prompt},
	}, reason.Options{MaxTokens: 500, JSONResponse: true})
	if err != nil {
		return Conservative(), nil
	}

	var v modelVerdict
	if err := reason.ExtractJSON(raw, &v); err != nil {
		return Conservative(), nil
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	action := ActionLogOnly
	if v.RecommendedAction == ActionAlert {
		action = ActionAlert
	}
	if v.Evidence == nil {
		v.Evidence = []string{}
	}
	if v.RiskOfFalsePositive == nil {
		v.RiskOfFalsePositive = []string{}
	}

	return Result{
		ConcealmentLikely:   v.ConcealmentLikely,
		Confidence:          v.Confidence,
		Evidence:            v.Evidence,
		RiskOfFalsePositive: v.RiskOfFalsePositive,
		RecommendedAction:   action,
	}, nil
}
