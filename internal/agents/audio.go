package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/reason"
)

// suspiciousPhrases is the fixed keyword list for the local transcript
// fallback. Matching is case-insensitive substring containment.
var suspiciousPhrases = []string{
	"grab",
	"take",
	"steal",
	"pocket",
	"hide",
	"distract",
	"let's go",
	"quick",
	"hurry",
	"no one's looking",
	"camera",
	"security",
	"bag",
	"stuff it",
}

// modelAnalysis is the structured verdict schema expected from a reasoner.
type modelAnalysis struct {
	IsSuspicious       bool     `json:"isSuspicious"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
	EvidencePoints     []string `json:"evidencePoints"`
	FalsePositiveRisks []string `json:"falsePositiveRisks"`
	RecommendedAction  string   `json:"recommendedAction"`
}

func (m modelAnalysis) toAnalysis(agentID string) AgentAnalysis {
	a := AgentAnalysis{
		AgentID:            agentID,
		IsSuspicious:       m.IsSuspicious,
		Confidence:         Clamp01(m.Confidence),
		Reasoning:          m.Reasoning,
		EvidencePoints:     m.EvidencePoints,
		FalsePositiveRisks: m.FalsePositiveRisks,
		RecommendedAction:  normalizeAction(strings.ToLower(m.RecommendedAction)),
	}
	if a.EvidencePoints == nil {
		a.EvidencePoints = []string{}
	}
	if a.FalsePositiveRisks == nil {
		a.FalsePositiveRisks = []string{}
	}
	return a
}

// AudioAgent assesses incidents from the audio modality. A reasoner is
// optional; the keyword fallback keeps the agent deterministic without one.
type AudioAgent struct {
	Reasoner reason.Reasoner
	Logger   zerolog.Logger
}

func (a *AudioAgent) ID() string { return AudioAgentID }

// Analyze never fails. No transcript dismisses outright; a transcript goes
// to the reasoner when configured and to keyword matching otherwise.
func (a *AudioAgent) Analyze(ctx context.Context, in IncidentInput) AgentAnalysis {
	transcript := ""
	if in.AudioData != nil {
		transcript = strings.TrimSpace(in.AudioData.Transcript)
	}
	if transcript == "" {
		return AgentAnalysis{
			AgentID:            AudioAgentID,
			Confidence:         0.1,
			Reasoning:          "No audio transcript available for analysis.",
			EvidencePoints:     []string{},
			FalsePositiveRisks: []string{"no audio data to analyze"},
			RecommendedAction:  ActionDismiss,
		}
	}

	if a.Reasoner != nil && a.Reasoner.Configured() {
		if out, ok := a.modelAnalyze(ctx, transcript, in); ok {
			return out
		}
	}
	return a.keywordAnalysis(transcript)
}

func (a *AudioAgent) modelAnalyze(ctx context.Context, transcript string, in IncidentInput) (AgentAnalysis, bool) {
	prompt := fmt.Sprintf("%s\n\nLocation: %s\nTime: %s\nTranscript:\n%s",
		audioAnalysisPrompt, in.Location, in.Timestamp, transcript)
	reply, err := a.Reasoner.TextCompletion(ctx, []reason.Message{
		{Role: "system", Content: audioPersona},
		{Role: "user", Content: prompt},
	}, reason.Options{MaxTokens: 1000, JSONResponse: true})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("audio agent reasoner failed")
		return AgentAnalysis{}, false
	}

	var m modelAnalysis
	if err := reason.ExtractJSON(reply, &m); err != nil {
		a.Logger.Warn().Err(err).Msg("audio agent verdict unparsed")
		return AgentAnalysis{}, false
	}
	return m.toAnalysis(AudioAgentID), true
}

func (a *AudioAgent) keywordAnalysis(transcript string) AgentAnalysis {
	lower := strings.ToLower(transcript)
	var found []string
	for _, p := range suspiciousPhrases {
		if strings.Contains(lower, p) {
			found = append(found, p)
		}
	}
	suspicious := len(found) >= 2

	confidence := 0.3
	reasoning := "Local analysis found no concerning patterns in transcript."
	action := ActionDismiss
	if suspicious {
		confidence = 0.6
		reasoning = fmt.Sprintf("Local analysis detected %d suspicious keywords: %s",
			len(found), strings.Join(found, ", "))
		action = ActionMonitor
	}

	evidence := make([]string, 0, len(found))
	for _, p := range found {
		evidence = append(evidence, fmt.Sprintf("keyword detected: %q", p))
	}

	return AgentAnalysis{
		AgentID:            AudioAgentID,
		IsSuspicious:       suspicious,
		Confidence:         confidence,
		Reasoning:          reasoning,
		EvidencePoints:     evidence,
		FalsePositiveRisks: []string{"local keyword matching only, no semantic analysis"},
		RecommendedAction:  action,
	}
}

// Respond always succeeds. Without a reasoner it produces a canned
// acknowledgment referencing the other agent's stated confidence.
func (a *AudioAgent) Respond(ctx context.Context, prev AgentMessage, conv *ConversationContext) AgentMessage {
	if a.Reasoner != nil && a.Reasoner.Configured() {
		prompt := fmt.Sprintf("%s\n\nYour colleague said: %q\n\nConversation so far:\n%s\n\nLocation: %s, camera: %s\n\n%s",
			audioPersona, prev.Content, transcriptOf(conv), conv.Location, conv.CameraID, respondPrompt)
		reply, err := a.Reasoner.TextCompletion(ctx, []reason.Message{
			{Role: "system", Content: audioPersona},
			{Role: "user", Content: prompt},
		}, reason.Options{MaxTokens: 300})
		if err == nil && strings.TrimSpace(reply) != "" {
			return NewMessage(AudioAgentID, strings.TrimSpace(reply), prev.ID, time.Now())
		}
		a.Logger.Warn().Err(err).Msg("audio agent respond fell back")
	}

	stance := "didn't detect significant verbal indicators"
	if prev.Metadata != nil && prev.Metadata.Confidence > 0.6 {
		stance = "agree there are concerning patterns"
	}
	content := fmt.Sprintf("I've reviewed the visual observations. Based on my audio analysis, I %s. Let's proceed with caution.", stance)
	return NewMessage(AudioAgentID, content, prev.ID, time.Now())
}

func transcriptOf(conv *ConversationContext) string {
	var b strings.Builder
	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "[%s]: %s\n", m.AgentID, m.Content)
	}
	return b.String()
}
