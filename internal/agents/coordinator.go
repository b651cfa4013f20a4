package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/metrics"
	"github.com/storewatch/storewatch/internal/reason"
)

// DefaultPhaseTimeout bounds each coordinator phase: the concurrent
// analyses, each discussion turn, and the conclusion call.
const DefaultPhaseTimeout = 30 * time.Second

// Coordinator runs the multi-agent adjudication state machine:
// analyzing, optionally discussing, concluded.
type Coordinator struct {
	Audio    Agent
	Vision   Agent
	Store    Store
	Reasoner reason.Reasoner
	Logger   zerolog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// PhaseTimeout overrides DefaultPhaseTimeout when positive.
	PhaseTimeout time.Duration
}

// Outcome is the coordinator's result: the terminal conclusion plus the
// wall-clock duration of the whole adjudication.
type Outcome struct {
	Conclusion ConversationConclusion `json:"conclusion"`
	Duration   time.Duration          `json:"duration"`
}

func (c *Coordinator) phaseTimeout() time.Duration {
	if c.PhaseTimeout > 0 {
		return c.PhaseTimeout
	}
	return DefaultPhaseTimeout
}

// AnalyzeIncident adjudicates one incident. It fails only on invalid input;
// every internal failure degrades to the local fallback and the returned
// conclusion is always fully populated.
func (c *Coordinator) AnalyzeIncident(ctx context.Context, in IncidentInput) (Outcome, error) {
	if err := in.Validate(); err != nil {
		return Outcome{}, err
	}
	started := time.Now()

	conv := &ConversationContext{
		ConversationID: "conv-" + uuid.NewString(),
		IncidentID:     in.IncidentID,
		CameraID:       in.CameraID,
		Location:       in.Location,
		StartedAt:      started.UTC().Format(time.RFC3339),
		Messages:       []AgentMessage{},
		Status:         StatusAnalyzing,
	}
	if err := c.Store.CreateConversation(ctx, conv); err != nil {
		c.Logger.Error().Err(err).Str("conversation_id", conv.ConversationID).Msg("create conversation failed")
	}

	audio, vision := c.analyzeBoth(ctx, in)

	audioMsg := initialMessage(audio, "audio")
	visionMsg := initialMessage(vision, "visual")
	c.appendMessage(ctx, conv, audioMsg)
	c.appendMessage(ctx, conv, visionMsg)

	turns := 0
	if NeedsDiscussion(audio, vision) {
		turns = c.runDiscussion(ctx, conv, visionMsg)
	}

	conclusion := c.determineConclusion(ctx, conv, audio, vision)

	if err := c.Store.SaveAnalysis(ctx, conv.ConversationID, audio); err != nil {
		c.Logger.Error().Err(err).Msg("save audio analysis failed")
	}
	if err := c.Store.SaveAnalysis(ctx, conv.ConversationID, vision); err != nil {
		c.Logger.Error().Err(err).Msg("save vision analysis failed")
	}
	if err := c.Store.SaveConclusion(ctx, conclusion); err != nil {
		c.Logger.Error().Err(err).Str("conversation_id", conv.ConversationID).Msg("save conclusion failed")
	}
	if err := c.Store.UpdateStatus(ctx, conv.ConversationID, StatusConcluded); err != nil {
		c.Logger.Error().Err(err).Msg("update status failed")
	}
	conv.Status = StatusConcluded

	if c.Metrics != nil {
		c.Metrics.RecordConclusion(conclusion.FinalVerdict, turns, time.Since(started).Seconds())
	}

	c.Logger.Info().
		Str("conversation_id", conv.ConversationID).
		Str("incident_id", in.IncidentID).
		Str("verdict", conclusion.FinalVerdict).
		Bool("consensus", conclusion.ConsensusReached).
		Dur("duration", time.Since(started)).
		Msg("incident adjudicated")

	return Outcome{Conclusion: conclusion, Duration: time.Since(started)}, nil
}

// analyzeBoth runs the two independent analyses concurrently under one
// phase timeout.
func (c *Coordinator) analyzeBoth(ctx context.Context, in IncidentInput) (AgentAnalysis, AgentAnalysis) {
	phaseCtx, cancel := context.WithTimeout(ctx, c.phaseTimeout())
	defer cancel()

	audioCh := make(chan AgentAnalysis, 1)
	visionCh := make(chan AgentAnalysis, 1)
	go func() { audioCh <- c.Audio.Analyze(phaseCtx, in) }()
	go func() { visionCh <- c.Vision.Analyze(phaseCtx, in) }()
	return <-audioCh, <-visionCh
}

func initialMessage(a AgentAnalysis, evidenceType string) AgentMessage {
	evidence := strings.Join(a.EvidencePoints, ", ")
	if evidence == "" {
		evidence = "None"
	}
	content := fmt.Sprintf("Initial Analysis: %s\n\nEvidence: %s\n\nConfidence: %.0f%%\n\nRecommendation: %s",
		a.Reasoning, evidence, a.Confidence*100, a.RecommendedAction)
	msg := NewMessage(a.AgentID, content, "", time.Now())
	msg.Metadata = &MessageMetadata{Confidence: a.Confidence, EvidenceType: evidenceType}
	return msg
}

func (c *Coordinator) appendMessage(ctx context.Context, conv *ConversationContext, msg AgentMessage) {
	conv.Messages = append(conv.Messages, msg)
	if err := c.Store.AppendMessage(ctx, conv.ConversationID, msg); err != nil {
		c.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("append message failed")
	}
}

// runDiscussion alternates respond calls, audio answering vision first,
// until Done reports the turn budget spent or a reply signalling agreement.
// Turns are strictly sequential. Returns the number of turns taken.
func (c *Coordinator) runDiscussion(ctx context.Context, conv *ConversationContext, opening AgentMessage) int {
	state := StartDiscussion(opening)
	for !Done(state) {
		reply := c.respondWithTimeout(ctx, c.agentByID(state.Responder), state.LastMessage, conv)
		c.appendMessage(ctx, conv, reply)
		state = Next(state, reply)
	}
	return state.Turn
}

func (c *Coordinator) agentByID(id string) Agent {
	if id == c.Audio.ID() {
		return c.Audio
	}
	return c.Vision
}

func (c *Coordinator) respondWithTimeout(ctx context.Context, agent Agent, prev AgentMessage, conv *ConversationContext) AgentMessage {
	phaseCtx, cancel := context.WithTimeout(ctx, c.phaseTimeout())
	defer cancel()
	return agent.Respond(phaseCtx, prev, conv)
}

// modelConclusion is the structured verdict expected from the reasoner.
type modelConclusion struct {
	FinalVerdict       string  `json:"finalVerdict"`
	CombinedConfidence float64 `json:"combinedConfidence"`
	Summary            string  `json:"summary"`
}

func (c *Coordinator) determineConclusion(ctx context.Context, conv *ConversationContext, audio, vision AgentAnalysis) ConversationConclusion {
	if c.Reasoner != nil && c.Reasoner.Configured() {
		if out, ok := c.modelConclusion(ctx, conv, audio, vision); ok {
			return out
		}
	}
	return localConclusion(conv, audio, vision)
}

func (c *Coordinator) modelConclusion(ctx context.Context, conv *ConversationContext, audio, vision AgentAnalysis) (ConversationConclusion, bool) {
	phaseCtx, cancel := context.WithTimeout(ctx, c.phaseTimeout())
	defer cancel()

	audioJSON, _ := json.Marshal(audio)
	visionJSON, _ := json.Marshal(vision)
	prompt := fmt.Sprintf("%s\n\nAudio analysis:\n%s\n\nVision analysis:\n%s\n\nDiscussion:\n%s",
		conclusionPrompt, audioJSON, visionJSON, transcriptOf(conv))

	reply, err := c.Reasoner.TextCompletion(phaseCtx, []reason.Message{
		{Role: "system", Content: "You are an impartial security arbiter."},
		{Role: "user", Content: prompt},
	}, reason.Options{MaxTokens: 500, JSONResponse: true})
	if err != nil {
		c.Logger.Warn().Err(err).Msg("conclusion reasoner failed")
		return ConversationConclusion{}, false
	}

	var m modelConclusion
	if err := reason.ExtractJSON(reply, &m); err != nil {
		c.Logger.Warn().Err(err).Msg("conclusion verdict unparsed")
		return ConversationConclusion{}, false
	}

	verdict := normalizeVerdict(m.FinalVerdict)
	summary := m.Summary
	if summary == "" {
		summary = "Analysis complete."
	}
	return ConversationConclusion{
		ConversationID:      conv.ConversationID,
		IncidentID:          conv.IncidentID,
		FinalVerdict:        verdict,
		CombinedConfidence:  Clamp01(m.CombinedConfidence),
		Summary:             summary,
		AudioAgentAnalysis:  audio,
		VisionAgentAnalysis: vision,
		ConsensusReached:    audio.IsSuspicious == vision.IsSuspicious,
		DecidedAt:           time.Now().UTC().Format(time.RFC3339),
	}, true
}

// localConclusion is the deterministic fallback rule.
func localConclusion(conv *ConversationContext, audio, vision AgentAnalysis) ConversationConclusion {
	avg := (audio.Confidence + vision.Confidence) / 2
	bothSuspicious := audio.IsSuspicious && vision.IsSuspicious
	eitherSuspicious := audio.IsSuspicious || vision.IsSuspicious

	var verdict string
	switch {
	case bothSuspicious && avg >= 0.6:
		verdict = VerdictConfirmedThreat
	case !eitherSuspicious:
		verdict = VerdictFalsePositive
	case avg < 0.4:
		verdict = VerdictInconclusive
	default:
		verdict = VerdictNeedsHumanReview
	}

	mode := "disagreement"
	if audio.IsSuspicious == vision.IsSuspicious {
		mode = "agreement"
	}
	return ConversationConclusion{
		ConversationID:      conv.ConversationID,
		IncidentID:          conv.IncidentID,
		FinalVerdict:        verdict,
		CombinedConfidence:  Clamp01(avg),
		Summary:             fmt.Sprintf("Local determination based on %s between agents. Audio confidence: %.0f%%, vision confidence: %.0f%%.", mode, audio.Confidence*100, vision.Confidence*100),
		AudioAgentAnalysis:  audio,
		VisionAgentAnalysis: vision,
		ConsensusReached:    audio.IsSuspicious == vision.IsSuspicious,
		DecidedAt:           time.Now().UTC().Format(time.RFC3339),
	}
}

func normalizeVerdict(v string) string {
	switch v {
	case VerdictConfirmedThreat, VerdictFalsePositive, VerdictInconclusive, VerdictNeedsHumanReview:
		return v
	default:
		return VerdictInconclusive
	}
}
