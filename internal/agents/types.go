// Package agents implements the multi-agent adjudication path: an audio
// specialist and a vision specialist analyze one incident independently,
// optionally discuss, and the coordinator records a single conclusion.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Agent identifiers.
const (
	AudioAgentID  = "audio-agent"
	VisionAgentID = "vision-agent"
)

// Recommended actions an agent can take on an incident.
const (
	ActionDismiss  = "dismiss"
	ActionMonitor  = "monitor"
	ActionAlert    = "alert"
	ActionEscalate = "escalate"
)

// Conversation statuses.
const (
	StatusAnalyzing = "analyzing"
	StatusConcluded = "concluded"
	StatusEscalated = "escalated"
	StatusDismissed = "dismissed"
)

// Final verdicts.
const (
	VerdictConfirmedThreat  = "confirmed_threat"
	VerdictFalsePositive    = "false_positive"
	VerdictInconclusive     = "inconclusive"
	VerdictNeedsHumanReview = "needs_human_review"
)

// ObjectDetection is one upstream detector hit attached to an incident.
type ObjectDetection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	Bbox       [4]float64 `json:"bbox"`
}

// AudioData is the optional audio side of an incident.
type AudioData struct {
	Transcript     string `json:"transcript,omitempty"`
	RawAudioBase64 string `json:"rawAudioBase64,omitempty"`
}

// VisualData is the optional visual side of an incident.
type VisualData struct {
	FrameBase64    string            `json:"frameBase64,omitempty"`
	YOLODetections []ObjectDetection `json:"yoloDetections,omitempty"`
}

// IncidentInput is one incident submitted to the multi-agent path.
type IncidentInput struct {
	IncidentID string      `json:"incidentId"`
	CameraID   string      `json:"cameraId"`
	Location   string      `json:"location"`
	Timestamp  string      `json:"timestamp,omitempty"`
	AudioData  *AudioData  `json:"audioData,omitempty"`
	VisualData *VisualData `json:"visualData,omitempty"`
}

// Validate checks the required identification fields.
func (in IncidentInput) Validate() error {
	if in.IncidentID == "" {
		return fmt.Errorf("agents: missing incidentId")
	}
	if in.CameraID == "" {
		return fmt.Errorf("agents: missing cameraId")
	}
	if in.Location == "" {
		return fmt.Errorf("agents: missing location")
	}
	return nil
}

// AgentAnalysis is one agent's independent assessment of an incident.
type AgentAnalysis struct {
	AgentID            string   `json:"agentId"`
	IsSuspicious       bool     `json:"isSuspicious"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
	EvidencePoints     []string `json:"evidencePoints"`
	FalsePositiveRisks []string `json:"falsePositiveRisks"`
	RecommendedAction  string   `json:"recommendedAction"`
}

// MessageMetadata carries optional per-message signal.
type MessageMetadata struct {
	Confidence   float64 `json:"confidence,omitempty"`
	EvidenceType string  `json:"evidenceType,omitempty"`
}

// AgentMessage is one immutable conversation turn.
type AgentMessage struct {
	ID        string           `json:"id"`
	AgentID   string           `json:"agentId"`
	Timestamp string           `json:"timestamp"`
	Content   string           `json:"content"`
	ReplyTo   string           `json:"replyTo,omitempty"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// NewMessage constructs a message with a fresh id and the given time.
func NewMessage(agentID, content, replyTo string, at time.Time) AgentMessage {
	return AgentMessage{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Timestamp: at.UTC().Format(time.RFC3339),
		Content:   content,
		ReplyTo:   replyTo,
	}
}

// ConversationContext is the coordinator-owned record of one adjudication.
// Messages are append-only; the struct is immutable once Status leaves
// analyzing.
type ConversationContext struct {
	ConversationID string         `json:"conversationId"`
	IncidentID     string         `json:"incidentId"`
	CameraID       string         `json:"cameraId"`
	Location       string         `json:"location"`
	StartedAt      string         `json:"startedAt"`
	Messages       []AgentMessage `json:"messages"`
	Status         string         `json:"status"`
}

// ConversationConclusion is the terminal record, written exactly once.
type ConversationConclusion struct {
	ConversationID      string        `json:"conversationId"`
	IncidentID          string        `json:"incidentId"`
	FinalVerdict        string        `json:"finalVerdict"`
	CombinedConfidence  float64       `json:"combinedConfidence"`
	Summary             string        `json:"summary"`
	AudioAgentAnalysis  AgentAnalysis `json:"audioAgentAnalysis"`
	VisionAgentAnalysis AgentAnalysis `json:"visionAgentAnalysis"`
	ConsensusReached    bool          `json:"consensusReached"`
	DecidedAt           string        `json:"decidedAt"`
}

// Agent is one modality specialist. Both operations degrade internally and
// never fail; a stalled call is bounded by the caller's context.
type Agent interface {
	ID() string
	Analyze(ctx context.Context, in IncidentInput) AgentAnalysis
	Respond(ctx context.Context, prev AgentMessage, conv *ConversationContext) AgentMessage
}

// Store is the durability boundary for conversations. Implemented by the
// conversation store; the coordinator only needs these operations.
type Store interface {
	CreateConversation(ctx context.Context, conv *ConversationContext) error
	UpdateStatus(ctx context.Context, conversationID, status string) error
	AppendMessage(ctx context.Context, conversationID string, msg AgentMessage) error
	SaveAnalysis(ctx context.Context, conversationID string, a AgentAnalysis) error
	SaveConclusion(ctx context.Context, c ConversationConclusion) error
}

// Clamp01 bounds a confidence to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalizeAction(a string) string {
	switch a {
	case ActionDismiss, ActionMonitor, ActionAlert, ActionEscalate:
		return a
	default:
		return ActionMonitor
	}
}
