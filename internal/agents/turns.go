package agents

import "strings"

// MaxDiscussionTurns bounds the alternating discussion.
const MaxDiscussionTurns = 4

// ConsensusThreshold is the confidence below which agreement still needs
// discussion.
const ConsensusThreshold = 0.7

// agreementMarkers end a discussion early when present in a reply.
var agreementMarkers = []string{"i agree", "consensus"}

// TurnState is the discussion state machine. Speaker is the agent whose
// last message is being answered; Responder produces the next message.
type TurnState struct {
	Turn        int
	Speaker     string
	Responder   string
	LastMessage AgentMessage
}

// StartDiscussion seeds the state machine: the vision agent's initial
// analysis is answered first by the audio agent.
func StartDiscussion(visionOpening AgentMessage) TurnState {
	return TurnState{
		Turn:        0,
		Speaker:     VisionAgentID,
		Responder:   AudioAgentID,
		LastMessage: visionOpening,
	}
}

// Next is the pure transition: the responder's reply becomes the message
// under discussion and the roles swap.
func Next(s TurnState, reply AgentMessage) TurnState {
	return TurnState{
		Turn:        s.Turn + 1,
		Speaker:     s.Responder,
		Responder:   s.Speaker,
		LastMessage: reply,
	}
}

// Done reports whether the discussion has ended: the turn budget is spent
// or the last reply signals agreement.
func Done(s TurnState) bool {
	return s.Turn >= MaxDiscussionTurns || HasAgreement(s.LastMessage.Content)
}

// HasAgreement reports whether text contains an agreement marker.
func HasAgreement(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range agreementMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// NeedsDiscussion reports whether the initial analyses require a discussion
// phase: verdict disagreement, low confidence on both sides, or differing
// recommended actions.
func NeedsDiscussion(audio, vision AgentAnalysis) bool {
	if audio.IsSuspicious != vision.IsSuspicious {
		return true
	}
	if audio.Confidence < ConsensusThreshold && vision.Confidence < ConsensusThreshold {
		return true
	}
	return audio.RecommendedAction != vision.RecommendedAction
}
