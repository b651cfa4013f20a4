package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/reason"
)

// Detection classes the YOLO-only fallback treats as carry or merchandise.
var (
	bagClasses     = map[string]bool{"backpack": true, "handbag": true, "suitcase": true, "bag": true}
	productClasses = map[string]bool{"bottle": true, "box": true, "package": true, "food": true, "fruit": true}
)

// VisionAgent assesses incidents from the visual modality. With a frame and
// a configured reasoner it runs image analysis; otherwise it degrades to a
// detection-count heuristic.
type VisionAgent struct {
	Reasoner reason.Reasoner
	Logger   zerolog.Logger
}

func (v *VisionAgent) ID() string { return VisionAgentID }

// Analyze never fails.
func (v *VisionAgent) Analyze(ctx context.Context, in IncidentInput) AgentAnalysis {
	var detections []ObjectDetection
	frame := ""
	if in.VisualData != nil {
		detections = in.VisualData.YOLODetections
		frame = in.VisualData.FrameBase64
	}

	if frame != "" && v.Reasoner != nil && v.Reasoner.Configured() {
		if out, ok := v.modelAnalyze(ctx, frame, detections, in); ok {
			return out
		}
	}
	return v.detectionOnly(detections)
}

func (v *VisionAgent) modelAnalyze(ctx context.Context, frame string, detections []ObjectDetection, in IncidentInput) (AgentAnalysis, bool) {
	prompt := fmt.Sprintf("%s\n\nLocation: %s\nTime: %s\nDetections:\n%s",
		visionAnalysisPrompt, in.Location, in.Timestamp, formatDetections(detections))
	reply, err := v.Reasoner.AnalyzeImage(ctx, frame, prompt, visionPersona,
		reason.Options{MaxTokens: 1000, JSONResponse: true})
	if err != nil {
		v.Logger.Warn().Err(err).Msg("vision agent reasoner failed")
		return AgentAnalysis{}, false
	}

	var m modelAnalysis
	if err := reason.ExtractJSON(reply, &m); err != nil {
		v.Logger.Warn().Err(err).Msg("vision agent verdict unparsed")
		return AgentAnalysis{}, false
	}
	return m.toAnalysis(VisionAgentID), true
}

// detectionOnly is the YOLO-only heuristic: a person together with a bag or
// product reads as suspicious unless the scene is crowded.
func (v *VisionAgent) detectionOnly(detections []ObjectDetection) AgentAnalysis {
	persons, bags, products := 0, 0, 0
	for _, d := range detections {
		class := strings.ToLower(d.Class)
		switch {
		case class == "person":
			persons++
		case bagClasses[class]:
			bags++
		case productClasses[class]:
			products++
		}
	}

	suspicious := persons > 0 && (bags > 0 || products > 0) && persons < 3

	evidence := []string{}
	if persons > 0 {
		evidence = append(evidence, fmt.Sprintf("%d person(s) detected", persons))
	}
	if bags > 0 {
		evidence = append(evidence, fmt.Sprintf("%d bag(s) detected", bags))
	}
	if products > 0 {
		evidence = append(evidence, fmt.Sprintf("%d product(s) detected", products))
	}

	action := ActionDismiss
	if suspicious {
		action = ActionMonitor
	}

	return AgentAnalysis{
		AgentID:            VisionAgentID,
		IsSuspicious:       suspicious,
		Confidence:         0.4,
		Reasoning:          fmt.Sprintf("Detector found %d person(s), %d bag(s), %d product(s). Basic pattern analysis only.", persons, bags, products),
		EvidencePoints:     evidence,
		FalsePositiveRisks: []string{"detection counts only, no behavioral analysis"},
		RecommendedAction:  action,
	}
}

func formatDetections(detections []ObjectDetection) string {
	if len(detections) == 0 {
		return "No objects detected."
	}
	var b strings.Builder
	for _, d := range detections {
		fmt.Fprintf(&b, "- %s (%.1f%% confidence) at [%.0f, %.0f]\n",
			d.Class, d.Confidence*100, d.Bbox[0], d.Bbox[1])
	}
	return b.String()
}

// Respond always succeeds.
func (v *VisionAgent) Respond(ctx context.Context, prev AgentMessage, conv *ConversationContext) AgentMessage {
	if v.Reasoner != nil && v.Reasoner.Configured() {
		prompt := fmt.Sprintf("%s\n\nYour colleague said: %q\n\nConversation so far:\n%s\n\nLocation: %s, camera: %s\n\n%s",
			visionPersona, prev.Content, transcriptOf(conv), conv.Location, conv.CameraID, respondPrompt)
		reply, err := v.Reasoner.TextCompletion(ctx, []reason.Message{
			{Role: "system", Content: visionPersona},
			{Role: "user", Content: prompt},
		}, reason.Options{MaxTokens: 300})
		if err == nil && strings.TrimSpace(reply) != "" {
			return NewMessage(VisionAgentID, strings.TrimSpace(reply), prev.ID, time.Now())
		}
		v.Logger.Warn().Err(err).Msg("vision agent respond fell back")
	}

	stance := "don't show definitive suspicious behavior"
	if prev.Metadata != nil && prev.Metadata.Confidence > 0.6 {
		stance = "support the concerns raised"
	}
	content := fmt.Sprintf("I've considered the audio analysis. My visual observations %s. I recommend we continue monitoring.", stance)
	return NewMessage(VisionAgentID, content, prev.ID, time.Now())
}
