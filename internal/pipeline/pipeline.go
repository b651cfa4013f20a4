// Package pipeline orchestrates the concealment path for a single track
// observation: judge, gate, voice, log. Run never fails; every stage error
// is converted into a suppressed outcome with a reason, and that outcome is
// itself logged.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/event"
	"github.com/storewatch/storewatch/internal/gate"
	"github.com/storewatch/storewatch/internal/incidentlog"
	"github.com/storewatch/storewatch/internal/judge"
	"github.com/storewatch/storewatch/internal/metrics"
	"github.com/storewatch/storewatch/internal/suspicion"
	"github.com/storewatch/storewatch/internal/track"
	"github.com/storewatch/storewatch/internal/voice"
)

// Result statuses.
const (
	StatusAlerted      = "alerted"
	StatusSuppressed   = "suppressed"
	StatusLoggedOnly   = "logged_only"
	StatusFallbackUsed = "fallback_used"
)

// Suppression reasons produced by the pipeline itself (the gate has its own).
const (
	ReasonVoiceFailed   = "voice_failed"
	ReasonPipelineError = "pipeline_error"
)

// Input is one track observation to adjudicate.
type Input struct {
	Track      *track.Person
	CameraID   string
	Location   string
	Suspicion  suspicion.Result
	FramePaths []string
	NowMS      int64 // 0 means wall clock
}

// Result is the structured outcome. Always populated; Run never fails.
type Result struct {
	Status           string `json:"status"`
	SuppressedReason string `json:"suppressed_reason,omitempty"`
	JudgeUsed        string `json:"judge_used"`
	VoiceUsed        string `json:"voice_used"`
	AudioPath        string `json:"audio_path,omitempty"`
	LogError         string `json:"log_error,omitempty"`
}

// Pipeline wires the concealment-path components. All collaborators are
// injected; the caller's composition root owns them. Metrics may be nil.
type Pipeline struct {
	Judge judge.Judge
	// JudgeName labels the injected judge in results ("local" or "model").
	JudgeName string
	Voice     voice.Alerter
	Gate      *gate.Gate
	Log       *incidentlog.Log
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Run adjudicates one observation. Any stage error, including a panicking
// judge implementation, becomes a suppressed outcome.
func (p *Pipeline) Run(ctx context.Context, in Input) (res Result) {
	nowMS := in.NowMS
	if nowMS == 0 {
		nowMS = time.Now().UnixMilli()
	}

	res = Result{JudgeUsed: p.JudgeName, VoiceUsed: voice.UsedLocal}

	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error().Interface("panic", r).Msg("pipeline panic")
			res.Status = StatusSuppressed
			res.SuppressedReason = ReasonPipelineError
		}
	}()

	verdict, err := p.Judge.Judge(ctx, judge.Input{
		FramePaths:          in.FramePaths,
		Location:            in.Location,
		CameraID:            in.CameraID,
		SuspicionScore:      in.Suspicion.Score,
		SuspicionReasons:    in.Suspicion.Reasons,
		ExitWithoutCheckout: in.Suspicion.ExitWithoutCheckout,
		TorsoRatioSpike:     in.Suspicion.TorsoRatioSpike,
	})
	if err != nil {
		p.Logger.Warn().Err(err).Msg("judge failed, using conservative default")
		verdict = judge.Conservative()
	}

	ev := event.New(in.CameraID, in.Location, verdict.Confidence, time.UnixMilli(nowMS))
	trackID := ""
	if in.Track != nil {
		trackID = in.Track.TrackID
		ev.Evidence = &event.Evidence{TrackID: trackID}
	}

	if verdict.RecommendedAction == judge.ActionLogOnly && !verdict.ConcealmentLikely {
		res.Status = StatusLoggedOnly
		p.logSuppressed(ev, "log_only", time.UnixMilli(nowMS), &res)
		return res
	}

	p.dispatch(ctx, ev, trackID, nowMS, &res)
	return res
}

// RunEvent adjudicates one externally supplied, already validated event.
// The event's own confidence feeds the gate directly; no judge runs.
func (p *Pipeline) RunEvent(ctx context.Context, ev event.Event, nowMS int64) (res Result) {
	if nowMS == 0 {
		nowMS = time.Now().UnixMilli()
	}

	res = Result{JudgeUsed: "external", VoiceUsed: voice.UsedLocal}

	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error().Interface("panic", r).Msg("pipeline panic")
			res.Status = StatusSuppressed
			res.SuppressedReason = ReasonPipelineError
		}
	}()

	trackID := ""
	if ev.Evidence != nil {
		trackID = ev.Evidence.TrackID
	}

	p.dispatch(ctx, ev, trackID, nowMS, &res)
	return res
}

// dispatch runs the shared gate, voice, log tail for one event.
func (p *Pipeline) dispatch(ctx context.Context, ev event.Event, trackID string, nowMS int64, res *Result) {
	now := time.UnixMilli(nowMS)

	decision := p.Gate.Decide(ev.CameraID, trackID, ev.Confidence, nowMS)
	if !decision.Allow {
		res.Status = StatusSuppressed
		res.SuppressedReason = decision.Reason
		p.logSuppressed(ev, decision.Reason, now, res)
		p.Logger.Info().
			Str("camera_id", ev.CameraID).
			Str("track_id", trackID).
			Str("reason", decision.Reason).
			Msg("alert suppressed")
		return
	}

	vr := p.Voice.Play(ctx, ev.Location, ev.CameraID)
	res.VoiceUsed = vr.VoiceUsed
	res.AudioPath = vr.AudioPath

	if !vr.Success || vr.AudioPath == "" {
		res.Status = StatusSuppressed
		res.SuppressedReason = ReasonVoiceFailed
		p.logSuppressed(ev, ReasonVoiceFailed, now, res)
		return
	}

	if vr.VoiceUsed == voice.UsedRemote {
		res.Status = StatusAlerted
	} else {
		res.Status = StatusFallbackUsed
	}

	if err := p.Log.Triggered(ev, voice.AlertText(ev.Location), vr.AudioPath, now); err != nil {
		// The incident log is the durability boundary; surface the
		// failure without undoing the alert that already fired.
		p.Logger.Error().Err(err).Msg("triggered log write failed")
		res.LogError = err.Error()
		if p.Metrics != nil {
			p.Metrics.IncidentLogErrors.Inc()
		}
	}

	p.Logger.Info().
		Str("camera_id", ev.CameraID).
		Str("track_id", trackID).
		Str("status", res.Status).
		Str("audio_path", vr.AudioPath).
		Msg("alert fired")
}

func (p *Pipeline) logSuppressed(ev event.Event, reason string, now time.Time, res *Result) {
	if err := p.Log.Suppressed(ev, reason, now); err != nil {
		p.Logger.Error().Err(err).Msg("suppressed log write failed")
		res.LogError = err.Error()
		if p.Metrics != nil {
			p.Metrics.IncidentLogErrors.Inc()
		}
	}
}
