package pipeline

import (
	"context"
	"time"

	"github.com/serenitylab/meditation-pipeline/internal/events"
	"github.com/serenitylab/meditation-pipeline/internal/fault"
	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
)

// Outcome is what the presentation layer receives for one user message.
// Notice, when set, is a dismissable user-visible message explaining a
// missing video; it never indicates a failed conversation.
type Outcome struct {
	ReplyText string
	AudioURL  string
	VideoURL  string
	Notice    string
}

// OrchestratorConfig tunes the composed flow.
type OrchestratorConfig struct {
	PlaceholderAssetURL string
}

// errVideoNotConfigured downgrades a missing video backend to a notice.
// A conversation without video credentials still gets its reply and audio.
var errVideoNotConfigured = fault.New(fault.KindConfiguration, "tavus", "video backend not configured")

// Orchestrator chains the stages for the automatic video response flow.
type Orchestrator struct {
	responder   *Responder
	synthesizer *Synthesizer
	compositor  *Compositor
	poller      *Poller
	publisher   *events.Publisher
	emitter     telemetry.Emitter
	cfg         OrchestratorConfig
	now         func() time.Time
}

// NewOrchestrator wires the full pipeline.
func NewOrchestrator(responder *Responder, synthesizer *Synthesizer, compositor *Compositor, poller *Poller, publisher *events.Publisher, emitter telemetry.Emitter, cfg OrchestratorConfig) *Orchestrator {
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	if publisher == nil {
		publisher = events.NewPublisher(events.Noop{}, emitter)
	}
	return &Orchestrator{
		responder:   responder,
		synthesizer: synthesizer,
		compositor:  compositor,
		poller:      poller,
		publisher:   publisher,
		emitter:     emitter,
		cfg:         cfg,
		now:         time.Now,
	}
}

// AutoVideoResponse runs text, speech, video submission and polling for
// one user message. Stage failures downgrade the outcome instead of
// failing it: the reply text is always present, the video URL only when
// the whole chain succeeded.
func (o *Orchestrator) AutoVideoResponse(ctx context.Context, userText, subjectName, sessionID string) Outcome {
	started := o.now()
	correlation := telemetry.Correlation{SessionID: sessionID, Stage: "orchestrator"}

	reply := o.responder.Respond(ctx, userText, subjectName)
	outcome := Outcome{ReplyText: reply}
	o.publisher.Publish(events.Event{
		Type:      events.TypeMessageSent,
		SessionID: sessionID,
		Data:      map[string]any{"reply_chars": len(reply)},
	})

	audio, err := o.synthesizer.SynthesizeURL(ctx, reply, subjectName)
	if err != nil || !audio.Playable() {
		if err != nil {
			o.emitter.EmitLog("warn", "speech stage failed: "+err.Error(), nil, correlation)
		}
		outcome.Notice = "Video is unavailable right now, but the conversation can continue."
		o.observeLatency(started, correlation)
		return outcome
	}
	outcome.AudioURL = audio.URL

	if !o.videoConfigured() {
		outcome.Notice = fault.UserNotice(errVideoNotConfigured)
		o.observeLatency(started, correlation)
		return outcome
	}

	o.publisher.Publish(events.Event{
		Type:      events.TypeVideoRequested,
		SessionID: sessionID,
	})
	job, _, err := o.compositor.FromAudio(ctx, audio, reply, subjectName)
	if err != nil {
		outcome.Notice = fault.UserNotice(err)
		o.observeLatency(started, correlation)
		return outcome
	}

	result, err := o.poller.PollUntilDone(ctx, job, nil)
	if err != nil {
		outcome.Notice = fault.UserNotice(err)
		o.observeLatency(started, correlation)
		return outcome
	}

	outcome.VideoURL = result.Job.ResultURL()
	o.publisher.Publish(events.Event{
		Type:      events.TypeVideoCompleted,
		SessionID: sessionID,
		Data: map[string]any{
			"video_id":         result.Job.VideoID,
			"poll_attempts":    result.Attempts,
			"duration_seconds": result.Job.DurationSeconds,
		},
	})
	o.observeLatency(started, correlation)
	return outcome
}

// ScriptVideoResponse submits the reply text directly, letting the video
// backend synthesize its own speech.
func (o *Orchestrator) ScriptVideoResponse(ctx context.Context, userText, subjectName, sessionID string) Outcome {
	reply := o.responder.Respond(ctx, userText, subjectName)
	outcome := Outcome{ReplyText: reply}

	if !o.videoConfigured() {
		outcome.Notice = fault.UserNotice(errVideoNotConfigured)
		return outcome
	}

	job, _, err := o.compositor.FromScript(ctx, reply, subjectName)
	if err != nil {
		outcome.Notice = fault.UserNotice(err)
		return outcome
	}
	result, err := o.poller.PollUntilDone(ctx, job, nil)
	if err != nil {
		outcome.Notice = fault.UserNotice(err)
		return outcome
	}
	outcome.VideoURL = result.Job.ResultURL()
	return outcome
}

// videoConfigured reports whether the video stages are wired. They stay
// nil when no video credential is supplied.
func (o *Orchestrator) videoConfigured() bool {
	return o.compositor != nil && o.poller != nil
}

// PlaceholderVideo returns the static demo asset. It is a manual entry
// point kept separate from the automatic pipeline so demos never spend
// render quota.
func (o *Orchestrator) PlaceholderVideo() (string, bool) {
	if o.cfg.PlaceholderAssetURL == "" {
		return "", false
	}
	return o.cfg.PlaceholderAssetURL, true
}

func (o *Orchestrator) observeLatency(started time.Time, correlation telemetry.Correlation) {
	o.emitter.EmitMetric(telemetry.MetricStageLatencyMS, float64(o.now().Sub(started).Milliseconds()),
		"ms", nil, correlation)
}
