// Package pipeline chains the response stages: text reply, speech
// synthesis, video composition and completion polling. Each stage keeps a
// best-effort session record of the artifact it produced.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/serenitylab/meditation-pipeline/internal/config"
	"github.com/serenitylab/meditation-pipeline/internal/records"
	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
)

// TextBackend generates one assistant reply.
type TextBackend interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// ResponderConfig configures the text stage.
type ResponderConfig struct {
	APIKey      string
	PersonaName string
}

// Responder produces the reply text for a user message. It never fails:
// when the backend is unreachable or the credential looks invalid, a
// keyword-matched canned reply is returned instead.
type Responder struct {
	backend TextBackend
	cfg     ResponderConfig
	records *records.BestEffort
	emitter telemetry.Emitter
}

// NewResponder wires the text stage.
func NewResponder(backend TextBackend, cfg ResponderConfig, store *records.BestEffort, emitter telemetry.Emitter) *Responder {
	if cfg.PersonaName == "" {
		cfg.PersonaName = "Danny"
	}
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	return &Responder{backend: backend, cfg: cfg, records: store, emitter: emitter}
}

func (r *Responder) systemPrompt() string {
	return fmt.Sprintf("You are %s, a compassionate meditation and wellness guide. "+
		"Respond warmly and briefly, in two to four sentences. Offer gentle, "+
		"practical guidance for relaxation, breathing, sleep and mindfulness. "+
		"Never give medical advice.", r.cfg.PersonaName)
}

// Respond returns the reply for the user message. The returned string is
// always non-empty.
func (r *Responder) Respond(ctx context.Context, userText, subjectName string) string {
	rec := r.createRecord(ctx, userText, subjectName)
	correlation := telemetry.Correlation{RecordID: rec.ID, Stage: "text"}

	if !config.LooksLikeAPIKey(r.cfg.APIKey, "sk-", 20) {
		r.emitter.EmitLog("info", "text backend credential looks invalid, using canned reply", nil, correlation)
		return r.fallback(ctx, rec.ID, userText, "credential rejected before call")
	}
	if r.backend == nil {
		return r.fallback(ctx, rec.ID, userText, "no text backend configured")
	}

	reply, err := r.backend.Generate(ctx, r.systemPrompt(), userText)
	if err != nil {
		r.emitter.EmitLog("warn", "text backend failed: "+err.Error(), nil, correlation)
		return r.fallback(ctx, rec.ID, userText, err.Error())
	}

	if r.records != nil {
		r.records.Update(ctx, rec.ID, records.Patch{
			Status:   records.StatusPtr(records.StatusCompleted),
			Metadata: map[string]any{"reply_chars": len(reply)},
		})
	}
	return reply
}

func (r *Responder) createRecord(ctx context.Context, userText, subjectName string) records.Record {
	if r.records == nil {
		return records.Record{}
	}
	return r.records.Create(ctx, records.Record{
		SubjectName: subjectName,
		SourceText:  userText,
		Kind:        records.KindReply,
		Status:      records.StatusPending,
	})
}

func (r *Responder) fallback(ctx context.Context, recordID, userText, reason string) string {
	r.emitter.EmitMetric(telemetry.MetricFallbacksTotal, 1, "count",
		map[string]string{"stage": "text"}, telemetry.Correlation{RecordID: recordID, Stage: "text"})
	reply := CannedReply(userText)
	if r.records != nil && recordID != "" {
		r.records.Update(ctx, recordID, records.Patch{
			Status:   records.StatusPtr(records.StatusFailed),
			Metadata: map[string]any{"fallback_used": true, "failure_reason": reason},
		})
	}
	return reply
}

var cannedReplies = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"stress", "anxious", "anxiety", "worried", "overwhelmed", "panic"},
		reply: "I hear that things feel heavy right now. Let's try a simple breathing exercise together: " +
			"breathe in for 4 counts, hold for 4, then breathe out for 6. Even a few rounds of this " +
			"can help your body settle.",
	},
	{
		keywords: []string{"sleep", "insomnia", "tired", "rest", "awake"},
		reply: "Rest can be hard to find when the mind is busy. Try a gentle body scan tonight: " +
			"starting at your toes, slowly notice and relax each part of your body. " +
			"Let your breath grow slower as you move upward.",
	},
	{
		keywords: []string{"meditat", "mindful", "breathe", "breath", "calm"},
		reply: "Meditation doesn't need to be complicated. Even 5 minutes a day of sitting quietly " +
			"and following your breath can make a real difference. Would you like to simply " +
			"notice your next few breaths with me?",
	},
}

const genericReply = "Thank you for sharing that with me. Whatever you're carrying right now, " +
	"you're welcome to set it down for a moment. Take a slow breath, and know that " +
	"showing up here is already a kind thing to do for yourself."

// CannedReply returns the keyword-matched deterministic reply for the text.
func CannedReply(userText string) string {
	lower := strings.ToLower(userText)
	for _, entry := range cannedReplies {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.reply
			}
		}
	}
	return genericReply
}
