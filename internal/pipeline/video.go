package pipeline

import (
	"context"
	"strings"

	"github.com/serenitylab/meditation-pipeline/internal/records"
	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
	"github.com/serenitylab/meditation-pipeline/providers/video/tavus"
)

// VideoBackend is the subset of the video client used by the compositor.
type VideoBackend interface {
	CreateFromScript(ctx context.Context, script string) (tavus.Job, error)
	CreateFromAudioURL(ctx context.Context, audioURL string) (tavus.Job, error)
	CreateFromAudio(ctx context.Context, audio []byte, filename string) (tavus.Job, error)
}

// Compositor submits talking-head render jobs and records their lifecycle.
type Compositor struct {
	backend VideoBackend
	records *records.BestEffort
	emitter telemetry.Emitter
}

// NewCompositor wires the video stage.
func NewCompositor(backend VideoBackend, store *records.BestEffort, emitter telemetry.Emitter) *Compositor {
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	return &Compositor{backend: backend, records: store, emitter: emitter}
}

// FromScript submits a script-driven render. The backend synthesizes its
// own speech from the text.
func (c *Compositor) FromScript(ctx context.Context, script, subjectName string) (tavus.Job, string, error) {
	rec := c.createRecord(ctx, script, subjectName)
	job, err := c.backend.CreateFromScript(ctx, script)
	if err != nil {
		c.failRecord(ctx, rec.ID, err)
		return tavus.Job{}, rec.ID, err
	}
	c.attachJob(ctx, rec.ID, job)
	return job, rec.ID, nil
}

// FromAudio submits an audio-driven render. Hosted audio goes by URL;
// process-local audio is uploaded as raw bytes instead. sourceText is the
// reply the audio was rendered from; it goes on the record so the entry
// stays self-describing.
func (c *Compositor) FromAudio(ctx context.Context, audio Audio, sourceText, subjectName string) (tavus.Job, string, error) {
	rec := c.createRecord(ctx, sourceText, subjectName)

	var (
		job tavus.Job
		err error
	)
	if audio.URL != "" && !strings.HasPrefix(audio.URL, "memory://") {
		job, err = c.backend.CreateFromAudioURL(ctx, audio.URL)
	} else {
		job, err = c.backend.CreateFromAudio(ctx, audio.Bytes, "reply.mp3")
	}
	if err != nil {
		c.failRecord(ctx, rec.ID, err)
		return tavus.Job{}, rec.ID, err
	}
	c.attachJob(ctx, rec.ID, job)
	return job, rec.ID, nil
}

func (c *Compositor) createRecord(ctx context.Context, script, subjectName string) records.Record {
	if c.records == nil {
		return records.Record{}
	}
	return c.records.Create(ctx, records.Record{
		SubjectName: subjectName,
		SourceText:  script,
		Kind:        records.KindVideo,
		Status:      records.StatusPending,
	})
}

func (c *Compositor) attachJob(ctx context.Context, recordID string, job tavus.Job) {
	if c.records == nil || recordID == "" {
		return
	}
	meta := map[string]any{
		"text_truncated": job.Truncated,
	}
	if job.OriginalTextLength > 0 {
		meta["original_text_length"] = job.OriginalTextLength
	}
	c.records.Update(ctx, recordID, records.Patch{
		JobID:    records.StringPtr(job.VideoID),
		Metadata: meta,
	})
}

func (c *Compositor) failRecord(ctx context.Context, recordID string, err error) {
	if c.records == nil || recordID == "" {
		return
	}
	c.records.Update(ctx, recordID, records.Patch{
		Status:   records.StatusPtr(records.StatusFailed),
		Metadata: map[string]any{"failure_reason": err.Error()},
	})
}
