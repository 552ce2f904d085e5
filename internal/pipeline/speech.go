package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serenitylab/meditation-pipeline/internal/blobstore"
	"github.com/serenitylab/meditation-pipeline/internal/fault"
	"github.com/serenitylab/meditation-pipeline/internal/playback"
	"github.com/serenitylab/meditation-pipeline/internal/records"
	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
)

// SpeechBackend renders text as audio bytes.
type SpeechBackend interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Audio is the result of one synthesis. Either Bytes or URL is populated,
// or SpokenLocally is set when every remote backend failed and the text
// was handed to the on-device speaker instead.
type Audio struct {
	Bytes   []byte
	URL     string
	Backend string
	// DurationSeconds is a display estimate derived from text length
	// (characters per second per backend), not measured audio duration.
	DurationSeconds float64
	ByteSize        int
	SpokenLocally   bool
}

// Playable reports whether the audio carries a retrievable artifact.
func (a Audio) Playable() bool {
	return len(a.Bytes) > 0 || a.URL != ""
}

const (
	primaryCharsPerSecond  = 15.0
	fallbackCharsPerSecond = 10.0
)

// Synthesizer runs the speech fallback chain: each configured backend in
// order, then the on-device speaker as a fire-and-forget last resort.
type Synthesizer struct {
	backends []SpeechBackend
	speaker  playback.Speaker
	slot     *playback.Slot
	blobs    blobstore.Store
	memory   *blobstore.MemoryStore
	records  *records.BestEffort
	emitter  telemetry.Emitter
	now      func() time.Time
}

// SynthesizerConfig wires the synthesis stage.
type SynthesizerConfig struct {
	Backends []SpeechBackend
	Speaker  playback.Speaker
	Slot     *playback.Slot
	Blobs    blobstore.Store
	Records  *records.BestEffort
	Emitter  telemetry.Emitter
}

// NewSynthesizer builds the speech stage.
func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = telemetry.Noop{}
	}
	slot := cfg.Slot
	if slot == nil {
		slot = playback.NewSlot()
	}
	return &Synthesizer{
		backends: cfg.Backends,
		speaker:  cfg.Speaker,
		slot:     slot,
		blobs:    cfg.Blobs,
		memory:   blobstore.NewMemoryStore(),
		records:  cfg.Records,
		emitter:  emitter,
		now:      time.Now,
	}
}

// SynthesizeBytes renders the text through the fallback chain and returns
// raw audio bytes. When every backend fails the text is spoken on-device
// and the returned Audio carries no artifact; the error stays nil so the
// conversation continues.
func (s *Synthesizer) SynthesizeBytes(ctx context.Context, text, subjectName string) (Audio, error) {
	audio, recordID, err := s.synthesize(ctx, text, subjectName)
	if err != nil {
		return audio, err
	}
	if audio.Playable() {
		s.completeRecord(ctx, recordID, audio)
	}
	return audio, nil
}

// synthesize runs the backend chain without completing the record, so URL
// callers can defer completion until the artifact location is known.
func (s *Synthesizer) synthesize(ctx context.Context, text, subjectName string) (Audio, string, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, "", fmt.Errorf("text is required")
	}
	rec := s.createRecord(ctx, text, subjectName)
	correlation := telemetry.Correlation{RecordID: rec.ID, Stage: "speech"}

	chars := float64(len(text))
	for i, backend := range s.backends {
		audio, err := backend.Synthesize(ctx, text)
		if err != nil {
			s.emitter.EmitLog("warn", fmt.Sprintf("speech backend %s failed: %v", backend.Name(), err),
				map[string]string{"backend": backend.Name()}, correlation)
			continue
		}
		rate := primaryCharsPerSecond
		if i > 0 {
			rate = fallbackCharsPerSecond
		}
		result := Audio{
			Bytes:           audio,
			Backend:         backend.Name(),
			DurationSeconds: chars / rate,
			ByteSize:        len(audio),
		}
		return result, rec.ID, nil
	}

	s.emitter.EmitMetric(telemetry.MetricFallbacksTotal, 1, "count",
		map[string]string{"stage": "speech"}, correlation)
	s.speakLocally(ctx, text, correlation)
	s.failRecord(ctx, rec.ID, "all remote speech backends failed")
	return Audio{
		Backend:         "local",
		DurationSeconds: chars / fallbackCharsPerSecond,
		SpokenLocally:   true,
	}, rec.ID, nil
}

// SynthesizeURL renders the text and persists the audio, returning a
// hosted URL. When the blob store rejects the upload the bytes land in an
// ephemeral in-process store and the URL uses the memory scheme. The
// record completes only once the artifact location is known, so a
// completed speech record always carries its URL.
func (s *Synthesizer) SynthesizeURL(ctx context.Context, text, subjectName string) (Audio, error) {
	audio, recordID, err := s.synthesize(ctx, text, subjectName)
	if err != nil || !audio.Playable() {
		return audio, err
	}

	key := fmt.Sprintf("speech/%d-%s.mp3", s.now().UnixMilli(), uuid.NewString()[:8])
	store := s.blobs
	if store == nil {
		store = s.memory
	}
	obj, uploadErr := store.Upload(ctx, key, audio.Bytes, "audio/mpeg")
	if uploadErr != nil {
		s.emitter.EmitLog("warn", "blob upload failed, keeping audio in process memory: "+uploadErr.Error(),
			nil, telemetry.Correlation{Stage: "speech"})
		obj, uploadErr = s.memory.Upload(ctx, key, audio.Bytes, "audio/mpeg")
		if uploadErr != nil {
			s.failRecord(ctx, recordID, "audio upload failed: "+uploadErr.Error())
			return audio, fault.Wrap(fault.KindPersistence, "blobstore", uploadErr)
		}
	}
	audio.URL = obj.URL
	s.completeRecord(ctx, recordID, audio)
	return audio, nil
}

// FetchBlob resolves previously stored audio bytes for a memory URL.
func (s *Synthesizer) FetchBlob(ctx context.Context, url string) ([]byte, error) {
	key := strings.TrimPrefix(url, "memory://")
	return s.memory.Get(ctx, key)
}

func (s *Synthesizer) speakLocally(ctx context.Context, text string, correlation telemetry.Correlation) {
	if s.speaker == nil {
		return
	}
	handle, err := s.speaker.Speak(ctx, text)
	if err != nil {
		s.emitter.EmitLog("warn", "on-device speech failed: "+err.Error(), nil, correlation)
		return
	}
	s.slot.Swap(handle)
}

func (s *Synthesizer) createRecord(ctx context.Context, text, subjectName string) records.Record {
	if s.records == nil {
		return records.Record{}
	}
	return s.records.Create(ctx, records.Record{
		SubjectName: subjectName,
		SourceText:  text,
		Kind:        records.KindSpeech,
		Status:      records.StatusPending,
	})
}

func (s *Synthesizer) completeRecord(ctx context.Context, id string, audio Audio) {
	if s.records == nil || id == "" {
		return
	}
	patch := records.Patch{
		Status:          records.StatusPtr(records.StatusCompleted),
		DurationSeconds: records.IntPtr(int(audio.DurationSeconds + 0.5)),
		ByteSize:        records.Int64Ptr(int64(audio.ByteSize)),
		Metadata:        map[string]any{"backend": audio.Backend},
	}
	if audio.URL != "" {
		patch.ArtifactURL = records.StringPtr(audio.URL)
	}
	s.records.Update(ctx, id, patch)
}

func (s *Synthesizer) failRecord(ctx context.Context, id, reason string) {
	if s.records == nil || id == "" {
		return
	}
	s.records.Update(ctx, id, records.Patch{
		Status:   records.StatusPtr(records.StatusFailed),
		Metadata: map[string]any{"failure_reason": reason},
	})
}
