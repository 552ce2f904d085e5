// medp-runner runs one meditation response pipeline from the command
// line: reply text, speech synthesis, video submission and polling.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/serenitylab/meditation-pipeline/internal/blobstore"
	"github.com/serenitylab/meditation-pipeline/internal/config"
	"github.com/serenitylab/meditation-pipeline/internal/events"
	"github.com/serenitylab/meditation-pipeline/internal/pipeline"
	"github.com/serenitylab/meditation-pipeline/internal/records"
	"github.com/serenitylab/meditation-pipeline/internal/telemetry"
	llmopenai "github.com/serenitylab/meditation-pipeline/providers/llm/openai"
	"github.com/serenitylab/meditation-pipeline/providers/tts/elevenlabs"
	"github.com/serenitylab/meditation-pipeline/providers/tts/polly"
	"github.com/serenitylab/meditation-pipeline/providers/video/tavus"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "medp-runner: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("medp-runner", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "optional TOML config file")
	message := flags.String("message", "", "user message to respond to")
	subject := flags.String("subject", "", "optional user name")
	placeholder := flags.Bool("placeholder", false, "print the placeholder video URL and exit")
	purgeHours := flags.Int("purge-hours", 0, "delete records older than this many hours and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Missing .env files are fine; explicit ones are loaded before FromEnv.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath, cfg)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	emitter := telemetry.NewPipeline(telemetry.NewWriterSink(stderr), telemetry.Config{})
	defer emitter.Close()

	rawStore := buildRecordStore(cfg, emitter)

	if *purgeHours > 0 {
		return runPurge(rawStore, *purgeHours, stdout)
	}

	orchestrator, publisher, err := buildOrchestrator(cfg, emitter, rawStore)
	if err != nil {
		return err
	}
	defer publisher.Flush()

	if *placeholder {
		url, ok := orchestrator.PlaceholderVideo()
		if !ok {
			return fmt.Errorf("no placeholder asset configured")
		}
		_, _ = fmt.Fprintln(stdout, url)
		return nil
	}

	if strings.TrimSpace(*message) == "" {
		printUsage(stdout)
		return fmt.Errorf("a -message is required")
	}

	ctx := context.Background()
	publisher.Publish(events.Event{Type: events.TypeSessionStarted, SessionID: "cli"})
	outcome := orchestrator.AutoVideoResponse(ctx, *message, *subject, "cli")
	publisher.Publish(events.Event{Type: events.TypeSessionEnded, SessionID: "cli"})

	encoded, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(encoded))
	return nil
}

// runPurge is external housekeeping. The pipeline itself never deletes
// records.
func runPurge(store records.Store, hours int, stdout io.Writer) error {
	keeper, ok := store.(records.Housekeeper)
	if !ok {
		return fmt.Errorf("configured record store does not support purging")
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	purged, err := keeper.PurgeOlderThan(context.Background(), cutoff)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "purged %d records older than %s\n", purged, cutoff.Format(time.RFC3339))
	return nil
}

func buildOrchestrator(cfg config.Config, emitter telemetry.Emitter, rawStore records.Store) (*pipeline.Orchestrator, *events.Publisher, error) {
	store := records.NewBestEffort(rawStore, emitter)

	var textBackend pipeline.TextBackend
	speechBackends := make([]pipeline.SpeechBackend, 0, 2)
	if config.LooksLikeAPIKey(cfg.Text.APIKey, "sk-", 20) {
		client, err := llmopenai.NewFromAPIKey(cfg.Text.APIKey, cfg.Text.Model)
		if err != nil {
			return nil, nil, err
		}
		textBackend = client
	}
	if cfg.Speech.ElevenLabsAPIKey != "" {
		client, err := elevenlabs.New(elevenlabs.Config{
			APIKey:  cfg.Speech.ElevenLabsAPIKey,
			VoiceID: cfg.Speech.VoiceID,
			ModelID: cfg.Speech.ModelID,
			Timeout: cfg.Speech.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		speechBackends = append(speechBackends, namedSpeechBackend{
			name: "elevenlabs",
			fn: func(ctx context.Context, text string) ([]byte, error) {
				return client.Synthesize(ctx, text, elevenlabs.DefaultVoiceSettings())
			},
		})
	}
	if cfg.Speech.PollyRegion != "" {
		client := polly.New(polly.Config{Region: cfg.Speech.PollyRegion, VoiceID: cfg.Speech.PollyVoiceID})
		speechBackends = append(speechBackends, namedSpeechBackend{name: "polly", fn: client.Synthesize})
	}
	if openaiClient, ok := textBackend.(*llmopenai.Client); ok {
		speechBackends = append(speechBackends, namedSpeechBackend{name: "openai", fn: openaiClient.Synthesize})
	}

	responder := pipeline.NewResponder(textBackend, pipeline.ResponderConfig{
		APIKey:      cfg.Text.APIKey,
		PersonaName: cfg.Text.PersonaName,
	}, store, emitter)

	synthesizer := pipeline.NewSynthesizer(pipeline.SynthesizerConfig{
		Backends: speechBackends,
		Blobs:    buildBlobStore(cfg),
		Records:  store,
		Emitter:  emitter,
	})

	// Without a video credential the compositor and poller stay nil and
	// the orchestrator answers with text and audio plus a notice.
	var (
		compositor *pipeline.Compositor
		poller     *pipeline.Poller
	)
	if cfg.Video.APIKey != "" {
		videoClient, err := tavus.New(tavus.Config{
			APIKey:         cfg.Video.APIKey,
			BaseURL:        cfg.Video.BaseURL,
			PersonaID:      cfg.Video.PersonaID,
			ReplicaID:      cfg.Video.ReplicaID,
			MaxScriptChars: cfg.Video.MaxScriptChars,
			SubmitTimeout:  cfg.Video.SubmitTimeout,
			StatusTimeout:  cfg.Video.StatusTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		compositor = pipeline.NewCompositor(videoClient, store, emitter)
		poller = pipeline.NewPoller(videoClient, pipeline.PollConfig{
			MaxAttempts:   cfg.Poll.MaxAttempts,
			Interval:      cfg.Poll.Interval,
			BackoffBase:   cfg.Poll.BackoffBase,
			BackoffCap:    cfg.Poll.BackoffCap,
			BackoffFactor: cfg.Poll.BackoffFactor,
		}, store, emitter)
	} else {
		emitter.EmitLog("warn", "no video api key configured, video generation disabled", nil,
			telemetry.Correlation{Stage: "startup"})
	}

	publisher := events.NewPublisher(buildEventSink(cfg), emitter)

	return pipeline.NewOrchestrator(responder, synthesizer, compositor, poller, publisher, emitter,
		pipeline.OrchestratorConfig{PlaceholderAssetURL: cfg.Video.PlaceholderAssetURL}), publisher, nil
}

func buildRecordStore(cfg config.Config, emitter telemetry.Emitter) records.Store {
	if cfg.Records.BaseURL == "" {
		return records.NewMemoryStore()
	}
	store, err := records.NewHTTPStore(records.HTTPStoreConfig{
		BaseURL: cfg.Records.BaseURL,
		APIKey:  cfg.Records.APIKey,
	})
	if err != nil {
		emitter.EmitLog("warn", "invalid records endpoint, falling back to in-memory records: "+err.Error(),
			map[string]string{"endpoint": cfg.Records.BaseURL},
			telemetry.Correlation{Stage: "startup"})
		return records.NewMemoryStore()
	}
	return store
}

func buildBlobStore(cfg config.Config) blobstore.Store {
	if cfg.Blobs.NATSURL == "" {
		return nil
	}
	store, err := connectNATSStore(cfg)
	if err != nil {
		return nil
	}
	return store
}

func buildEventSink(cfg config.Config) events.Sink {
	if cfg.Events.WebhookURL == "" {
		return events.Noop{}
	}
	sink, err := events.NewWebhookSink(events.WebhookConfig{
		URL:     cfg.Events.WebhookURL,
		Timeout: cfg.Events.Timeout,
	})
	if err != nil {
		return events.Noop{}
	}
	return sink
}

// namedSpeechBackend adapts a synthesis func to the pipeline interface.
type namedSpeechBackend struct {
	name string
	fn   func(ctx context.Context, text string) ([]byte, error)
}

func (b namedSpeechBackend) Name() string { return b.name }

func (b namedSpeechBackend) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return b.fn(ctx, text)
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "medp-runner usage:")
	_, _ = fmt.Fprintln(w, "  medp-runner -message \"I'm feeling anxious\" [-subject Sam] [-config medp.toml]")
	_, _ = fmt.Fprintln(w, "  medp-runner -placeholder")
	_, _ = fmt.Fprintln(w, "  medp-runner -purge-hours 24")
	_, _ = fmt.Fprintln(w, "Configuration comes from MEDP_* environment variables, an optional .env file,")
	_, _ = fmt.Fprintln(w, "and an optional TOML file passed with -config.")
}
