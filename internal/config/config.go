// Package config carries the injected configuration for the response
// pipeline. Credentials and identifiers are supplied by the embedding
// process via environment variables or a TOML file; nothing in this module
// reads ambient globals after construction.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Text configures the text-generation backend.
type Text struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	PersonaName string  `toml:"persona_name"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// Speech configures voice synthesis.
type Speech struct {
	ElevenLabsAPIKey string        `toml:"elevenlabs_api_key"`
	VoiceID          string        `toml:"voice_id"`
	ModelID          string        `toml:"model_id"`
	PollyRegion      string        `toml:"polly_region"`
	PollyVoiceID     string        `toml:"polly_voice_id"`
	Timeout          time.Duration `toml:"timeout"`
}

// Video configures talking-head video generation.
type Video struct {
	APIKey              string        `toml:"api_key"`
	BaseURL             string        `toml:"base_url"`
	PersonaID           string        `toml:"persona_id"`
	ReplicaID           string        `toml:"replica_id"`
	MaxScriptChars      int           `toml:"max_script_chars"`
	SubmitTimeout       time.Duration `toml:"submit_timeout"`
	StatusTimeout       time.Duration `toml:"status_timeout"`
	PlaceholderAssetURL string        `toml:"placeholder_asset_url"`
}

// Poll configures completion polling.
type Poll struct {
	MaxAttempts   int           `toml:"max_attempts"`
	Interval      time.Duration `toml:"interval"`
	BackoffBase   time.Duration `toml:"backoff_base"`
	BackoffCap    time.Duration `toml:"backoff_cap"`
	BackoffFactor float64       `toml:"backoff_factor"`
}

// Records configures the session record store.
type Records struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// Blobs configures audio blob storage.
type Blobs struct {
	NATSURL       string `toml:"nats_url"`
	Bucket        string `toml:"bucket"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Events configures the analytics webhook.
type Events struct {
	WebhookURL string        `toml:"webhook_url"`
	Timeout    time.Duration `toml:"timeout"`
}

// Config is the root injected configuration.
type Config struct {
	Text    Text    `toml:"text"`
	Speech  Speech  `toml:"speech"`
	Video   Video   `toml:"video"`
	Poll    Poll    `toml:"poll"`
	Records Records `toml:"records"`
	Blobs   Blobs   `toml:"blobs"`
	Events  Events  `toml:"events"`
}

// Default returns a configuration with every tunable at its documented
// default. Credentials default to empty and must be supplied.
func Default() Config {
	return Config{
		Text: Text{
			Model:       "gpt-3.5-turbo",
			PersonaName: "Danny",
			MaxTokens:   200,
			Temperature: 0.7,
		},
		Speech: Speech{
			VoiceID:      "21m00Tcm4TlvDq8ikWAM",
			ModelID:      "eleven_monolingual_v1",
			PollyRegion:  "us-east-1",
			PollyVoiceID: "Joanna",
			Timeout:      30 * time.Second,
		},
		Video: Video{
			BaseURL:        "https://tavusapi.com",
			MaxScriptChars: 500,
			SubmitTimeout:  60 * time.Second,
			StatusTimeout:  15 * time.Second,
		},
		Poll: Poll{
			MaxAttempts:   60,
			Interval:      10 * time.Second,
			BackoffBase:   10 * time.Second,
			BackoffCap:    30 * time.Second,
			BackoffFactor: 1.2,
		},
		Events: Events{
			Timeout: 5 * time.Second,
		},
	}
}

// FromEnv loads configuration from MEDP_* environment variables on top of
// defaults.
func FromEnv() Config {
	cfg := Default()
	cfg.Text.APIKey = os.Getenv("MEDP_OPENAI_API_KEY")
	cfg.Text.Model = envString("MEDP_OPENAI_MODEL", cfg.Text.Model)
	cfg.Text.PersonaName = envString("MEDP_PERSONA_NAME", cfg.Text.PersonaName)
	cfg.Speech.ElevenLabsAPIKey = os.Getenv("MEDP_ELEVENLABS_API_KEY")
	cfg.Speech.VoiceID = envString("MEDP_ELEVENLABS_VOICE_ID", cfg.Speech.VoiceID)
	cfg.Speech.ModelID = envString("MEDP_ELEVENLABS_MODEL", cfg.Speech.ModelID)
	cfg.Speech.PollyRegion = envString("MEDP_POLLY_REGION", envString("AWS_REGION", cfg.Speech.PollyRegion))
	cfg.Speech.PollyVoiceID = envString("MEDP_POLLY_VOICE", cfg.Speech.PollyVoiceID)
	cfg.Video.APIKey = os.Getenv("MEDP_TAVUS_API_KEY")
	cfg.Video.BaseURL = envString("MEDP_TAVUS_ENDPOINT", cfg.Video.BaseURL)
	cfg.Video.PersonaID = os.Getenv("MEDP_TAVUS_PERSONA_ID")
	cfg.Video.ReplicaID = os.Getenv("MEDP_TAVUS_REPLICA_ID")
	cfg.Video.PlaceholderAssetURL = os.Getenv("MEDP_PLACEHOLDER_VIDEO_URL")
	cfg.Poll.MaxAttempts = envInt("MEDP_POLL_MAX_ATTEMPTS", cfg.Poll.MaxAttempts)
	cfg.Records.BaseURL = os.Getenv("MEDP_RECORDS_ENDPOINT")
	cfg.Records.APIKey = os.Getenv("MEDP_RECORDS_API_KEY")
	cfg.Blobs.NATSURL = os.Getenv("MEDP_NATS_URL")
	cfg.Blobs.Bucket = envString("MEDP_BLOB_BUCKET", "audio-files")
	cfg.Blobs.PublicBaseURL = os.Getenv("MEDP_BLOB_PUBLIC_BASE_URL")
	cfg.Events.WebhookURL = os.Getenv("MEDP_WEBHOOK_URL")
	return cfg
}

// LoadFile overlays a TOML file onto the supplied configuration.
func LoadFile(path string, cfg Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// placeholderMarkers flag credentials copied from documentation rather
// than issued by a backend.
var placeholderMarkers = []string{"your-", "changeme", "change-me", "placeholder", "xxxx", "<", ">"}

// LooksLikeAPIKey applies the syntactic credential checks performed before
// any network call: non-empty, expected prefix when one is known, minimum
// length, no placeholder markers.
func LooksLikeAPIKey(key, expectedPrefix string, minLength int) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	if minLength > 0 && len(key) < minLength {
		return false
	}
	if expectedPrefix != "" && !strings.HasPrefix(key, expectedPrefix) {
		return false
	}
	lower := strings.ToLower(key)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
