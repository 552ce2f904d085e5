// Package elevenlabs is the primary speech synthesis backend. It calls the
// ElevenLabs text-to-speech API and returns MP3 audio bytes.
package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
	"github.com/serenitylab/meditation-pipeline/providers/common/httpadapter"
)

// Well-known voice IDs from the default catalog.
const (
	VoiceRachel = "21m00Tcm4TlvDq8ikWAM"
	VoiceAdam   = "pNInz6obpgDQGcFmaJgB"
	VoiceBella  = "EXAVITQu4vr4xnSDxMaL"
)

// DefaultModelID is the synthesis model used when none is configured.
const DefaultModelID = "eleven_monolingual_v1"

// VoiceSettings tunes synthesis output.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the settings tuned for calm guided speech.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		UseSpeakerBoost: true,
	}
}

// Config configures the ElevenLabs client.
type Config struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
	Timeout time.Duration
}

// Client synthesizes speech via the ElevenLabs API.
type Client struct {
	http    *httpadapter.Client
	voiceID string
	modelID string
}

// New validates the config and returns a client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceRachel
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient, err := httpadapter.New(httpadapter.Config{
		Backend:      "elevenlabs",
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "xi-api-key",
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: httpClient, voiceID: cfg.VoiceID, modelID: cfg.ModelID}, nil
}

// Synthesize renders the text as MP3 audio using the configured voice.
func (c *Client) Synthesize(ctx context.Context, text string, settings VoiceSettings) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	body := map[string]any{
		"text":           text,
		"model_id":       c.modelID,
		"voice_settings": settings,
	}
	audio, err := c.http.PostJSONRaw(ctx, "/v1/text-to-speech/"+c.voiceID, body, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fault.New(fault.KindUpstream, "elevenlabs", "synthesis returned no audio")
	}
	return audio, nil
}

// Voice is one entry of the account voice catalog.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Voices lists the voices available to the configured account.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := c.http.GetJSON(ctx, "/v1/voices", &out); err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return out.Voices, nil
}
