// Package tavus drives the talking-head video backend. Videos render
// asynchronously: submission returns a job that the completion poller
// tracks until the backend reports a terminal status.
package tavus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
	"github.com/serenitylab/meditation-pipeline/providers/common/httpadapter"
)

// JobStatus is the normalized render state.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusGenerating JobStatus = "generating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status ends the render lifecycle.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NormalizeStatus maps backend status strings onto the local vocabulary.
// The backend reports success as either "ready" or "completed" depending
// on the render path.
func NormalizeStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ready", "completed":
		return StatusCompleted
	case "failed", "error", "deleted":
		return StatusFailed
	case "generating", "rendering":
		return StatusGenerating
	default:
		return StatusQueued
	}
}

// Job is one video render tracked by ID.
type Job struct {
	VideoID            string
	Status             JobStatus
	HostedURL          string
	DownloadURL        string
	StreamURL          string
	DurationSeconds    float64
	Truncated          bool
	OriginalTextLength int
	FailureReason      string
}

// ResultURL returns the best playable reference for a completed job.
func (j Job) ResultURL() string {
	if j.HostedURL != "" {
		return j.HostedURL
	}
	if j.StreamURL != "" {
		return j.StreamURL
	}
	return j.DownloadURL
}

// Config configures the video backend client.
type Config struct {
	APIKey          string
	BaseURL         string
	UploadBaseURL   string
	PersonaID       string
	ReplicaID       string
	MaxScriptChars  int
	SubmitTimeout   time.Duration
	StatusTimeout   time.Duration
	VideoNamePrefix string
}

// Client submits render jobs and reads their status.
type Client struct {
	api    *httpadapter.Client
	upload *httpadapter.Client
	cfg    Config
}

// New validates the config and returns a client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("tavus api key is required")
	}
	if cfg.PersonaID == "" && cfg.ReplicaID == "" {
		return nil, errors.New("a persona id or replica id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://tavusapi.com"
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = "https://api.tavus.io"
	}
	if cfg.MaxScriptChars <= 0 {
		cfg.MaxScriptChars = 500
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 60 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 15 * time.Second
	}
	if cfg.VideoNamePrefix == "" {
		cfg.VideoNamePrefix = "meditation-reply"
	}
	api, err := httpadapter.New(httpadapter.Config{
		Backend:      "tavus",
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "x-api-key",
		Timeout:      cfg.SubmitTimeout,
	})
	if err != nil {
		return nil, err
	}
	upload, err := httpadapter.New(httpadapter.Config{
		Backend:      "tavus",
		BaseURL:      cfg.UploadBaseURL,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
		Timeout:      cfg.SubmitTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{api: api, upload: upload, cfg: cfg}, nil
}

type createResponse struct {
	VideoID   string `json:"video_id"`
	Status    string `json:"status"`
	HostedURL string `json:"hosted_url"`
}

// CreateFromScript submits a render whose speech is synthesized by the
// backend from the script text. Scripts longer than the configured limit
// are truncated and the job marked accordingly.
func (c *Client) CreateFromScript(ctx context.Context, script string) (Job, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return Job{}, errors.New("script is required")
	}
	originalLen := utf8.RuneCountInString(script)
	truncated := false
	if originalLen > c.cfg.MaxScriptChars {
		script = string([]rune(script)[:c.cfg.MaxScriptChars])
		truncated = true
	}

	body := map[string]any{
		"script":     script,
		"video_name": fmt.Sprintf("%s-%d", c.cfg.VideoNamePrefix, time.Now().UnixMilli()),
	}
	if c.cfg.PersonaID != "" {
		body["persona_id"] = c.cfg.PersonaID
	}
	if c.cfg.ReplicaID != "" {
		body["replica_id"] = c.cfg.ReplicaID
	}

	var resp createResponse
	if err := c.api.PostJSON(ctx, "/v2/videos", body, &resp); err != nil {
		return Job{}, err
	}
	if resp.VideoID == "" {
		return Job{}, fault.New(fault.KindUpstream, "tavus", "submission returned no video id")
	}
	return Job{
		VideoID:            resp.VideoID,
		Status:             NormalizeStatus(resp.Status),
		HostedURL:          resp.HostedURL,
		Truncated:          truncated,
		OriginalTextLength: originalLen,
	}, nil
}

// CreateFromAudioURL submits a render driven by previously uploaded audio.
// Audio-driven renders require a replica.
func (c *Client) CreateFromAudioURL(ctx context.Context, audioURL string) (Job, error) {
	if audioURL == "" {
		return Job{}, errors.New("audio url is required")
	}
	if c.cfg.ReplicaID == "" {
		return Job{}, fault.New(fault.KindConfiguration, "tavus", "audio-driven renders require a replica id")
	}
	body := map[string]any{
		"replica_id": c.cfg.ReplicaID,
		"audio_url":  audioURL,
		"video_name": fmt.Sprintf("%s-%d", c.cfg.VideoNamePrefix, time.Now().UnixMilli()),
	}
	var resp createResponse
	if err := c.api.PostJSON(ctx, "/v2/videos", body, &resp); err != nil {
		return Job{}, err
	}
	if resp.VideoID == "" {
		return Job{}, fault.New(fault.KindUpstream, "tavus", "submission returned no video id")
	}
	return Job{VideoID: resp.VideoID, Status: NormalizeStatus(resp.Status), HostedURL: resp.HostedURL}, nil
}

// CreateFromAudio uploads raw audio bytes and submits a render in one
// multipart request against the upload endpoint.
func (c *Client) CreateFromAudio(ctx context.Context, audio []byte, filename string) (Job, error) {
	if len(audio) == 0 {
		return Job{}, errors.New("audio data is required")
	}
	if c.cfg.ReplicaID == "" {
		return Job{}, fault.New(fault.KindConfiguration, "tavus", "audio-driven renders require a replica id")
	}
	if filename == "" {
		filename = "reply.mp3"
	}
	var resp createResponse
	err := c.upload.PostMultipart(ctx, "/videos",
		map[string]string{"replica_id": c.cfg.ReplicaID},
		[]httpadapter.MultipartFile{{Field: "audio_file", Filename: filename, Data: audio}},
		&resp)
	if err != nil {
		return Job{}, err
	}
	if resp.VideoID == "" {
		return Job{}, fault.New(fault.KindUpstream, "tavus", "upload returned no video id")
	}
	return Job{VideoID: resp.VideoID, Status: NormalizeStatus(resp.Status), HostedURL: resp.HostedURL}, nil
}

type statusResponse struct {
	VideoID     string  `json:"video_id"`
	Status      string  `json:"status"`
	HostedURL   string  `json:"hosted_url"`
	DownloadURL string  `json:"download_url"`
	StreamURL   string  `json:"stream_url"`
	Duration    float64 `json:"duration"`
	ErrorDetail string  `json:"error_details"`
}

// Status reads the current state of a render job.
func (c *Client) Status(ctx context.Context, videoID string) (Job, error) {
	if videoID == "" {
		return Job{}, errors.New("video id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusTimeout)
	defer cancel()

	var resp statusResponse
	if err := c.api.GetJSON(ctx, "/v2/videos/"+videoID, &resp); err != nil {
		return Job{}, err
	}
	return Job{
		VideoID:         videoID,
		Status:          NormalizeStatus(resp.Status),
		HostedURL:       resp.HostedURL,
		DownloadURL:     resp.DownloadURL,
		StreamURL:       resp.StreamURL,
		DurationSeconds: resp.Duration,
		FailureReason:   resp.ErrorDetail,
	}, nil
}
