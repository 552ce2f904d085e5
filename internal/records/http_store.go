package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

const backendName = "records"

// HTTPStore talks to a REST record service. All errors it returns are
// classified as persistence faults so callers can swallow them uniformly.
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPStoreConfig configures the REST store.
type HTTPStoreConfig struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPStore validates the endpoint and builds a store.
func NewHTTPStore(cfg HTTPStoreConfig) (*HTTPStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("records base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse records base url: %w", err)
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPStore{baseURL: base, apiKey: cfg.APIKey, client: client}, nil
}

// Create inserts a record and returns it with its assigned identifier.
func (s *HTTPStore) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	var created Record
	if err := s.do(ctx, http.MethodPost, s.baseURL+"/records", rec, &created); err != nil {
		return Record{}, err
	}
	return created, nil
}

// Update patches a record by identifier.
func (s *HTTPStore) Update(ctx context.Context, id string, patch Patch) (Record, error) {
	if id == "" {
		return Record{}, fault.New(fault.KindPersistence, backendName, "record id is required")
	}
	var updated Record
	if err := s.do(ctx, http.MethodPatch, s.baseURL+"/records/"+url.PathEscape(id), patchBody(patch), &updated); err != nil {
		return Record{}, err
	}
	return updated, nil
}

// GetByJobID looks a record up by vendor job identifier.
func (s *HTTPStore) GetByJobID(ctx context.Context, jobID string) (Record, bool, error) {
	if jobID == "" {
		return Record{}, false, nil
	}
	var out []Record
	endpoint := s.baseURL + "/records?job_id=" + url.QueryEscape(jobID)
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return Record{}, false, err
	}
	if len(out) == 0 {
		return Record{}, false, nil
	}
	return out[0], true, nil
}

// PurgeOlderThan deletes records created before the cutoff.
func (s *HTTPStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	endpoint := s.baseURL + "/records?created_before=" + url.QueryEscape(cutoff.UTC().Format(time.RFC3339))
	var out struct {
		Purged int `json:"purged"`
	}
	if err := s.do(ctx, http.MethodDelete, endpoint, nil, &out); err != nil {
		return 0, err
	}
	return out.Purged, nil
}

func (s *HTTPStore) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fault.Wrap(fault.KindPersistence, backendName, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fault.Wrap(fault.KindPersistence, backendName, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fault.Wrap(fault.KindPersistence, backendName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fault.Wrap(fault.KindPersistence, backendName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &fault.Error{
			Kind:    fault.KindPersistence,
			Backend: backendName,
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(raw)),
		}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fault.Wrap(fault.KindPersistence, backendName, err)
		}
	}
	return nil
}

func patchBody(patch Patch) map[string]any {
	body := make(map[string]any)
	if patch.Status != nil {
		body["status"] = *patch.Status
	}
	if patch.ArtifactURL != nil {
		body["artifact_url"] = *patch.ArtifactURL
	}
	if patch.JobID != nil {
		body["job_id"] = *patch.JobID
	}
	if patch.DurationSeconds != nil {
		body["duration_seconds"] = *patch.DurationSeconds
	}
	if patch.ByteSize != nil {
		body["byte_size"] = *patch.ByteSize
	}
	if len(patch.Metadata) > 0 {
		body["metadata"] = patch.Metadata
	}
	return body
}
