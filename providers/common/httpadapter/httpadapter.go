// Package httpadapter is the shared HTTP plumbing for provider clients.
// It builds authenticated JSON and multipart requests and normalizes
// transport and status failures into the pipeline's fault taxonomy.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

const defaultBodySampleBytes = 2048

// Config configures a provider HTTP client.
type Config struct {
	Backend       string
	BaseURL       string
	APIKey        string
	APIKeyHeader  string
	APIKeyPrefix  string
	StaticHeaders map[string]string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client issues requests on behalf of one provider backend.
type Client struct {
	cfg    Config
	client *http.Client
}

// New validates the config and returns a client.
func New(cfg Config) (*Client, error) {
	if cfg.Backend == "" {
		return nil, fmt.Errorf("backend name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StaticHeaders == nil {
		cfg.StaticHeaders = map[string]string{}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, client: client}, nil
}

// Backend returns the backend name used in fault classification.
func (c *Client) Backend() string {
	return c.cfg.Backend
}

// PostJSON sends a JSON body and decodes a JSON response into out.
// A nil out discards the response body after status checking.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.cfg.Backend, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded), "application/json", nil, out, nil)
}

// PostJSONRaw sends a JSON body and returns the raw response bytes.
// Accept sets the expected response content type when non-empty.
func (c *Client) PostJSONRaw(ctx context.Context, path string, body any, accept string) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", c.cfg.Backend, err)
	}
	var raw []byte
	headers := map[string]string{}
	if accept != "" {
		headers["Accept"] = accept
	}
	err = c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded), "application/json", headers, nil, &raw)
	return raw, err
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", nil, out, nil)
}

// MultipartFile is one file part of a multipart request.
type MultipartFile struct {
	Field    string
	Filename string
	Data     []byte
}

// PostMultipart sends form fields plus file parts and decodes the JSON
// response into out.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []MultipartFile, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write %s form field: %w", c.cfg.Backend, err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return fmt.Errorf("write %s form file: %w", c.cfg.Backend, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return fmt.Errorf("write %s form file: %w", c.cfg.Backend, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize %s form: %w", c.cfg.Backend, err)
	}
	return c.do(ctx, http.MethodPost, path, &buf, writer.FormDataContentType(), nil, out, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, headers map[string]string, out any, raw *[]byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.cfg.Backend, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.APIKeyHeader != "" && c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKeyPrefix+c.cfg.APIKey)
	}
	for key, value := range c.cfg.StaticHeaders {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fault.FromNetwork(c.cfg.Backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sample, _ := ReadBodySample(resp.Body, defaultBodySampleBytes)
		return fault.FromStatus(c.cfg.Backend, resp.StatusCode, sample)
	}
	if raw != nil {
		payload, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fault.FromNetwork(c.cfg.Backend, readErr)
		}
		*raw = payload
		return nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fault.Wrap(fault.KindUpstream, c.cfg.Backend, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// ReadBodySample reads at most maxBytes from the reader.
func ReadBodySample(reader io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes < 1 {
		maxBytes = defaultBodySampleBytes
	}
	return io.ReadAll(io.LimitReader(reader, int64(maxBytes)))
}
