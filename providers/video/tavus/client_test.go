package tavus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{
		APIKey:        "tv-key",
		BaseURL:       server.URL,
		UploadBaseURL: server.URL,
		ReplicaID:     "r-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, server
}

func TestCreateFromScriptSubmitsReplica(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/videos" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "tv-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"video_id":"v-1","status":"queued"}`))
	}))

	job, err := client.CreateFromScript(context.Background(), "Take a slow breath with me.")
	if err != nil {
		t.Fatalf("CreateFromScript: %v", err)
	}
	if job.VideoID != "v-1" || job.Status != StatusQueued {
		t.Errorf("job = %+v", job)
	}
	if job.Truncated {
		t.Error("short script should not be truncated")
	}
	if gotBody["replica_id"] != "r-1" {
		t.Errorf("replica_id = %v", gotBody["replica_id"])
	}
	if gotBody["script"] != "Take a slow breath with me." {
		t.Errorf("script = %v", gotBody["script"])
	}
}

func TestCreateFromScriptTruncatesLongScript(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"video_id":"v-2","status":"queued"}`))
	}))

	long := strings.Repeat("breathe ", 100)
	job, err := client.CreateFromScript(context.Background(), long)
	if err != nil {
		t.Fatalf("CreateFromScript: %v", err)
	}
	if !job.Truncated {
		t.Error("long script should be truncated")
	}
	if job.OriginalTextLength != utf8.RuneCountInString(strings.TrimSpace(long)) {
		t.Errorf("original length = %d", job.OriginalTextLength)
	}
	sent, _ := gotBody["script"].(string)
	if utf8.RuneCountInString(sent) != 500 {
		t.Errorf("sent script length = %d", utf8.RuneCountInString(sent))
	}
}

func TestCreateFromScriptClassifiesQuotaError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"user has reached maximum concurrent video generations"}`))
	}))

	_, err := client.CreateFromScript(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fault.KindOf(err); got != fault.KindRateLimit {
		t.Errorf("kind = %v", got)
	}
}

func TestCreateFromScriptClassifiesValidationError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"unknown replica_id"}`))
	}))

	_, err := client.CreateFromScript(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fault.KindOf(err); got != fault.KindValidation {
		t.Errorf("kind = %v", got)
	}
}

func TestCreateFromAudioUploadsMultipart(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tv-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("replica_id"); got != "r-1" {
			t.Errorf("replica_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"video_id":"v-3","status":"queued"}`))
	}))

	job, err := client.CreateFromAudio(context.Background(), []byte("mp3-bytes"), "reply.mp3")
	if err != nil {
		t.Fatalf("CreateFromAudio: %v", err)
	}
	if job.VideoID != "v-3" {
		t.Errorf("job = %+v", job)
	}
}

func TestStatusNormalizesReady(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/videos/v-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"video_id":"v-1","status":"ready","hosted_url":"https://videos.example.com/v-1","duration":12.5}`))
	}))

	job, err := client.Status(context.Background(), "v-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("status = %v", job.Status)
	}
	if !job.Status.Terminal() {
		t.Error("completed should be terminal")
	}
	if job.ResultURL() != "https://videos.example.com/v-1" {
		t.Errorf("result url = %q", job.ResultURL())
	}
	if job.DurationSeconds != 12.5 {
		t.Errorf("duration = %v", job.DurationSeconds)
	}
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want JobStatus
	}{
		{"ready", StatusCompleted},
		{"completed", StatusCompleted},
		{"Ready", StatusCompleted},
		{"failed", StatusFailed},
		{"error", StatusFailed},
		{"generating", StatusGenerating},
		{"queued", StatusQueued},
		{"", StatusQueued},
		{"something-new", StatusQueued},
	}
	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNewRequiresIdentity(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("expected error without persona or replica")
	}
	if _, err := New(Config{ReplicaID: "r-1"}); err == nil {
		t.Error("expected error without api key")
	}
}
