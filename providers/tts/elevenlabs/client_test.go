package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

func TestSynthesizeSendsVoiceSettings(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if got := r.Header.Get("xi-api-key"); got != "el-key" {
			t.Errorf("xi-api-key = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "audio/mpeg" {
			t.Errorf("accept = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-audio"))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "el-key", BaseURL: server.URL, VoiceID: VoiceRachel})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := client.Synthesize(context.Background(), "Take a slow breath.", DefaultVoiceSettings())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-audio" {
		t.Errorf("audio = %q", audio)
	}
	if gotPath != "/v1/text-to-speech/"+VoiceRachel {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["model_id"] != DefaultModelID {
		t.Errorf("model_id = %v", gotBody["model_id"])
	}
	settings, ok := gotBody["voice_settings"].(map[string]any)
	if !ok {
		t.Fatalf("voice_settings missing: %v", gotBody)
	}
	if settings["stability"] != 0.5 || settings["similarity_boost"] != 0.75 {
		t.Errorf("voice settings = %v", settings)
	}
	if settings["use_speaker_boost"] != true {
		t.Errorf("use_speaker_boost = %v", settings["use_speaker_boost"])
	}
}

func TestSynthesizeClassifiesAuthFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "bad-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Synthesize(context.Background(), "hello", DefaultVoiceSettings())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fault.KindOf(err); got != fault.KindAuthentication {
		t.Errorf("kind = %v", got)
	}
}

func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "el-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Synthesize(context.Background(), "hello", DefaultVoiceSettings())
	if err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestVoicesListsCatalog(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade"}]}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "el-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	voices, err := client.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "Rachel" {
		t.Errorf("voices = %v", voices)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing api key")
	}
}
