// Package openai backs the text responder with the OpenAI Chat Completions
// API and provides the fallback speech backend via the audio endpoint. It
// uses github.com/sashabaranov/go-openai and maps API failures into the
// pipeline's fault taxonomy.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

// ChatClient captures the subset of the go-openai client used for chat.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// SpeechClient captures the subset used for text-to-speech.
type SpeechClient interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	Chat        ChatClient
	Speech      SpeechClient
	Model       string
	MaxTokens   int
	Temperature float32
}

// Client implements chat generation and speech synthesis against OpenAI.
type Client struct {
	chat        ChatClient
	speech      SpeechClient
	model       string
	maxTokens   int
	temperature float32
}

// New builds a client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Chat == nil {
		return nil, errors.New("openai chat client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 200
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	return &Client{
		chat:        opts.Chat,
		speech:      opts.Speech,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default go-openai HTTP client.
func NewFromAPIKey(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	c := openai.NewClient(apiKey)
	return New(Options{Chat: c, Speech: c, Model: model})
}

// Generate returns the assistant reply for one user message under the
// given system prompt.
func (c *Client) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return "", errors.New("user message is required")
	}
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fault.New(fault.KindUpstream, "openai", "chat completion returned no choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fault.New(fault.KindUpstream, "openai", "chat completion returned empty content")
	}
	return reply, nil
}

// Synthesize renders speech audio for the text using the audio endpoint.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.speech == nil {
		return nil, fault.New(fault.KindConfiguration, "openai", "speech client not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	resp, err := c.speech.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.VoiceNova,
	})
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Close()
	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fault.Wrap(fault.KindUpstream, "openai", fmt.Errorf("read speech audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, fault.New(fault.KindUpstream, "openai", "speech endpoint returned no audio")
	}
	return audio, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fault.FromStatus("openai", apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	return fault.FromNetwork("openai", err)
}
