package openai_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
	openaiprov "github.com/serenitylab/meditation-pipeline/providers/llm/openai"
)

type mockChatClient struct {
	request  openai.ChatCompletionRequest
	response openai.ChatCompletionResponse
	err      error
}

func (m *mockChatClient) CreateChatCompletion(_ context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.request = request
	return m.response, m.err
}

func TestClientGenerate(t *testing.T) {
	mock := &mockChatClient{
		response: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "  Take a slow breath with me.  "}},
			},
		},
	}
	client, err := openaiprov.New(openaiprov.Options{Chat: mock, Model: "gpt-3.5-turbo"})
	require.NoError(t, err)

	reply, err := client.Generate(context.Background(), "You are a gentle guide.", "I feel stressed")
	require.NoError(t, err)
	assert.Equal(t, "Take a slow breath with me.", reply)

	assert.Equal(t, "gpt-3.5-turbo", mock.request.Model)
	require.Len(t, mock.request.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, mock.request.Messages[0].Role)
	assert.Equal(t, "I feel stressed", mock.request.Messages[1].Content)
	assert.Equal(t, 200, mock.request.MaxTokens)
	assert.InDelta(t, 0.7, mock.request.Temperature, 0.001)
}

func TestClientGenerateClassifiesAPIError(t *testing.T) {
	mock := &mockChatClient{
		err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limit"},
	}
	client, err := openaiprov.New(openaiprov.Options{Chat: mock, Model: "gpt-3.5-turbo"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.Equal(t, fault.KindRateLimit, fault.KindOf(err))
}

func TestClientGenerateClassifiesNetworkError(t *testing.T) {
	mock := &mockChatClient{err: errors.New("connection refused")}
	client, err := openaiprov.New(openaiprov.Options{Chat: mock, Model: "gpt-3.5-turbo"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.Equal(t, fault.KindConnectivity, fault.KindOf(err))
}

func TestClientGenerateRejectsEmptyInput(t *testing.T) {
	client, err := openaiprov.New(openaiprov.Options{Chat: &mockChatClient{}, Model: "gpt-3.5-turbo"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "sys", "   ")
	assert.Error(t, err)
}

func TestClientSynthesizeRequiresSpeechClient(t *testing.T) {
	client, err := openaiprov.New(openaiprov.Options{Chat: &mockChatClient{}, Model: "gpt-3.5-turbo"})
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
}

func TestNewRequiresChatClientAndModel(t *testing.T) {
	_, err := openaiprov.New(openaiprov.Options{Model: "gpt-3.5-turbo"})
	assert.Error(t, err)

	_, err = openaiprov.New(openaiprov.Options{Chat: &mockChatClient{}})
	assert.Error(t, err)
}
