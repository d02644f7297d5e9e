package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfraser/adventure-engine/pkg/chat"
)

func TestMockLLMService_Defaults(t *testing.T) {
	mock := NewMockLLMService()
	ctx := context.Background()

	err := mock.InitModel(ctx, "test-model")
	assert.NoError(t, err)

	ready, err := mock.IsModelReady(ctx, "test-model")
	assert.NoError(t, err)
	assert.True(t, ready)

	text, err := mock.Chat(ctx, []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The story continues.", text)
}

func TestMockLLMService_SetChatResponse(t *testing.T) {
	mock := NewMockLLMService()
	mock.SetChatResponse("custom reply")

	text, err := mock.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "custom reply", text)
}

func TestMockLLMService_SetChatResponses(t *testing.T) {
	mock := NewMockLLMService()
	mock.SetChatResponses("first", "second")

	ctx := context.Background()

	text, err := mock.Chat(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	text, err = mock.Chat(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	// The last response repeats.
	text, err = mock.Chat(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestMockLLMService_SetChatError(t *testing.T) {
	mock := NewMockLLMService()
	wantErr := errors.New("llm unavailable")
	mock.SetChatError(wantErr)

	_, err := mock.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, wantErr)
}

func TestMockLLMService_CallTracking(t *testing.T) {
	mock := NewMockLLMService()
	ctx := context.Background()

	_ = mock.InitModel(ctx, "model-a")
	_, _ = mock.IsModelReady(ctx, "model-b")
	_, _ = mock.Chat(ctx, []chat.Message{{Role: chat.RoleUser, Content: "one"}})
	_, _ = mock.Chat(ctx, []chat.Message{{Role: chat.RoleUser, Content: "two"}})

	assert.Equal(t, []string{"model-a"}, mock.InitModelCalls)
	assert.Equal(t, []string{"model-b"}, mock.IsModelReadyCalls)

	calls := mock.GetChatCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "one", calls[0][0].Content)
	assert.Equal(t, "two", calls[1][0].Content)
}

func TestMockLLMService_Reset(t *testing.T) {
	mock := NewMockLLMService()
	mock.SetChatError(errors.New("boom"))
	_, _ = mock.Chat(context.Background(), nil)

	mock.Reset()

	assert.Nil(t, mock.ChatFunc)
	assert.Empty(t, mock.ChatCalls)

	text, err := mock.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "The story continues.", text)
}

func TestMockLLMService_SetModelNotReady(t *testing.T) {
	mock := NewMockLLMService()
	mock.SetModelNotReady()

	ready, err := mock.IsModelReady(context.Background(), "any")
	require.NoError(t, err)
	assert.False(t, ready)
}
