package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := Wrap(inner, CodeNetworkUnavailable, "runtime unreachable", CategoryTemporary)

	assert.Equal(t, "[NETWORK_UNAVAILABLE] runtime unreachable: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeModelUnavailable, "x", CategoryPermanent))
}

func TestWrapKeepsSuggestions(t *testing.T) {
	base := NewBuilder(CodeModelUnavailable, "model missing").
		WithSuggestion("pull it first").
		Build()
	wrapped := Wrap(base, CodeEngineLoadFailed, "load failed", CategorySystem)

	assert.Equal(t, []string{"pull it first"}, wrapped.Suggestions)
	assert.Equal(t, CodeEngineLoadFailed, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeModelUnavailable))
	assert.True(t, HasCode(fmt.Errorf("outer: %w", wrapped), CodeEngineLoadFailed))
	assert.False(t, HasCode(wrapped, CodeCloudStatus))
}

func TestUserMessage(t *testing.T) {
	err := User(CodeTranslationDisabled, "Translation is disabled.")
	assert.Equal(t, "Translation is disabled.", UserMessage(fmt.Errorf("handle: %w", err)))
	assert.Equal(t, "plain", UserMessage(stderrors.New("plain")))
	assert.Empty(t, UserMessage(nil))
}

func TestFormatUserMessage(t *testing.T) {
	err := NewBuilder(CodeModelNotLoaded, "Model not loaded.").
		WithSuggestion("Start a model load").
		WithSuggestion("Enable cloud fallback").
		Build()

	assert.Equal(t, "Model not loaded.\n\nSuggestions:\n  - Start a model load\n  - Enable cloud fallback", FormatUserMessage(err))
}

func TestGetCategory(t *testing.T) {
	assert.Equal(t, CategoryUser, GetCategory(User(CodeInvalidInput, "bad")))
	assert.Equal(t, CategoryTemporary, GetCategory(stderrors.New("x")))
	assert.Equal(t, "system", CategorySystem.String())
}

func TestWithTimeoutResultReturnsValue(t *testing.T) {
	got, err := WithTimeoutResult(context.Background(), time.Second, func(context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestWithTimeoutResultTimesOut(t *testing.T) {
	released := make(chan struct{})
	_, err := WithTimeoutResult(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(released)
		return 0, ctx.Err()
	})

	require.Error(t, err)
	assert.Equal(t, CodeModelTimeout, CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("operation context was not cancelled")
	}
}

func TestWithTimeoutResultParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		<-started
		cancel()
	}()

	_, err := WithTimeoutResult(ctx, time.Minute, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.Error(t, err)
	assert.Equal(t, CodeRequestCancelled, CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}
