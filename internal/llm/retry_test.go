package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	mock := NewMockGenerator(MockReply{Text: "hola"})
	g := WithRetry(mock, fastRetry())

	text, err := g.Generate(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "hola", text)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	mock := NewMockGenerator(
		MockReply{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockReply{Text: "hola"},
	)
	g := WithRetry(mock, fastRetry())

	text, err := g.Generate(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "hola", text)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	down := &ErrProviderUnavailable{Err: errors.New("down")}
	mock := NewMockGenerator(MockReply{Err: down}, MockReply{Err: down}, MockReply{Err: down})
	g := WithRetry(mock, fastRetry())

	_, err := g.Generate(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Equal(t, 3, mock.CallCount())
}

func TestRetry_RejectedNotRetried(t *testing.T) {
	mock := NewMockGenerator(
		MockReply{Err: &ErrRequestRejected{Status: 400, Err: errors.New("bad")}},
		MockReply{Text: "never"},
	)
	g := WithRetry(mock, fastRetry())

	_, err := g.Generate(context.Background(), "p", nil)
	var rejected *ErrRequestRejected
	assert.ErrorAs(t, err, &rejected)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_EmptyResponseNotRetried(t *testing.T) {
	mock := NewMockGenerator(MockReply{Text: "   "}, MockReply{Text: "never"})
	g := WithRetry(mock, fastRetry())

	_, err := g.Generate(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_ContextCancelledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := NewMockGenerator(MockReply{Err: context.Canceled}, MockReply{Text: "never"})
	g := WithRetry(mock, fastRetry())

	_, err := g.Generate(ctx, "p", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_RateLimitHonoursRetryAfter(t *testing.T) {
	r := &RetryGenerator{config: fastRetry()}
	wait := r.backoff(0, &ErrRateLimit{RetryAfter: 3 * time.Second})
	assert.Equal(t, 3*time.Second, wait)
}

func TestRetry_BackoffCappedWithJitter(t *testing.T) {
	r := &RetryGenerator{config: RetryConfig{InitialWait: time.Second, MaxWait: 2 * time.Second, Multiplier: 10}}
	for range 20 {
		wait := r.backoff(3, errors.New("x"))
		assert.LessOrEqual(t, wait, 2400*time.Millisecond)
		assert.GreaterOrEqual(t, wait, 1600*time.Millisecond)
	}
}

func TestRetryStream_RetriesBeforeFirstChunk(t *testing.T) {
	mock := NewMockGenerator(
		MockReply{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockReply{Chunks: []string{"ho", "la"}},
	)
	g := WithRetry(mock, fastRetry())

	text, err := Collect(g.GenerateStream(context.Background(), "p", nil))
	require.NoError(t, err)
	assert.Equal(t, "hola", text)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRetryStream_NoRetryAfterFirstChunk(t *testing.T) {
	boom := &ErrProviderUnavailable{Err: errors.New("cut")}
	mock := NewMockGenerator(
		MockReply{Chunks: []string{"ho"}, Err: boom},
		MockReply{Chunks: []string{"never"}},
	)
	g := WithRetry(mock, fastRetry())

	text, err := Collect(g.GenerateStream(context.Background(), "p", nil))
	assert.Equal(t, "ho", text)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mock.CallCount())
}
