package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_JoinsChunks(t *testing.T) {
	mock := NewMockGenerator(MockReply{Chunks: []string{"¿Qué ", "sabes ", "ya?"}})

	text, err := Collect(mock.GenerateStream(context.Background(), "p", nil))
	require.NoError(t, err)
	assert.Equal(t, "¿Qué sabes ya?", text)
}

func TestCollect_ReturnsPartialTextWithError(t *testing.T) {
	boom := errors.New("boom")
	mock := NewMockGenerator(MockReply{Chunks: []string{"parcial"}, Err: boom})

	text, err := Collect(mock.GenerateStream(context.Background(), "p", nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "parcial", text)
}

func TestMock_HoldOpenEndsWithContext(t *testing.T) {
	mock := NewMockGenerator(MockReply{Chunks: []string{"a"}, HoldOpen: true})
	ctx, cancel := context.WithCancel(context.Background())

	chunks, errs := mock.GenerateStream(ctx, "p", nil)
	assert.Equal(t, "a", <-chunks)
	cancel()

	select {
	case _, ok := <-chunks:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}
	assert.ErrorIs(t, <-errs, context.Canceled)
}

func TestMock_EmptyQueue(t *testing.T) {
	mock := NewMockGenerator()

	_, err := mock.Generate(context.Background(), "p", nil)
	var unavailable *ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 1, mock.CallCount())
}

func TestDescribeAttachments(t *testing.T) {
	out := describeAttachments("hola", []Attachment{
		{Name: "notas.pdf", MIMEType: "application/pdf"},
		{Name: "tabla.csv", MIMEType: "text/csv"},
	})
	assert.Equal(t, "hola\n\n[Archivos adjuntos: notas.pdf (application/pdf), tabla.csv (text/csv)]", out)
	assert.Equal(t, "hola", describeAttachments("hola", nil))
}

func TestClassifyStatus(t *testing.T) {
	var rl *ErrRateLimit
	assert.ErrorAs(t, classifyStatus(429, errors.New("x")), &rl)

	var unavailable *ErrProviderUnavailable
	assert.ErrorAs(t, classifyStatus(503, errors.New("x")), &unavailable)

	var rejected *ErrRequestRejected
	assert.ErrorAs(t, classifyStatus(401, errors.New("x")), &rejected)
	assert.Equal(t, 401, rejected.Status)
}

func TestTimeoutGenerator_BoundsStream(t *testing.T) {
	mock := NewMockGenerator(MockReply{HoldOpen: true})
	g := WithTimeout(mock, 20*time.Millisecond)

	_, err := Collect(g.GenerateStream(context.Background(), "p", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
