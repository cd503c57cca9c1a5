package llm

import (
	"context"
	"strings"
	"sync"
)

// MockReply is a canned reply for the MockGenerator. In stream mode Chunks
// are sent in order (Text is sent as one chunk when Chunks is empty), then
// Err is reported. HoldOpen keeps the stream open after the chunks until
// the caller's context is done.
type MockReply struct {
	Text     string
	Chunks   []string
	Err      error
	HoldOpen bool
}

// MockCall records the arguments of one generation call.
type MockCall struct {
	Prompt      string
	Attachments []Attachment
	Stream      bool
}

// MockGenerator is a deterministic Generator for testing. It returns canned
// replies in FIFO order and records all calls.
type MockGenerator struct {
	mu      sync.Mutex
	replies []MockReply
	Calls   []MockCall
}

// NewMockGenerator creates a MockGenerator with the given canned replies.
func NewMockGenerator(replies ...MockReply) *MockGenerator {
	return &MockGenerator{replies: replies}
}

func (m *MockGenerator) next(call MockCall) (MockReply, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, call)
	if len(m.replies) == 0 {
		return MockReply{}, false
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, true
}

// Generate returns the next canned reply or ErrProviderUnavailable if the
// queue is empty.
func (m *MockGenerator) Generate(_ context.Context, prompt string, attachments []Attachment) (string, error) {
	r, ok := m.next(MockCall{Prompt: prompt, Attachments: attachments})
	if !ok {
		return "", &ErrProviderUnavailable{}
	}
	if r.Err != nil {
		return "", r.Err
	}
	text := r.Text
	if text == "" {
		text = strings.Join(r.Chunks, "")
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (m *MockGenerator) GenerateStream(ctx context.Context, prompt string, attachments []Attachment) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	r, ok := m.next(MockCall{Prompt: prompt, Attachments: attachments, Stream: true})

	go func() {
		defer close(out)
		defer close(errCh)

		if !ok {
			errCh <- &ErrProviderUnavailable{}
			return
		}

		chunks := r.Chunks
		if len(chunks) == 0 && r.Text != "" {
			chunks = []string{r.Text}
		}
		for _, c := range chunks {
			if !send(ctx, out, c) {
				errCh <- ctx.Err()
				return
			}
		}
		if r.HoldOpen {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		if r.Err != nil {
			errCh <- r.Err
		}
	}()

	return out, errCh
}

// ModelID returns "mock".
func (m *MockGenerator) ModelID() string {
	return "mock"
}

// AddReply appends a canned reply to the queue.
func (m *MockGenerator) AddReply(r MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
}

// CallCount returns the number of calls made in either mode.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastPrompt returns the prompt of the most recent call.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return ""
	}
	return m.Calls[len(m.Calls)-1].Prompt
}
