// Package llm wraps the text-generation backends used by the tutor.
//
// Every backend implements Generator in two modes: buffered (one complete
// reply) and streamed (incremental chunks). A stream is a pair of channels:
// the chunk channel is closed when the backend signals the end of the reply,
// and the error channel carries at most one error before it is closed.
package llm

import (
	"context"
	"strings"
)

// Generator is the text-generation collaborator of the session engine.
type Generator interface {
	// Generate returns the complete reply for prompt. An empty reply is
	// reported as ErrEmptyResponse.
	Generate(ctx context.Context, prompt string, attachments []Attachment) (string, error)

	// GenerateStream starts a streamed reply. Both channels are always
	// closed by the producer; the producer stops early when ctx is done.
	GenerateStream(ctx context.Context, prompt string, attachments []Attachment) (<-chan string, <-chan error)

	// ModelID returns the model identifier this generator is configured to use.
	ModelID() string
}

// Attachment is binary content forwarded to the backend with the prompt.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsImage reports whether the attachment can be sent as an image part.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// Collect drains a stream into a single string. It returns the text
// accumulated so far together with the stream's error, if any.
func Collect(chunks <-chan string, errs <-chan error) (string, error) {
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err := <-errs; err != nil {
		return b.String(), err
	}
	return b.String(), nil
}

// send delivers one chunk unless ctx is done first.
func send(ctx context.Context, out chan<- string, chunk string) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// describeAttachments lists attachments a backend cannot take natively so
// the model at least knows they exist.
func describeAttachments(prompt string, skipped []Attachment) string {
	if len(skipped) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\n[Archivos adjuntos: ")
	for i, a := range skipped {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
		b.WriteString(" (")
		b.WriteString(a.MIMEType)
		b.WriteString(")")
	}
	b.WriteString("]")
	return b.String()
}
