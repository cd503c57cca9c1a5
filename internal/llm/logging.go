package llm

import (
	"context"
	"time"

	"tutor_backend/pkg/logger"
	"tutor_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// LoggingGenerator records every generation call in the structured log and
// in the generation metrics.
type LoggingGenerator struct {
	inner Generator
}

// WithLogging wraps a Generator with logging and metrics.
func WithLogging(g Generator) Generator {
	return &LoggingGenerator{inner: g}
}

func (l *LoggingGenerator) Generate(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	start := time.Now()
	text, err := l.inner.Generate(ctx, prompt, attachments)
	l.record("buffered", start, len(prompt), len(attachments), len(text), err)
	return text, err
}

func (l *LoggingGenerator) GenerateStream(ctx context.Context, prompt string, attachments []Attachment) (<-chan string, <-chan error) {
	start := time.Now()
	chunks, errs := l.inner.GenerateStream(ctx, prompt, attachments)

	out := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		size := 0
		for c := range chunks {
			size += len(c)
			if !send(ctx, out, c) {
				drain(chunks, errs)
				l.record("stream", start, len(prompt), len(attachments), size, ctx.Err())
				errCh <- ctx.Err()
				return
			}
		}
		err := <-errs
		l.record("stream", start, len(prompt), len(attachments), size, err)
		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (l *LoggingGenerator) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingGenerator) record(mode string, start time.Time, promptLen, attachments, replyLen int, err error) {
	model := l.inner.ModelID()
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	monitoring.GenerationCounter.WithLabelValues(model, mode, outcome).Inc()
	monitoring.GenerationDuration.WithLabelValues(model, mode).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("model", model),
		zap.String("mode", mode),
		zap.Duration("latency", elapsed),
		zap.Int("promptBytes", promptLen),
		zap.Int("attachments", attachments),
		zap.Int("replyBytes", replyLen),
	}
	if err != nil {
		logger.Log.Warn("Text generation failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Log.Debug("Text generation finished", fields...)
}
