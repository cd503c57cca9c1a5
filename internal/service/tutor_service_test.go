package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutor_backend/internal/llm"
	"tutor_backend/internal/model"
	"tutor_backend/internal/tutor"
	"tutor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not terminate")
			return out
		}
	}
}

func TestTutor_StartSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)
	assert.Equal(t, "Sesión de Matemáticas", session.Title)
	assert.True(t, session.IsActive)

	p, err := f.progression.GetSubjectProgress(ctx, "u1", "mathematics")
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalSessions)

	free, err := f.tutor.StartSession(ctx, "u1", nil, "Libre")
	require.NoError(t, err)
	assert.Nil(t, free.SubjectID)

	_, err = f.tutor.StartSession(ctx, "u1", strPtr("astrology"), "")
	assert.ErrorIs(t, err, util.ErrSubjectNotFound)
}

func TestTutor_OwnershipChecked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Text: "never"})

	session, err := f.tutor.StartSession(ctx, "u1", nil, "")
	require.NoError(t, err)

	_, err = f.tutor.ListMessages(ctx, session.ID, "intruder")
	assert.ErrorIs(t, err, util.ErrAccessDenied)
	_, err = f.tutor.ListMessages(ctx, "missing", "u1")
	assert.ErrorIs(t, err, util.ErrAccessDenied)

	_, err = f.tutor.SubmitMessage(ctx, session.ID, "intruder", "hola", nil)
	assert.ErrorIs(t, err, util.ErrAccessDenied)
	_, err = f.tutor.SubmitMessageStream(ctx, session.ID, "intruder", "hola", nil)
	assert.ErrorIs(t, err, util.ErrAccessDenied)
	assert.ErrorIs(t, f.tutor.EndSession(ctx, session.ID, "intruder"), util.ErrAccessDenied)
	assert.Equal(t, 0, f.gen.CallCount())
}

func TestTutor_SubmitMessageBuffered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Text: "¿Qué sabes ya sobre las ecuaciones?"})

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)

	exchange, err := f.tutor.SubmitMessage(ctx, session.ID, "u1", "¿Cómo resuelvo ecuaciones con funciones?", nil)
	require.NoError(t, err)

	assert.Equal(t, model.MessageQuestion, exchange.UserMessage.MessageType)
	assert.Equal(t, []string{"ecuaciones", "funciones"}, []string(exchange.UserMessage.Concepts))
	assert.Equal(t, "¿Qué sabes ya sobre las ecuaciones?", exchange.AssistantMessage.Content)
	assert.False(t, exchange.AssistantMessage.Analysis.Data().Fallback)
	require.NotNil(t, exchange.XP)
	assert.Equal(t, 10, exchange.XP.CurrentXP)

	prompt := f.gen.LastPrompt()
	assert.Contains(t, prompt, "matemáticas")
	assert.Contains(t, prompt, tutor.NewConversationLine)
	assert.Contains(t, prompt, "¿Cómo resuelvo ecuaciones con funciones?")

	msgs, err := f.tutor.ListMessages(ctx, session.ID, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUserMessage)
	assert.False(t, msgs[1].IsUserMessage)

	p, err := f.progression.GetSubjectProgress(ctx, "u1", "mathematics")
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalMessages)
	assert.Len(t, p.ConceptsLearned, 2)

	sessions, err := f.tutor.ListSessions(ctx, "u1", SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"ecuaciones", "funciones"}, []string(sessions[0].ConceptsLearned))
	require.NotNil(t, sessions[0].LastMessage)
	assert.Equal(t, exchange.AssistantMessage.ID, sessions[0].LastMessage.ID)
}

func TestTutor_SubmitMessageFallsBackOnGenerationError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)

	exchange, err := f.tutor.SubmitMessage(ctx, session.ID, "u1", "no entiendo", nil)
	require.NoError(t, err)
	assert.Equal(t, tutor.FallbackReply("mathematics", ""), exchange.AssistantMessage.Content)
	assert.True(t, exchange.AssistantMessage.Analysis.Data().Fallback)
	assert.True(t, exchange.UserMessage.Analysis.Data().NeedsGuidance)
}

func TestTutor_SubmitMessageRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.tutor.StartSession(ctx, "u1", nil, "")
	require.NoError(t, err)
	_, err = f.tutor.SubmitMessage(ctx, session.ID, "u1", "   ", nil)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestTutor_SubmitMessageWithAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Text: "¿Qué observas en tus notas?"})

	session, err := f.tutor.StartSession(ctx, "u1", nil, "")
	require.NoError(t, err)

	exchange, err := f.tutor.SubmitMessage(ctx, session.ID, "u1", "revisa mis notas", []Upload{
		{Name: "notas.txt", Data: []byte("x = 2y + 3")},
	})
	require.NoError(t, err)
	require.Len(t, exchange.UserMessage.Attachments, 1)
	assert.Equal(t, "notas.txt", exchange.UserMessage.Attachments[0].Name)
	assert.Equal(t, "text/plain", exchange.UserMessage.Attachments[0].MIMEType)
	assert.Nil(t, exchange.XP)

	require.Len(t, f.gen.Calls, 1)
	require.Len(t, f.gen.Calls[0].Attachments, 1)
	assert.Equal(t, []byte("x = 2y + 3"), f.gen.Calls[0].Attachments[0].Data)
}

func TestTutor_StreamDeliversChunksThenDone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Chunks: []string{"¿Qué ", "sabes ya?"}})

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("history"), "")
	require.NoError(t, err)

	events, err := f.tutor.SubmitMessageStream(ctx, session.ID, "u1", "¿Quién fue Bolívar?", nil)
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 4)
	assert.Equal(t, EventUserMessage, got[0].Type)
	assert.Equal(t, "¿Quién fue Bolívar?", got[0].Message.Content)
	assert.Equal(t, EventChunk, got[1].Type)
	assert.Equal(t, "¿Qué ", got[1].Content)
	assert.Equal(t, EventChunk, got[2].Type)
	assert.Equal(t, EventDone, got[3].Type)
	require.NotNil(t, got[3].Exchange)
	assert.Equal(t, "¿Qué sabes ya?", got[3].Exchange.AssistantMessage.Content)
	assert.NotNil(t, got[3].Exchange.XP)
}

func TestTutor_StreamZeroChunksThenErrorPersistsFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.MockReply{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("grammar"), "")
	require.NoError(t, err)

	events, err := f.tutor.SubmitMessageStream(ctx, session.ID, "u1", "¿Qué es un adverbio?", nil)
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, EventUserMessage, got[0].Type)
	last := got[1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, tutor.FallbackReply("grammar", ""), last.Content)

	msgs, err := f.tutor.ListMessages(ctx, session.ID, "u1")
	require.NoError(t, err)
	var replies []model.ChatMessage
	for _, m := range msgs {
		if !m.IsUserMessage {
			replies = append(replies, m)
		}
	}
	require.Len(t, replies, 1)
	assert.Equal(t, tutor.FallbackReply("grammar", ""), replies[0].Content)
	assert.True(t, replies[0].Analysis.Data().Fallback)
}

func TestTutor_StreamAbandonedPersistsPartial(t *testing.T) {
	f := newFixture(t, llm.MockReply{Chunks: []string{"Pensemos "}, HoldOpen: true})

	session, err := f.tutor.StartSession(context.Background(), "u1", nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := f.tutor.SubmitMessageStream(ctx, session.ID, "u1", "hola", nil)
	require.NoError(t, err)

	assert.Equal(t, EventUserMessage, (<-events).Type)
	assert.Equal(t, "Pensemos ", (<-events).Content)
	cancel()
	collectEvents(t, events)

	msgs, err := f.tutor.ListMessages(context.Background(), session.ID, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Pensemos ", msgs[1].Content)
	assert.True(t, msgs[1].Analysis.Data().Partial)
}

func TestTutor_UpdateDurationCreditsDeltaOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)

	steps := []struct {
		reported int
		duration int
		credited int
	}{
		{120, 120, 120},
		{120, 120, 0},
		{60, 120, 0},
		{200, 200, 80},
	}
	for _, step := range steps {
		res, err := f.tutor.UpdateDuration(ctx, session.ID, "u1", step.reported)
		require.NoError(t, err)
		assert.Equal(t, step.duration, res.Duration)
		assert.Equal(t, step.credited, res.Credited)
	}

	p, err := f.progression.GetSubjectProgress(ctx, "u1", "mathematics")
	require.NoError(t, err)
	assert.Equal(t, 200, p.TotalTimeSpent)

	_, err = f.tutor.UpdateDuration(ctx, session.ID, "u1", -1)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestTutor_EndSessionDeactivates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.tutor.StartSession(ctx, "u1", nil, "")
	require.NoError(t, err)
	require.NoError(t, f.tutor.EndSession(ctx, session.ID, "u1"))

	sessions, err := f.tutor.ListSessions(ctx, "u1", SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// 停用后消息仍可读取
	_, err = f.tutor.ListMessages(ctx, session.ID, "u1")
	assert.NoError(t, err)
}

// storeBreakingGenerator 流结束前执行 breakStore，使回复落库失败
type storeBreakingGenerator struct {
	*llm.MockGenerator
	breakStore func()
}

func (g *storeBreakingGenerator) GenerateStream(ctx context.Context, prompt string, attachments []llm.Attachment) (<-chan string, <-chan error) {
	chunks, errs := g.MockGenerator.GenerateStream(ctx, prompt, attachments)
	out := make(chan string)
	go func() {
		defer close(out)
		for c := range chunks {
			out <- c
		}
		g.breakStore()
	}()
	return out, errs
}

func TestTutor_StreamStoreFailureKeepsGeneratedText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)

	f.tutor.Generator = &storeBreakingGenerator{
		MockGenerator: llm.NewMockGenerator(llm.MockReply{Chunks: []string{"Piensa ", "en la resta."}}),
		breakStore: func() {
			assert.NoError(t, f.db.Exec("DROP TABLE chat_messages").Error)
		},
	}

	events, err := f.tutor.SubmitMessageStream(ctx, session.ID, "u1", "No entiendo las ecuaciones", nil)
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "store failure", last.Error)
	assert.Equal(t, "Piensa en la resta.", last.Content)
	assert.NotEqual(t, tutor.FallbackReply("mathematics", ""), last.Content)
}
