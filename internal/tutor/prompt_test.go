package tutor

import (
	"fmt"
	"strings"
	"testing"
	"tutor_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func history(n int) []model.ChatMessage {
	out := make([]model.ChatMessage, n)
	for i := range out {
		out[i] = model.ChatMessage{
			Content:       fmt.Sprintf("mensaje %d", i+1),
			IsUserMessage: i%2 == 0,
		}
	}
	return out
}

func TestBuildPromptNewConversation(t *testing.T) {
	p := BuildPrompt("Eres un tutor de historia.", nil, "¿Quién fue Bolívar?", false)

	assert.True(t, strings.HasPrefix(p, "Eres un tutor de historia."))
	assert.Contains(t, p, NewConversationLine)
	assert.NotContains(t, p, GuidanceClause)
	assert.Contains(t, p, "--- MENSAJE DEL ESTUDIANTE ---\n¿Quién fue Bolívar?")
	assert.True(t, strings.HasSuffix(p, "--- RESPUESTA DEL TUTOR ---\n"+replyInstruction))
}

func TestBuildPromptDefaultsAndGuidance(t *testing.T) {
	p := BuildPrompt("   ", nil, "hola", true)

	assert.True(t, strings.HasPrefix(p, DefaultSystemPrompt))
	assert.Contains(t, p, DefaultSystemPrompt+"\n\n"+GuidanceClause)
}

func TestBuildPromptKeepsLastSixMessages(t *testing.T) {
	p := BuildPrompt("sistema", history(8), "nuevo", false)

	assert.NotContains(t, p, "mensaje 1\n")
	assert.NotContains(t, p, "mensaje 2\n")
	for i := 3; i <= 8; i++ {
		assert.Contains(t, p, fmt.Sprintf("mensaje %d", i))
	}
	// 旧消息在前
	assert.Less(t, strings.Index(p, "mensaje 3"), strings.Index(p, "mensaje 8"))
	assert.Less(t, strings.Index(p, "mensaje 8"), strings.Index(p, "--- MENSAJE DEL ESTUDIANTE ---"))
}

func TestRenderTranscriptSpeakerTags(t *testing.T) {
	got := RenderTranscript(history(2))
	assert.Equal(t, "Estudiante: mensaje 1\nTutor: mensaje 2", got)
}
