package tutor

import (
	"strings"
	"tutor_backend/internal/model"
)

// HistoryWindow 提示词中保留的最近消息条数
const HistoryWindow = 6

const (
	DefaultSystemPrompt = "Eres 'IA Profesor', un tutor socrático. Haz preguntas guía para ayudar al estudiante a descubrir las respuestas por sí mismo."
	GuidanceClause      = "El estudiante parece necesitar más orientación. Sé más específico en tus preguntas guía."
	NewConversationLine = "Esta es una nueva conversación."

	studentDelimiter = "--- MENSAJE DEL ESTUDIANTE ---"
	tutorDelimiter   = "--- RESPUESTA DEL TUTOR ---"
	replyInstruction = "Como tutor especializado, responde siguiendo la metodología socrática:"
)

// BuildPrompt 拼装最终提示词：系统提示、可选的引导加强、最近对话、当前学生消息
func BuildPrompt(systemPrompt string, recent []model.ChatMessage, newMessage string, guidance bool) string {
	var b strings.Builder

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	b.WriteString(systemPrompt)
	if guidance {
		b.WriteString("\n\n")
		b.WriteString(GuidanceClause)
	}

	b.WriteString("\n\nContexto de la conversación:\n")
	b.WriteString(RenderTranscript(recent))

	b.WriteString("\n\n")
	b.WriteString(studentDelimiter)
	b.WriteString("\n")
	b.WriteString(newMessage)
	b.WriteString("\n\n")
	b.WriteString(tutorDelimiter)
	b.WriteString("\n")
	b.WriteString(replyInstruction)

	return b.String()
}

// RenderTranscript 只取最后 HistoryWindow 条消息，旧的在前
func RenderTranscript(messages []model.ChatMessage) string {
	if len(messages) == 0 {
		return NewConversationLine
	}
	if len(messages) > HistoryWindow {
		messages = messages[len(messages)-HistoryWindow:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := "Tutor"
		if m.IsUserMessage {
			speaker = "Estudiante"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
