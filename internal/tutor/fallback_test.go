package tutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackReplyBySubject(t *testing.T) {
	math := FallbackReply("mathematics", "")
	assert.Contains(t, math, "matemáticas")
	assert.Equal(t, math, FallbackReply("mathematics", "otro prompt"))

	assert.Contains(t, FallbackReply("history", ""), "histórica")
	assert.Contains(t, FallbackReply("grammar", ""), "gramática")
}

func TestFallbackReplyDetectsSubjectFromPrompt(t *testing.T) {
	got := FallbackReply("custom-algebra", "Eres un tutor de Matemáticas para secundaria")
	assert.Equal(t, FallbackReply("mathematics", ""), got)
}

func TestFallbackReplyGeneral(t *testing.T) {
	general := FallbackReply("", "")
	assert.Equal(t, fallbackReplies["general"], general)
	assert.Equal(t, general, FallbackReply("biology", "Eres un tutor de biología"))
}
