package tutor

import (
	"strings"
	"testing"
	"tutor_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStudentQuestion(t *testing.T) {
	got := Classify("¿Qué es una función?", []string{"función", "variable"}, RoleStudent)

	assert.Equal(t, model.MessageQuestion, got.MessageType)
	assert.Equal(t, []string{"función"}, got.Concepts)
	assert.Equal(t, model.DifficultyBeginner, got.Difficulty)
	assert.True(t, got.NeedsGuidance)
}

func TestClassifyStudentReasoningIsAnswer(t *testing.T) {
	cases := []string{
		"Creo que la respuesta es 4",
		"Pienso que hay que despejar x",
		"I think x equals 2",
		"In my opinion the war started earlier",
	}
	for _, text := range cases {
		got := Classify(text, nil, RoleStudent)
		assert.Equal(t, model.MessageAnswer, got.MessageType, text)
		assert.False(t, got.NeedsGuidance, text)
	}
}

func TestClassifyStudentDefaultsToQuestion(t *testing.T) {
	got := Classify("Las fracciones", nil, RoleStudent)
	assert.Equal(t, model.MessageQuestion, got.MessageType)
	assert.True(t, got.NeedsGuidance)
}

func TestClassifyHelpPhraseNeedsGuidance(t *testing.T) {
	got := Classify("Creo que es 5 pero no entiendo por qué", nil, RoleStudent)
	assert.Equal(t, model.MessageAnswer, got.MessageType)
	assert.True(t, got.NeedsGuidance)
}

func TestClassifyDifficulty(t *testing.T) {
	assert.Equal(t, model.DifficultyBeginner, Classify(strings.Repeat("a", 50), nil, RoleStudent).Difficulty)
	assert.Equal(t, model.DifficultyIntermediate, Classify(strings.Repeat("a", 51), nil, RoleStudent).Difficulty)
	assert.Equal(t, model.DifficultyIntermediate, Classify(strings.Repeat("a", 100), nil, RoleStudent).Difficulty)
	assert.Equal(t, model.DifficultyAdvanced, Classify(strings.Repeat("a", 101), nil, RoleStudent).Difficulty)
	assert.Equal(t, model.DifficultyAdvanced, Classify("Es un tema complejo", nil, RoleStudent).Difficulty)
	// 按字符而不是字节计数
	assert.Equal(t, model.DifficultyBeginner, Classify(strings.Repeat("á", 50), nil, RoleStudent).Difficulty)
}

func TestClassifyTutorOutput(t *testing.T) {
	cases := map[string]model.MessageType{
		"¡Excelente trabajo, lo lograste!":       model.MessageEncouragement,
		"Bien hecho.":                            model.MessageEncouragement,
		"Te doy una pista: mira el denominador.": model.MessageHint,
		"Intenta dividir ambos lados entre dos.": model.MessageHint,
		"La derivada mide el cambio.":            model.MessageExplanation,
		"Excelente. ¿Qué observas ahora?":        model.MessageQuestion,
	}
	for text, want := range cases {
		got := Classify(text, nil, RoleTutor)
		assert.Equal(t, want, got.MessageType, text)
		assert.False(t, got.NeedsGuidance, text)
	}
}

func TestClassifyReplyInheritsStudentTags(t *testing.T) {
	student := Classify("¿Cómo resuelvo ecuaciones con álgebra?", []string{"álgebra", "ecuaciones"}, RoleStudent)
	reply := ClassifyReply("Intenta aislar la variable.", student)

	assert.Equal(t, model.MessageHint, reply.MessageType)
	assert.Equal(t, student.Difficulty, reply.Difficulty)
	assert.Equal(t, []string{"álgebra", "ecuaciones"}, reply.Concepts)
	assert.False(t, reply.NeedsGuidance)
}

func TestMatchConceptsOrderAndDedup(t *testing.T) {
	vocab := []string{"álgebra", "funciones", "cálculo", "Funciones"}
	got := Classify("LAS FUNCIONES y el ÁLGEBRA", vocab, RoleStudent)
	assert.Equal(t, []string{"álgebra", "funciones"}, got.Concepts)

	none := Classify("nada relevante", vocab, RoleStudent)
	assert.Empty(t, none.Concepts)
	assert.NotNil(t, none.Concepts)
}

func TestClassifyIsDeterministic(t *testing.T) {
	vocab := []string{"geometría", "cálculo"}
	first := Classify("Pienso que el cálculo avanzado usa geometría", vocab, RoleStudent)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify("Pienso que el cálculo avanzado usa geometría", vocab, RoleStudent))
	}
}
