package tutor

import "strings"

var fallbackReplies = map[string]string{
	"mathematics": "Interesante pregunta sobre matemáticas. Antes de darte una respuesta directa, me gustaría entender mejor tu nivel de conocimiento. ¿Podrías decirme qué sabes ya sobre este tema? Esto me ayudará a guiarte mejor hacia la solución.",
	"history":     "Esa es una excelente pregunta histórica. Para ayudarte a entender mejor este tema, ¿podrías contarme qué contexto histórico conoces relacionado con tu pregunta? Así podremos explorar el tema paso a paso.",
	"grammar":     "Muy buena pregunta sobre gramática. Para ayudarte a descubrir la respuesta por ti mismo, ¿podrías darme algunos ejemplos de palabras que crees que podrían estar relacionadas con tu pregunta? Esto nos ayudará a analizar el patrón juntos.",
	"general":     "Interesante pregunta. Como tu tutor, prefiero guiarte hacia la respuesta en lugar de dártela directamente. ¿Podrías contarme qué es lo que ya sabes sobre este tema? Así podremos construir el conocimiento juntos.",
}

// 学科 ID 未命中时，按系统提示中的关键词识别
var promptMarkers = []struct {
	marker  string
	subject string
}{
	{"matemáticas", "mathematics"},
	{"historia", "history"},
	{"gramática", "grammar"},
}

// FallbackReply 生成失败时的确定性兜底回复，同一学科总是返回同一段文本
func FallbackReply(subjectID, systemPrompt string) string {
	if reply, ok := fallbackReplies[subjectID]; ok {
		return reply
	}
	lower := strings.ToLower(systemPrompt)
	for _, m := range promptMarkers {
		if strings.Contains(lower, m.marker) {
			return fallbackReplies[m.subject]
		}
	}
	return fallbackReplies["general"]
}
