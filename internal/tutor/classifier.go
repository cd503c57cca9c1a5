// Package tutor 会话引擎依赖的纯函数：消息分类、提示词拼装、兜底回复和等级曲线。
package tutor

import (
	"strings"
	"tutor_backend/internal/model"
	"unicode/utf8"
)

// Role 区分被分类文本的来源
type Role int

const (
	RoleStudent Role = iota
	RoleTutor
)

const (
	intermediateLength = 50
	advancedLength     = 100
)

var (
	reasoningPhrases     = []string{"creo que", "pienso que", "en mi opinión", "i think", "in my opinion", "i believe"}
	helpPhrases          = []string{"ayuda", "no entiendo", "help", "i don't understand", "i do not understand"}
	advancedKeywords     = []string{"complejo", "avanzado", "complex", "advanced"}
	encouragementPhrases = []string{"excelente", "bien hecho", "muy bien", "great job", "well done", "excellent"}
	hintPhrases          = []string{"pista", "intenta", "hint", "try "}
)

// Classify 对学生输入或导师回复做启发式分类，相同输入总是得到相同结果
func Classify(text string, concepts []string, role Role) model.MessageAnalysis {
	lower := strings.ToLower(text)

	analysis := model.MessageAnalysis{
		MessageType: classifyType(lower, role),
		Difficulty:  classifyDifficulty(text, lower),
		Concepts:    MatchConcepts(lower, concepts),
	}
	if role == RoleStudent {
		analysis.NeedsGuidance = analysis.MessageType == model.MessageQuestion || containsAny(lower, helpPhrases)
	}
	return analysis
}

// ClassifyReply 导师回复自行判断类型，难度和概念沿用学生消息
func ClassifyReply(text string, student model.MessageAnalysis) model.MessageAnalysis {
	return model.MessageAnalysis{
		MessageType: classifyType(strings.ToLower(text), RoleTutor),
		Difficulty:  student.Difficulty,
		Concepts:    student.Concepts,
	}
}

func classifyType(lower string, role Role) model.MessageType {
	if strings.Contains(lower, "?") {
		return model.MessageQuestion
	}
	if role == RoleStudent {
		if containsAny(lower, reasoningPhrases) {
			return model.MessageAnswer
		}
		return model.MessageQuestion
	}
	switch {
	case containsAny(lower, encouragementPhrases):
		return model.MessageEncouragement
	case containsAny(lower, hintPhrases):
		return model.MessageHint
	}
	return model.MessageExplanation
}

func classifyDifficulty(text, lower string) model.Difficulty {
	n := utf8.RuneCountInString(text)
	if n > advancedLength || containsAny(lower, advancedKeywords) {
		return model.DifficultyAdvanced
	}
	if n > intermediateLength {
		return model.DifficultyIntermediate
	}
	return model.DifficultyBeginner
}

// MatchConcepts 按词表顺序返回在文本中出现的概念，大小写不敏感，结果去重
func MatchConcepts(lower string, vocabulary []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(vocabulary))
	for _, c := range vocabulary {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		if strings.Contains(lower, key) {
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
