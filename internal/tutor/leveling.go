package tutor

import "math"

const (
	levelBase     = 100.0
	levelExponent = 1.5
)

// XPAward 一次经验发放的结果，LeveledUp 用于前端弹出升级提示
type XPAward struct {
	SubjectID     string `json:"subjectId"`
	PreviousXP    int    `json:"previousXp"`
	CurrentXP     int    `json:"currentXp"`
	PreviousLevel int    `json:"previousLevel"`
	CurrentLevel  int    `json:"currentLevel"`
	LeveledUp     bool   `json:"leveledUp"`
}

// XPForLevel 达到某等级所需的累计经验：floor(100 × level^1.5)
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return int(math.Floor(levelBase * math.Pow(float64(level), levelExponent)))
}

// LevelForXP 经验对应的等级：floor((xp/100)^(1/1.5))，至少为 1。
// 浮点误差会让恰好落在门槛上的经验少算一级（例如 282 算出 1.996），
// 这里按 XPForLevel 的门槛校正，保证 LevelForXP(XPForLevel(n)) == n。
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	level := int(math.Floor(math.Pow(float64(xp)/levelBase, 1/levelExponent)))
	if level < 1 {
		level = 1
	}
	for XPForLevel(level+1) <= xp {
		level++
	}
	for level > 1 && XPForLevel(level) > xp {
		level--
	}
	return level
}

// ApplyXP 累加经验并计算新等级，等级不会下降
func ApplyXP(previousXP, previousLevel, amount int) XPAward {
	if previousLevel < 1 {
		previousLevel = 1
	}
	current := previousXP + amount
	level := LevelForXP(current)
	if level < previousLevel {
		level = previousLevel
	}
	return XPAward{
		PreviousXP:    previousXP,
		CurrentXP:     current,
		PreviousLevel: previousLevel,
		CurrentLevel:  level,
		LeveledUp:     level > previousLevel,
	}
}

// XPToNextLevel 距离下一级还差多少经验
func XPToNextLevel(xp, level int) int {
	need := XPForLevel(level+1) - xp
	if need < 0 {
		return 0
	}
	return need
}
