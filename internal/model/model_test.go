package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoalStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to GoalStatus
		want     bool
	}{
		{GoalActive, GoalPaused, true},
		{GoalPaused, GoalActive, true},
		{GoalActive, GoalCompleted, true},
		{GoalPaused, GoalCompleted, false},
		{GoalPaused, GoalCancelled, true},
		{GoalActive, GoalExpired, true},
		{GoalActive, GoalActive, false},
		{GoalCompleted, GoalActive, false},
		{GoalCancelled, GoalPaused, false},
		{GoalExpired, GoalCancelled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestAppendUnique(t *testing.T) {
	out, added := AppendUnique([]string{"álgebra", "fracciones"}, "fracciones", "", "geometría", "geometría")
	assert.Equal(t, []string{"álgebra", "fracciones", "geometría"}, out)
	assert.Equal(t, 1, added)

	out, added = AppendUnique(nil)
	assert.Empty(t, out)
	assert.Zero(t, added)
}

func TestSubjectProgress_RecomputeProgressCaps(t *testing.T) {
	p := &SubjectProgress{ConceptsLearned: []string{"a", "b", "c", "d", "e"}}
	p.RecomputeProgress()
	assert.InDelta(t, 25.0, p.Progress, 0.001)

	concepts := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		concepts = append(concepts, string(rune('a'+i)))
	}
	p.ConceptsLearned = concepts
	p.RecomputeProgress()
	assert.InDelta(t, 100.0, p.Progress, 0.001)
}

func TestModuleStatus_Rank(t *testing.T) {
	assert.Less(t, ModuleLocked.Rank(), ModuleAvailable.Rank())
	assert.Less(t, ModuleAvailable.Rank(), ModuleInProgress.Rank())
	assert.Equal(t, ModuleCompleted.Rank(), ModuleFailed.Rank())
	assert.True(t, ModuleFailed.Terminal())
	assert.False(t, ModuleInProgress.Terminal())
}

func TestUserLearningPath_FindModule(t *testing.T) {
	u := &UserLearningPath{ModuleProgress: []ModuleProgress{{ModuleID: "m1"}, {ModuleID: "m2"}}}
	assert.Equal(t, 1, u.FindModule("m2"))
	assert.Equal(t, -1, u.FindModule("m3"))
}
