package service

import (
	"context"
	"sync"
	"testing"

	"tutor_backend/internal/llm"
	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db           *gorm.DB
	gen          *llm.MockGenerator
	subjects     *SubjectCache
	progression  *ProgressionService
	achievements *AchievementService
	tutor        *TutorService
	paths        *LearningPathService
	goals        *GoalService
	stats        *StatsService
}

func newFixture(t *testing.T, replies ...llm.MockReply) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", "test")
	require.NoError(t, err)
	require.NoError(t, database.Seed(db))

	progressRepo := repository.NewProgressRepository(db)
	pathRepo := repository.NewLearningPathRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	f := &fixture{db: db, gen: llm.NewMockGenerator(replies...)}
	f.subjects = NewSubjectCache(subjectRepo, nil)
	require.NoError(t, f.subjects.Refresh(context.Background()))

	f.achievements = NewAchievementService(repository.NewAchievementRepository(db), progressRepo, pathRepo)
	f.progression = NewProgressionService(progressRepo)
	f.progression.Evaluator = f.achievements

	storage := &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}, MaxBytes: 1 << 20}
	chatRepo := repository.NewChatRepository(db)
	f.tutor = NewTutorService(chatRepo, subjectRepo, f.subjects, f.progression, storage, f.gen, 0)

	f.paths = NewLearningPathService(pathRepo)
	f.paths.Evaluator = f.achievements
	goalRepo := repository.NewGoalRepository(db)
	f.goals = NewGoalService(goalRepo)
	f.stats = NewStatsService(chatRepo, progressRepo, pathRepo, goalRepo, f.achievements)
	return f
}

func TestProgression_AwardXPIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	award, err := f.progression.AwardXP(ctx, "u1", "mathematics", 282)
	require.NoError(t, err)
	assert.Equal(t, 0, award.PreviousXP)
	assert.Equal(t, 282, award.CurrentXP)
	assert.Equal(t, 1, award.PreviousLevel)
	assert.Equal(t, 2, award.CurrentLevel)
	assert.True(t, award.LeveledUp)

	award, err = f.progression.AwardXP(ctx, "u1", "mathematics", 0)
	require.NoError(t, err)
	assert.Equal(t, 282, award.CurrentXP)
	assert.Equal(t, 2, award.CurrentLevel)
	assert.False(t, award.LeveledUp)

	_, err = f.progression.AwardXP(ctx, "u1", "mathematics", -5)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestProgression_LevelNeverRegresses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.progression.Repo.Ensure(ctx, "u1", "history")
	require.NoError(t, err)
	// 等级高于公式结果时保持不变
	ok, err := f.progression.Repo.UpdateCAS(ctx, p.ID, p.Version, map[string]interface{}{"level": 4})
	require.NoError(t, err)
	require.True(t, ok)

	award, err := f.progression.AwardXP(ctx, "u1", "history", 10)
	require.NoError(t, err)
	assert.Equal(t, 4, award.CurrentLevel)
	assert.Equal(t, 10, award.CurrentXP)
}

func TestProgression_CreditConceptsDeduplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.progression.CreditConcepts(ctx, "u1", "mathematics", []string{"álgebra", "cálculo"}, CreditOptions{NewSession: true, MessageDelta: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"álgebra", "cálculo"}, []string(p.ConceptsLearned))
	assert.InDelta(t, 10.0, p.Progress, 0.001)
	assert.Equal(t, 1, p.TotalSessions)
	assert.Equal(t, 1, p.TotalMessages)

	p, err = f.progression.CreditConcepts(ctx, "u1", "mathematics", []string{"cálculo"}, CreditOptions{MessageDelta: 1})
	require.NoError(t, err)
	assert.Len(t, p.ConceptsLearned, 2)
	assert.Equal(t, 2, p.TotalMessages)
}

func TestProgression_GetSubjectProgressDefault(t *testing.T) {
	f := newFixture(t)

	p, err := f.progression.GetSubjectProgress(context.Background(), "nobody", "grammar")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.Zero(t, p.XP)
	assert.Empty(t, p.ConceptsLearned)
}

func TestSubjectCache_ServesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	math, ok := f.subjects.Get("mathematics")
	require.True(t, ok)
	assert.Equal(t, "Matemáticas", math.Name)
	total := len(f.subjects.List())

	admin := NewSubjectService(f.tutor.SubjectRepo, f.subjects)
	inactive := false
	updated, err := admin.Update(ctx, "science", UpdateSubjectRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, ok = f.subjects.Get("science")
	assert.False(t, ok)
	assert.Len(t, f.subjects.List(), total-1)

	_, err = admin.Update(ctx, "missing", UpdateSubjectRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, util.ErrSubjectNotFound)
}

func TestAchievements_EvaluateAfterSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.tutor.StartSession(ctx, "u1", strPtr("mathematics"), "")
	require.NoError(t, err)

	summary, err := f.achievements.GetUserAchievements(ctx, "u1")
	require.NoError(t, err)

	completed := map[string]bool{}
	for _, v := range summary.Completed {
		completed[v.Achievement.ID] = true
	}
	assert.True(t, completed["first-session"])
	assert.False(t, completed["ten-sessions"])
	assert.Equal(t, 10, summary.TotalPoints)

	recent, err := f.achievements.GetRecent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "first-session", recent[0].AchievementID)

	require.NoError(t, f.achievements.MarkNotified(ctx, "u1", "first-session"))
	assert.ErrorIs(t, f.achievements.MarkNotified(ctx, "u1", "level-five"), util.ErrAchievementNotFound)

	catalog, err := f.achievements.ListCatalog(ctx, "", "")
	require.NoError(t, err)
	for _, entry := range catalog {
		if entry.ID == "first-session" {
			assert.Equal(t, 1, entry.UnlockedBy)
		}
	}
}

func TestGoals_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	goal, err := f.goals.CreateGoal(ctx, "u1", CreateGoalRequest{
		Title:       "Estudiar álgebra",
		TargetValue: 5,
		Milestones:  []model.GoalMilestone{{Title: "mitad", TargetValue: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.GoalActive, goal.Status)
	assert.Equal(t, model.PriorityMedium, goal.Priority)
	assert.Equal(t, model.GoalCustom, goal.Type)

	goal, err = f.goals.ChangeStatus(ctx, "u1", goal.ID, model.GoalPaused)
	require.NoError(t, err)
	assert.Equal(t, model.GoalPaused, goal.Status)

	_, err = f.goals.CompleteGoal(ctx, "u1", goal.ID)
	assert.ErrorIs(t, err, util.ErrInvalidGoalTransition)

	goal, err = f.goals.ChangeStatus(ctx, "u1", goal.ID, model.GoalActive)
	require.NoError(t, err)

	goal, err = f.goals.UpdateProgress(ctx, "u1", goal.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, model.GoalActive, goal.Status)
	assert.True(t, goal.Milestones[0].Reached)

	goal, err = f.goals.UpdateProgress(ctx, "u1", goal.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, model.GoalCompleted, goal.Status)
	assert.NotNil(t, goal.CompletedAt)

	_, err = f.goals.ChangeStatus(ctx, "u1", goal.ID, model.GoalCancelled)
	assert.ErrorIs(t, err, util.ErrInvalidGoalTransition)

	_, err = f.goals.GetGoal(ctx, "u2", goal.ID)
	assert.ErrorIs(t, err, util.ErrGoalNotFound)
	assert.ErrorIs(t, f.goals.DeleteGoal(ctx, "u2", goal.ID), util.ErrGoalNotFound)

	require.NoError(t, f.goals.DeleteGoal(ctx, "u1", goal.ID))
	goals, err := f.goals.ListGoals(ctx, "u1", "", 0)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestGoals_CreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.goals.CreateGoal(context.Background(), "u1", CreateGoalRequest{Title: "  ", TargetValue: 1})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestGoals_UpdateRejectsNonPositiveTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	goal, err := f.goals.CreateGoal(ctx, "u1", CreateGoalRequest{Title: "Practicar fracciones", TargetValue: 4})
	require.NoError(t, err)

	for _, target := range []int{0, -3} {
		value := target
		_, err = f.goals.UpdateGoal(ctx, "u1", goal.ID, UpdateGoalRequest{TargetValue: &value})
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	}

	stored, err := f.goals.GetGoal(ctx, "u1", goal.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.TargetValue)

	value := 6
	updated, err := f.goals.UpdateGoal(ctx, "u1", goal.ID, UpdateGoalRequest{TargetValue: &value})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.TargetValue)
}

func TestProgression_ConcurrentAwardXP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.progression.AwardXP(ctx, "u1", "mathematics", 10)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := f.progression.GetSubjectProgress(ctx, "u1", "mathematics")
	require.NoError(t, err)
	assert.Equal(t, workers*10, p.XP)
}

func TestProgression_ConcurrentCreditConcepts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	concepts := []string{"fracciones", "decimales", "porcentajes", "potencias", "raíces", "ecuaciones"}
	var wg sync.WaitGroup
	errs := make(chan error, len(concepts))
	for _, concept := range concepts {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			_, err := f.progression.CreditConcepts(ctx, "u1", "mathematics", []string{c}, CreditOptions{MessageDelta: 1})
			errs <- err
		}(concept)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := f.progression.GetSubjectProgress(ctx, "u1", "mathematics")
	require.NoError(t, err)
	assert.ElementsMatch(t, concepts, []string(p.ConceptsLearned))
	assert.Equal(t, len(concepts), p.TotalMessages)
}
