package service

import (
	"context"
	"sync"
	"testing"

	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mathPath = "math-foundations"
	module1  = "math-foundations-module-1"
	module2  = "math-foundations-module-2"
	module3  = "math-foundations-module-3"
)

func moduleStatuses(e *model.UserLearningPath) map[string]model.ModuleStatus {
	out := map[string]model.ModuleStatus{}
	for _, mp := range e.ModuleProgress {
		out[mp.ModuleID] = mp.Status
	}
	return out
}

func TestLearningPath_EnrollIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)
	assert.Equal(t, model.PathInProgress, first.Status)
	statuses := moduleStatuses(first)
	assert.Equal(t, model.ModuleAvailable, statuses[module1])
	assert.Equal(t, model.ModuleLocked, statuses[module2])
	assert.Equal(t, model.ModuleLocked, statuses[module3])
	require.NotNil(t, first.CurrentModuleID)
	assert.Equal(t, module1, *first.CurrentModuleID)

	second, err := f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	path, err := f.paths.GetPath(ctx, mathPath)
	require.NoError(t, err)
	assert.Equal(t, 1, path.EnrollmentCount)

	_, err = f.paths.Enroll(ctx, "u1", "missing")
	assert.ErrorIs(t, err, util.ErrPathNotFound)
}

func TestLearningPath_ThreeModuleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)

	e, err := f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 100, TimeSpent: 300})
	require.NoError(t, err)
	statuses := moduleStatuses(e)
	assert.Equal(t, model.ModuleCompleted, statuses[module1])
	assert.Equal(t, model.ModuleAvailable, statuses[module2])
	assert.Equal(t, model.ModuleLocked, statuses[module3])
	assert.Equal(t, model.PathInProgress, e.Status)
	assert.Equal(t, 33, e.Progress)
	assert.Equal(t, module2, *e.CurrentModuleID)
	completedAt := e.ModuleProgress[e.FindModule(module1)].CompletedAt
	require.NotNil(t, completedAt)

	_, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module2, ModuleProgressUpdate{Progress: 100})
	require.NoError(t, err)
	e, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module3, ModuleProgressUpdate{Progress: 100})
	require.NoError(t, err)
	assert.Equal(t, model.PathCompleted, e.Status)
	assert.Equal(t, 100, e.Progress)
	assert.NotNil(t, e.CompletedAt)
	assert.Equal(t, module3, *e.CurrentModuleID)

	e, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 50, TimeSpent: 60})
	require.NoError(t, err)
	mp := e.ModuleProgress[e.FindModule(module1)]
	assert.Equal(t, model.ModuleCompleted, mp.Status)
	assert.Equal(t, 100, mp.Progress)
	assert.Equal(t, 2, mp.Attempts)
	assert.Equal(t, 360, mp.TimeSpent)
	assert.True(t, completedAt.Equal(*mp.CompletedAt))
	assert.Equal(t, model.PathCompleted, e.Status)
	assert.Len(t, e.CompletedModules, 3)

	summary, err := f.achievements.GetUserAchievements(ctx, "u1")
	require.NoError(t, err)
	var ids []string
	for _, v := range summary.Completed {
		ids = append(ids, v.Achievement.ID)
	}
	assert.Contains(t, ids, "first-module")
}

func TestLearningPath_ModuleErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 10})
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)

	_, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module3, ModuleProgressUpdate{Progress: 10})
	assert.ErrorIs(t, err, util.ErrModuleLocked)
	assert.ErrorIs(t, err, util.ErrInvalidState)

	_, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, "nope", ModuleProgressUpdate{Progress: 10})
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestLearningPath_ProgressClampedAndFailedIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)

	e, err := f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: -20})
	require.NoError(t, err)
	mp := e.ModuleProgress[e.FindModule(module1)]
	assert.Equal(t, model.ModuleInProgress, mp.Status)
	assert.Equal(t, 0, mp.Progress)

	score := 20.0
	e, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 40, Score: &score, Failed: true})
	require.NoError(t, err)
	assert.Equal(t, model.ModuleFailed, e.ModuleProgress[e.FindModule(module1)].Status)
	assert.Equal(t, model.ModuleLocked, moduleStatuses(e)[module2])

	e, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 100})
	require.NoError(t, err)
	assert.Equal(t, model.ModuleFailed, e.ModuleProgress[e.FindModule(module1)].Status)
	assert.Equal(t, 0, e.Progress)
}

func TestLearningPath_RecommendExcludesEnrolled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	recs, err := f.paths.Recommend(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)

	recs, err = f.paths.Recommend(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "history-latin-america", recs[0].ID)

	recs, err = f.paths.Recommend(ctx, "u2", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	all, err := f.paths.GetUserProgress(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Path)
	assert.Len(t, all[0].Path.Modules, 3)

	one, err := f.paths.GetUserProgress(ctx, "u1", strPtr(mathPath))
	require.NoError(t, err)
	assert.Len(t, one, 1)

	_, err = f.paths.GetUserProgress(ctx, "u1", strPtr("history-latin-america"))
	assert.ErrorIs(t, err, util.ErrEnrollmentNotFound)
}

func TestLearningPath_ScoreRecordedOnEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)

	score := 87.5
	e, err := f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 40, Score: &score})
	require.NoError(t, err)
	require.NotNil(t, e.Score)
	assert.Equal(t, 87.5, *e.Score)

	stored, err := f.paths.Repo.FindEnrollment(ctx, "u1", mathPath)
	require.NoError(t, err)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 87.5, *stored.Score)
	mp := stored.ModuleProgress[stored.FindModule(module1)]
	require.NotNil(t, mp.Score)
	assert.Equal(t, 87.5, *mp.Score)

	// 不带分数的更新保留上次分数
	e, err = f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 60})
	require.NoError(t, err)
	require.NotNil(t, e.Score)
	assert.Equal(t, 87.5, *e.Score)
}

func TestLearningPath_ConcurrentModuleUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.paths.Enroll(ctx, "u1", mathPath)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.paths.UpdateModuleProgress(ctx, "u1", mathPath, module1, ModuleProgressUpdate{Progress: 50, TimeSpent: 10})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	e, err := f.paths.Repo.FindEnrollment(ctx, "u1", mathPath)
	require.NoError(t, err)
	mp := e.ModuleProgress[e.FindModule(module1)]
	assert.Equal(t, workers, mp.Attempts)
	assert.Equal(t, workers*10, mp.TimeSpent)
	assert.Equal(t, workers*10, e.TotalTimeSpent)
	assert.Equal(t, model.ModuleInProgress, mp.Status)
}
