package project

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
)

func testService(t *testing.T) (*Service, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	seedUser(t, store, "user-1")

	return NewService(store), store
}

func seedUser(t *testing.T, store *sqlite.Client, id string) {
	t.Helper()

	require.NoError(t, store.CreateUser(&models.User{
		ID:           id,
		Name:         id,
		Email:        id + "@example.org",
		PasswordHash: "hash",
		Role:         models.RoleUser,
	}))
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestCreateProject(t *testing.T) {
	s, _ := testService(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 6, 0)

	t.Run("requires name", func(t *testing.T) {
		_, err := s.Create("user-1", ProjectInput{StartDate: start, EndDate: end})
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("rejects reversed dates", func(t *testing.T) {
		_, err := s.Create("user-1", ProjectInput{Name: "Bad", StartDate: end, EndDate: start})
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("creates", func(t *testing.T) {
		project, err := s.Create("user-1", ProjectInput{
			Name:        "Horizon pilot",
			Description: "Pilot action",
			StartDate:   start,
			EndDate:     end,
		})
		require.NoError(t, err)
		assert.Equal(t, "Horizon pilot", project.Name)
		assert.Equal(t, "user-1", project.UserID)

		listed, err := s.List("user-1")
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})
}

func TestProjectOwnership(t *testing.T) {
	s, store := testService(t)
	seedUser(t, store, "owner")

	project, err := s.Create("owner", ProjectInput{Name: "Owned"})
	require.NoError(t, err)

	_, err = s.Get("intruder", project.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = s.Update("intruder", project.ID, ProjectInput{Name: "Taken"})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	err = s.Delete("intruder", project.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = s.Get("owner", uuid.New().String())
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUpdateProjectPartial(t *testing.T) {
	s, _ := testService(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	project, err := s.Create("user-1", ProjectInput{
		Name:      "Original",
		StartDate: start,
		EndDate:   start.AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	updated, err := s.Update("user-1", project.ID, ProjectInput{Description: "Now described"})
	require.NoError(t, err)
	assert.Equal(t, "Original", updated.Name)
	assert.Equal(t, "Now described", updated.Description)

	// Moving endDate before the existing startDate is rejected.
	_, err = s.Update("user-1", project.ID, ProjectInput{EndDate: start.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestUpdateTask(t *testing.T) {
	s, store := testService(t)

	project, err := s.Create("user-1", ProjectInput{Name: "With tasks"})
	require.NoError(t, err)

	task := &models.Task{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      "WP1",
	}
	require.NoError(t, store.CreateTask(task))

	t.Run("updates progress", func(t *testing.T) {
		updated, err := s.UpdateTask("user-1", task.ID, TaskInput{Progress: intPtr(60)})
		require.NoError(t, err)
		assert.Equal(t, 60, updated.Progress)
		assert.Equal(t, "WP1", updated.Name)
	})

	t.Run("rejects out of range progress", func(t *testing.T) {
		_, err := s.UpdateTask("user-1", task.ID, TaskInput{Progress: intPtr(101)})
		assert.ErrorIs(t, err, auth.ErrInvalidInput)

		_, err = s.UpdateTask("user-1", task.ID, TaskInput{Progress: intPtr(-1)})
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("ownership via project", func(t *testing.T) {
		_, err := s.UpdateTask("intruder", task.ID, TaskInput{Progress: intPtr(10)})
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := s.UpdateTask("user-1", uuid.New().String(), TaskInput{Progress: intPtr(10)})
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUpdateMilestone(t *testing.T) {
	s, store := testService(t)

	project, err := s.Create("user-1", ProjectInput{Name: "With milestones"})
	require.NoError(t, err)

	milestone := &models.Milestone{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Review meeting",
		DueDate:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateMilestone(milestone))

	updated, err := s.UpdateMilestone("user-1", milestone.ID, MilestoneInput{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "Review meeting", updated.Title)

	_, err = s.UpdateMilestone("intruder", milestone.ID, MilestoneInput{Completed: boolPtr(false)})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestDeleteProjectRemovesChildren(t *testing.T) {
	s, store := testService(t)

	project, err := s.Create("user-1", ProjectInput{Name: "Doomed"})
	require.NoError(t, err)

	task := &models.Task{ID: uuid.New().String(), ProjectID: project.ID, Name: "t"}
	milestone := &models.Milestone{ID: uuid.New().String(), ProjectID: project.ID, Title: "m"}
	require.NoError(t, store.CreateTask(task))
	require.NoError(t, store.CreateMilestone(milestone))

	require.NoError(t, s.Delete("user-1", project.ID))

	_, err = store.GetTask(task.ID)
	assert.Error(t, err)
	_, err = store.GetMilestone(milestone.ID)
	assert.Error(t, err)
}
