package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/backend/internal/storage/models"
)

func testClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())

	t.Cleanup(func() { client.Close() })
	return client
}

func seedUser(t *testing.T, c *Client, id string) {
	t.Helper()

	require.NoError(t, c.CreateUser(&models.User{
		ID:           id,
		Name:         id,
		Email:        id + "@example.org",
		PasswordHash: "hash",
		Role:         models.RoleUser,
	}))
}

func seedChat(t *testing.T, c *Client, userID string) *models.Chat {
	t.Helper()

	seedUser(t, c, userID)

	chat := &models.Chat{
		ID:                uuid.New().String(),
		Title:             "Test chat",
		UserID:            userID,
		ActiveDocumentIDs: models.StringList{},
	}
	require.NoError(t, c.CreateChat(chat))
	return chat
}

func seedDocument(t *testing.T, c *Client, chatID, title string) *models.Document {
	t.Helper()

	doc := &models.Document{
		ID:      uuid.New().String(),
		ChatID:  chatID,
		Title:   title,
		Content: "content of " + title,
	}
	require.NoError(t, c.CreateDocument(doc))
	return doc
}

func TestAppendActiveDocument(t *testing.T) {
	client := testClient(t)
	chat := seedChat(t, client, "user-1")
	docA := seedDocument(t, client, chat.ID, "a")
	docB := seedDocument(t, client, chat.ID, "b")

	require.NoError(t, client.AppendActiveDocument(chat.ID, docA.ID))
	require.NoError(t, client.AppendActiveDocument(chat.ID, docB.ID))

	got, err := client.GetChat(chat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{docA.ID, docB.ID}, got.ActiveDocumentIDs)

	// Appending an id a second time must not introduce a duplicate.
	require.NoError(t, client.AppendActiveDocument(chat.ID, docA.ID))

	got, err = client.GetChat(chat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{docA.ID, docB.ID}, got.ActiveDocumentIDs)
}

func TestReplaceActiveDocuments(t *testing.T) {
	client := testClient(t)
	chat := seedChat(t, client, "user-1")
	docA := seedDocument(t, client, chat.ID, "a")
	docB := seedDocument(t, client, chat.ID, "b")

	require.NoError(t, client.AppendActiveDocument(chat.ID, docA.ID))
	require.NoError(t, client.ReplaceActiveDocuments(chat.ID, []string{docB.ID}))

	got, err := client.GetChat(chat.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{docB.ID}, got.ActiveDocumentIDs)

	require.NoError(t, client.ReplaceActiveDocuments(chat.ID, nil))

	got, err = client.GetChat(chat.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ActiveDocumentIDs)
}

func TestSetAllDocumentsActive(t *testing.T) {
	client := testClient(t)
	chat := seedChat(t, client, "user-1")
	docA := seedDocument(t, client, chat.ID, "a")
	docB := seedDocument(t, client, chat.ID, "b")
	docC := seedDocument(t, client, chat.ID, "c")

	// Start from a list that already contains one of the documents.
	require.NoError(t, client.AppendActiveDocument(chat.ID, docB.ID))

	ids, err := client.SetAllDocumentsActive(chat.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{docA.ID, docB.ID, docC.ID}, ids)
	assert.Len(t, ids, 3)

	got, err := client.GetChat(chat.ID)
	require.NoError(t, err)
	assert.Len(t, got.ActiveDocumentIDs, 3)

	seen := map[string]bool{}
	for _, id := range got.ActiveDocumentIDs {
		assert.False(t, seen[id], "duplicate id %s in active list", id)
		seen[id] = true
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	client := testClient(t)
	seedUser(t, client, "user-1")

	project := &models.Project{
		ID:        uuid.New().String(),
		UserID:    "user-1",
		Name:      "Grant project",
		StartDate: time.Now(),
		EndDate:   time.Now().AddDate(0, 6, 0),
	}
	require.NoError(t, client.CreateProject(project))

	task := &models.Task{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      "WP1 report",
		StartDate: project.StartDate,
		EndDate:   project.EndDate,
	}
	require.NoError(t, client.CreateTask(task))

	milestone := &models.Milestone{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Interim review",
		DueDate:   project.EndDate,
	}
	require.NoError(t, client.CreateMilestone(milestone))

	require.NoError(t, client.DeleteProject(project.ID))

	_, err := client.GetProject(project.ID)
	assert.Error(t, err)
	_, err = client.GetTask(task.ID)
	assert.Error(t, err)
	_, err = client.GetMilestone(milestone.ID)
	assert.Error(t, err)
}

func TestDeadlineSweepQueries(t *testing.T) {
	client := testClient(t)
	seedUser(t, client, "user-1")

	project := &models.Project{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Name:   "Sweep project",
	}
	require.NoError(t, client.CreateProject(project))

	now := time.Now()

	due := &models.Milestone{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Due soon",
		DueDate:   now.Add(48 * time.Hour),
	}
	done := &models.Milestone{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Already completed",
		DueDate:   now.Add(48 * time.Hour),
		Completed: true,
	}
	far := &models.Milestone{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Far away",
		DueDate:   now.AddDate(1, 0, 0),
	}
	for _, m := range []*models.Milestone{due, done, far} {
		require.NoError(t, client.CreateMilestone(m))
	}

	ending := &models.Task{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      "Ending soon",
		EndDate:   now.Add(72 * time.Hour),
		Progress:  40,
	}
	finished := &models.Task{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      "Finished",
		EndDate:   now.Add(72 * time.Hour),
		Progress:  100,
	}
	for _, tk := range []*models.Task{ending, finished} {
		require.NoError(t, client.CreateTask(tk))
	}

	window := now.Add(7 * 24 * time.Hour)

	milestones, err := client.ListMilestonesDueBetween(now, window)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, due.ID, milestones[0].ID)

	tasks, err := client.ListTasksEndingBetween(now, window)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, ending.ID, tasks[0].ID)
}

func TestSessionLifecycle(t *testing.T) {
	client := testClient(t)

	session := &models.Session{
		Token:     "tok-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, client.CreateSession(session))

	got, err := client.GetSession("tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	require.NoError(t, client.DeleteExpiredSessions())

	_, err = client.GetSession("tok-1")
	assert.Error(t, err)
}
