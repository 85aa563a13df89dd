package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/backend/internal/deadline"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
)

func cronTestApp(t *testing.T, token string) (*fiber.App, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	detector := deadline.NewDetector(store, deadline.NewRegexExtractor(0, 0))
	handler := NewCronHandler(detector, token, 14)

	app := fiber.New()
	app.Get("/cron/check-deadlines", handler.CheckDeadlines)
	return app, store
}

func TestCronRejectsWithoutToken(t *testing.T) {
	app, _ := cronTestApp(t, "sweep-token")

	req := httptest.NewRequest("GET", "/cron/check-deadlines", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/cron/check-deadlines", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCronRejectsWhenUnconfigured(t *testing.T) {
	app, _ := cronTestApp(t, "")

	req := httptest.NewRequest("GET", "/cron/check-deadlines", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCronReportsUpcomingDeadlines(t *testing.T) {
	app, store := cronTestApp(t, "sweep-token")

	require.NoError(t, store.CreateUser(&models.User{
		ID:           "user-1",
		Name:         "user-1",
		Email:        "user-1@example.org",
		PasswordHash: "hash",
		Role:         models.RoleUser,
	}))

	project := &models.Project{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Name:   "Running project",
	}
	require.NoError(t, store.CreateProject(project))
	require.NoError(t, store.CreateMilestone(&models.Milestone{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Periodic report",
		DueDate:   time.Now().Add(3 * 24 * time.Hour),
	}))

	req := httptest.NewRequest("GET", "/cron/check-deadlines", nil)
	req.Header.Set("Authorization", "Bearer sweep-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Total      int `json:"total"`
		WindowDays int `json:"windowDays"`
		Upcoming   []struct {
			Label string `json:"label"`
		} `json:"upcoming"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, 1, payload.Total)
	assert.Equal(t, 14, payload.WindowDays)
	require.Len(t, payload.Upcoming, 1)
	assert.Equal(t, "Periodic report", payload.Upcoming[0].Label)
}
