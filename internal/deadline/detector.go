package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
	"github.com/grantdesk/backend/pkg/logger"
)

// CreatedItem is one task or milestone materialized by detection, tagged
// with its type so callers can tally counts.
type CreatedItem struct {
	Type      string     `json:"type"`
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

type Result struct {
	Success      bool            `json:"success"`
	Project      *models.Project `json:"project,omitempty"`
	CreatedItems []CreatedItem   `json:"createdItems"`
	TotalCreated int             `json:"totalCreated"`
	Error        string          `json:"error,omitempty"`
}

// Detector scans a document's text for date mentions and materializes them
// as Project/Task/Milestone rows.
type Detector struct {
	store     *sqlite.Client
	extractor Extractor
}

func NewDetector(store *sqlite.Client, extractor Extractor) *Detector {
	return &Detector{store: store, extractor: extractor}
}

// Detect looks up the document among chat documents first (verifying chat
// ownership), then among shared knowledge documents. An empty document
// yields Success=false with no rows created.
func (d *Detector) Detect(ctx context.Context, userID, documentID string) (*Result, error) {
	title, content, err := d.lookupDocument(userID, documentID)
	if err != nil {
		return nil, err
	}

	if content == "" {
		return &Result{
			Success:      false,
			CreatedItems: []CreatedItem{},
			Error:        "document has no text content",
		}, nil
	}

	mentions := d.extractor.ExtractCandidateDates(ctx, content)
	if len(mentions) == 0 {
		return &Result{
			Success:      false,
			CreatedItems: []CreatedItem{},
			Error:        "no deadlines found in document",
		}, nil
	}

	project := &models.Project{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        title,
		Description: fmt.Sprintf("Generated from document %q", title),
		StartDate:   projectStart(mentions),
		EndDate:     projectEnd(mentions),
	}
	if err := d.store.CreateProject(project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	items := make([]CreatedItem, 0, len(mentions))
	for _, m := range mentions {
		switch m.Kind {
		case KindTask:
			task := &models.Task{
				ID:        uuid.New().String(),
				ProjectID: project.ID,
				Name:      m.Label,
				StartDate: m.Start,
				EndDate:   m.End,
				Progress:  0,
			}
			if err := d.store.CreateTask(task); err != nil {
				return nil, fmt.Errorf("failed to create task: %w", err)
			}
			start, end := task.StartDate, task.EndDate
			items = append(items, CreatedItem{
				Type:      KindTask,
				ID:        task.ID,
				Label:     task.Name,
				StartDate: &start,
				EndDate:   &end,
			})
		case KindMilestone:
			milestone := &models.Milestone{
				ID:        uuid.New().String(),
				ProjectID: project.ID,
				Title:     m.Label,
				DueDate:   m.Due,
			}
			if err := d.store.CreateMilestone(milestone); err != nil {
				return nil, fmt.Errorf("failed to create milestone: %w", err)
			}
			due := milestone.DueDate
			items = append(items, CreatedItem{
				Type:    KindMilestone,
				ID:      milestone.ID,
				Label:   milestone.Title,
				DueDate: &due,
			})
		}
	}

	logger.Info("Deadlines detected",
		zap.String("document_id", documentID),
		zap.String("project_id", project.ID),
		zap.Int("items", len(items)),
	)

	return &Result{
		Success:      true,
		Project:      project,
		CreatedItems: items,
		TotalCreated: len(items),
	}, nil
}

// lookupDocument resolves the document id against chat-scoped documents
// first, falling back to the shared knowledge library. Knowledge documents
// carry no ownership check.
func (d *Detector) lookupDocument(userID, documentID string) (title, content string, err error) {
	doc, err := d.store.GetDocument(documentID)
	if err == nil {
		chat, chatErr := d.store.GetChat(doc.ChatID)
		if chatErr != nil {
			return "", "", fmt.Errorf("failed to look up owning chat: %w", chatErr)
		}
		if chat.UserID != userID {
			return "", "", auth.ErrForbidden
		}
		return doc.Title, doc.Content, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", fmt.Errorf("failed to look up document: %w", err)
	}

	kdoc, kerr := d.store.GetKnowledgeDocument(documentID)
	if kerr != nil {
		if errors.Is(kerr, gorm.ErrRecordNotFound) {
			return "", "", auth.ErrNotFound
		}
		return "", "", fmt.Errorf("failed to look up knowledge document: %w", kerr)
	}
	return kdoc.Title, kdoc.Content, nil
}

func projectStart(mentions []DateMention) time.Time {
	start := time.Time{}
	for _, m := range mentions {
		candidate := m.Due
		if m.Kind == KindTask {
			candidate = m.Start
		}
		if start.IsZero() || candidate.Before(start) {
			start = candidate
		}
	}
	if start.IsZero() {
		start = time.Now()
	}
	return start
}

func projectEnd(mentions []DateMention) time.Time {
	end := time.Time{}
	for _, m := range mentions {
		candidate := m.Due
		if m.Kind == KindTask {
			candidate = m.End
		}
		if candidate.After(end) {
			end = candidate
		}
	}
	if end.IsZero() {
		end = time.Now()
	}
	return end
}

// Notification is one upcoming deadline found by the sweep.
type Notification struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Label     string    `json:"label"`
	Due       time.Time `json:"due"`
}

// CheckUpcomingDeadlines is the idempotent sweep invoked by the external
// scheduler: it lists incomplete milestones and unfinished tasks due within
// the window. It mutates nothing.
func (d *Detector) CheckUpcomingDeadlines(ctx context.Context, window time.Duration) ([]Notification, error) {
	now := time.Now()
	until := now.Add(window)

	milestones, err := d.store.ListMilestonesDueBetween(now, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming milestones: %w", err)
	}

	tasks, err := d.store.ListTasksEndingBetween(now, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list ending tasks: %w", err)
	}

	notifications := make([]Notification, 0, len(milestones)+len(tasks))
	for _, m := range milestones {
		notifications = append(notifications, Notification{
			Type:      KindMilestone,
			ID:        m.ID,
			ProjectID: m.ProjectID,
			Label:     m.Title,
			Due:       m.DueDate,
		})
	}
	for _, t := range tasks {
		notifications = append(notifications, Notification{
			Type:      KindTask,
			ID:        t.ID,
			ProjectID: t.ProjectID,
			Label:     t.Name,
			Due:       t.EndDate,
		})
	}

	logger.Info("Deadline sweep completed",
		zap.Int("upcoming", len(notifications)),
		zap.Duration("window", window),
	)

	return notifications, nil
}
