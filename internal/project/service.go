package project

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
)

// Service owns project/task/milestone tracking. Date ordering and progress
// bounds are validated here; the storage layer stays permissive.
type Service struct {
	store *sqlite.Client
}

func NewService(store *sqlite.Client) *Service {
	return &Service{store: store}
}

type ProjectInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

func validateDates(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: startDate must not be after endDate", auth.ErrInvalidInput)
	}
	return nil
}

func (s *Service) ownedProject(userID, projectID string) (*models.Project, error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}
	if project.UserID != userID {
		return nil, auth.ErrForbidden
	}
	return project, nil
}

func (s *Service) List(userID string) ([]models.Project, error) {
	return s.store.ListProjectsByUser(userID)
}

func (s *Service) Get(userID, projectID string) (*models.Project, error) {
	return s.ownedProject(userID, projectID)
}

func (s *Service) Create(userID string, in ProjectInput) (*models.Project, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", auth.ErrInvalidInput)
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if err := s.store.CreateProject(project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (s *Service) Update(userID, projectID string, in ProjectInput) (*models.Project, error) {
	project, err := s.ownedProject(userID, projectID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		project.Name = in.Name
	}
	if in.Description != "" {
		project.Description = in.Description
	}
	if !in.StartDate.IsZero() {
		project.StartDate = in.StartDate
	}
	if !in.EndDate.IsZero() {
		project.EndDate = in.EndDate
	}
	if err := validateDates(project.StartDate, project.EndDate); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProject(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// Delete removes the project together with its tasks and milestones.
func (s *Service) Delete(userID, projectID string) error {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

type TaskInput struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Progress  *int      `json:"progress"`
}

func (s *Service) UpdateTask(userID, taskID string, in TaskInput) (*models.Task, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up task: %w", err)
	}

	if _, err := s.ownedProject(userID, task.ProjectID); err != nil {
		return nil, err
	}

	if in.Name != "" {
		task.Name = in.Name
	}
	if !in.StartDate.IsZero() {
		task.StartDate = in.StartDate
	}
	if !in.EndDate.IsZero() {
		task.EndDate = in.EndDate
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return nil, fmt.Errorf("%w: progress must be between 0 and 100", auth.ErrInvalidInput)
		}
		task.Progress = *in.Progress
	}
	if err := validateDates(task.StartDate, task.EndDate); err != nil {
		return nil, err
	}

	if err := s.store.UpdateTask(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

type MilestoneInput struct {
	Title     string    `json:"title"`
	DueDate   time.Time `json:"dueDate"`
	Completed *bool     `json:"completed"`
}

func (s *Service) UpdateMilestone(userID, milestoneID string, in MilestoneInput) (*models.Milestone, error) {
	milestone, err := s.store.GetMilestone(milestoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up milestone: %w", err)
	}

	if _, err := s.ownedProject(userID, milestone.ProjectID); err != nil {
		return nil, err
	}

	if in.Title != "" {
		milestone.Title = in.Title
	}
	if !in.DueDate.IsZero() {
		milestone.DueDate = in.DueDate
	}
	if in.Completed != nil {
		milestone.Completed = *in.Completed
	}

	if err := s.store.UpdateMilestone(milestone); err != nil {
		return nil, fmt.Errorf("failed to update milestone: %w", err)
	}
	return milestone, nil
}
