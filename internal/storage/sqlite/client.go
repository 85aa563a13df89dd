package sqlite

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/pkg/logger"
)

// Client wraps the gorm connection pool with typed accessors per entity.
// It is created once at process start and injected into every service.
type Client struct {
	db *gorm.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

// NewClientWithDB wraps an already-open connection; used by tests.
func NewClientWithDB(db *gorm.DB) *Client {
	return &Client{db: db}
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *Client) InitSchema() error {
	if err := models.Migrate(c.db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info("SQLite schema initialized")
	return nil
}

// Users

func (c *Client) CreateUser(user *models.User) error {
	return c.db.Create(user).Error
}

func (c *Client) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := c.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := c.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateUser(user *models.User) error {
	return c.db.Save(user).Error
}

// Sessions

func (c *Client) CreateSession(session *models.Session) error {
	return c.db.Create(session).Error
}

func (c *Client) GetSession(token string) (*models.Session, error) {
	var session models.Session
	if err := c.db.Where("token = ?", token).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) DeleteSession(token string) error {
	return c.db.Where("token = ?", token).Delete(&models.Session{}).Error
}

func (c *Client) DeleteExpiredSessions() error {
	return c.db.Where("expires_at < ?", time.Now()).Delete(&models.Session{}).Error
}

// Chats

func (c *Client) CreateChat(chat *models.Chat) error {
	return c.db.Create(chat).Error
}

func (c *Client) GetChat(id string) (*models.Chat, error) {
	var chat models.Chat
	if err := c.db.Where("id = ?", id).First(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) ListChatsByUser(userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := c.db.Where("user_id = ?", userID).Order("updated_at desc").Find(&chats).Error
	return chats, err
}

func (c *Client) UpdateChat(chat *models.Chat) error {
	return c.db.Save(chat).Error
}

// TouchChat bumps the chat's modification timestamp.
func (c *Client) TouchChat(id string) error {
	return c.db.Model(&models.Chat{}).Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

// AppendActiveDocument appends docID to the chat's active list if not
// already present. Order is preserved; duplicates are never introduced.
func (c *Client) AppendActiveDocument(chatID, docID string) error {
	chat, err := c.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat.ActiveDocumentIDs.Contains(docID) {
		return nil
	}
	chat.ActiveDocumentIDs = append(chat.ActiveDocumentIDs, docID)
	return c.db.Model(chat).Update("active_document_ids", chat.ActiveDocumentIDs).Error
}

// ReplaceActiveDocuments sets the chat's active list to exactly ids.
func (c *Client) ReplaceActiveDocuments(chatID string, ids []string) error {
	return c.db.Model(&models.Chat{}).Where("id = ?", chatID).
		Update("active_document_ids", models.StringList(ids)).Error
}

// SetAllDocumentsActive sets the active list to the ids of every document
// belonging to the chat, without duplicates.
func (c *Client) SetAllDocumentsActive(chatID string) ([]string, error) {
	docs, err := c.ListDocumentsByChat(chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if err := c.ReplaceActiveDocuments(chatID, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Messages

func (c *Client) CreateMessage(msg *models.Message) error {
	return c.db.Create(msg).Error
}

func (c *Client) ListMessages(chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := c.db.Where("chat_id = ?", chatID).Order("created_at asc").Find(&messages).Error
	return messages, err
}

// Documents

func (c *Client) CreateDocument(doc *models.Document) error {
	return c.db.Create(doc).Error
}

func (c *Client) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := c.db.Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) ListDocumentsByChat(chatID string) ([]models.Document, error) {
	var docs []models.Document
	err := c.db.Where("chat_id = ?", chatID).Order("created_at asc").Find(&docs).Error
	return docs, err
}

// Knowledge library

func (c *Client) CreateKnowledgeCategory(cat *models.KnowledgeCategory) error {
	return c.db.Create(cat).Error
}

func (c *Client) GetKnowledgeCategory(id string) (*models.KnowledgeCategory, error) {
	var cat models.KnowledgeCategory
	if err := c.db.Where("id = ?", id).First(&cat).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListRootCategories returns root categories with their subcategories
// eagerly loaded one level deep.
func (c *Client) ListRootCategories() ([]models.KnowledgeCategory, error) {
	var cats []models.KnowledgeCategory
	err := c.db.Where("parent_id IS NULL").Preload("SubCategories").
		Order("name asc").Find(&cats).Error
	return cats, err
}

func (c *Client) CreateKnowledgeDocument(doc *models.KnowledgeDocument) error {
	return c.db.Create(doc).Error
}

func (c *Client) GetKnowledgeDocument(id string) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	if err := c.db.Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) ListKnowledgeDocuments(categoryID string) ([]models.KnowledgeDocument, error) {
	var docs []models.KnowledgeDocument
	q := c.db.Order("created_at desc")
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	err := q.Find(&docs).Error
	return docs, err
}

// Projects

func (c *Client) CreateProject(project *models.Project) error {
	return c.db.Create(project).Error
}

func (c *Client) GetProject(id string) (*models.Project, error) {
	var project models.Project
	err := c.db.Where("id = ?", id).
		Preload("Tasks").Preload("Milestones").First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) ListProjectsByUser(userID string) ([]models.Project, error) {
	var projects []models.Project
	err := c.db.Where("user_id = ?", userID).
		Preload("Tasks").Preload("Milestones").
		Order("start_date asc").Find(&projects).Error
	return projects, err
}

func (c *Client) UpdateProject(project *models.Project) error {
	return c.db.Omit("Tasks", "Milestones").Save(project).Error
}

// DeleteProject removes the project and its tasks and milestones in one
// transaction.
func (c *Client) DeleteProject(id string) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Milestone{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Project{}).Error
	})
}

// Tasks

func (c *Client) CreateTask(task *models.Task) error {
	return c.db.Create(task).Error
}

func (c *Client) GetTask(id string) (*models.Task, error) {
	var task models.Task
	if err := c.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(task *models.Task) error {
	return c.db.Save(task).Error
}

// Milestones

func (c *Client) CreateMilestone(m *models.Milestone) error {
	return c.db.Create(m).Error
}

func (c *Client) GetMilestone(id string) (*models.Milestone, error) {
	var m models.Milestone
	if err := c.db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) UpdateMilestone(m *models.Milestone) error {
	return c.db.Save(m).Error
}

// Deadline sweep queries

func (c *Client) ListMilestonesDueBetween(from, to time.Time) ([]models.Milestone, error) {
	var ms []models.Milestone
	err := c.db.Where("completed = ? AND due_date >= ? AND due_date <= ?", false, from, to).
		Order("due_date asc").Find(&ms).Error
	return ms, err
}

func (c *Client) ListTasksEndingBetween(from, to time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := c.db.Where("progress < ? AND end_date >= ? AND end_date <= ?", 100, from, to).
		Order("end_date asc").Find(&tasks).Error
	return tasks, err
}
