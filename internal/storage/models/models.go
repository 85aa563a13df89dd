package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Chats    []Chat    `gorm:"foreignKey:UserID" json:"-"`
	Projects []Project `gorm:"foreignKey:UserID" json:"-"`
}

type Session struct {
	Token     string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;index" json:"userId"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// StringList is an ordered list persisted as a JSON TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// Contains reports whether id is already present.
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

type Chat struct {
	ID                string     `gorm:"primaryKey" json:"id"`
	Title             string     `gorm:"not null" json:"title"`
	UserID            string     `gorm:"not null;index" json:"userId"`
	ActiveDocumentIDs StringList `gorm:"type:text" json:"activeDocumentIds"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	Messages  []Message  `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Documents []Document `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

type Message struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ChatID    string    `gorm:"not null;index" json:"chatId"`
	Role      string    `gorm:"not null" json:"role"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentMetadata carries lightweight facts captured at ingestion time.
type DocumentMetadata struct {
	OriginName  string `json:"originName,omitempty"`
	Size        int64  `json:"size,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	Sheets      int    `json:"sheets,omitempty"`
	Rows        int    `json:"rows,omitempty"`
	Columns     int    `json:"columns,omitempty"`
	HasFormulas bool   `json:"hasFormulas,omitempty"`
}

func (m DocumentMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *DocumentMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = DocumentMetadata{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for DocumentMetadata: %T", value)
	}
}

// Document is a chat-scoped document. Content may be the empty string but
// is never null.
type Document struct {
	ID        string           `gorm:"primaryKey" json:"id"`
	ChatID    string           `gorm:"not null;index" json:"chatId"`
	Title     string           `gorm:"not null" json:"title"`
	FileType  string           `json:"fileType"`
	Content   string           `gorm:"not null;default:''" json:"content"`
	Metadata  DocumentMetadata `gorm:"type:text" json:"metadata"`
	Pages     int              `json:"pages,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type KnowledgeCategory struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	ParentID       *string   `gorm:"index" json:"parentId,omitempty"`
	PasswordDigest string    `json:"-"`
	IsPublic       bool      `gorm:"not null;default:true" json:"isPublic"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	SubCategories []KnowledgeCategory `gorm:"foreignKey:ParentID" json:"subCategories,omitempty"`
	Documents     []KnowledgeDocument `gorm:"foreignKey:CategoryID" json:"-"`
}

// HasPassword reports whether access requires password verification.
func (c *KnowledgeCategory) HasPassword() bool {
	return c.PasswordDigest != ""
}

type KnowledgeDocument struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	FileType   string    `json:"fileType"`
	Content    string    `gorm:"not null;default:''" json:"content"`
	CategoryID string    `gorm:"not null;index" json:"categoryId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Project struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"not null;index" json:"userId"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Tasks      []Task      `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	Milestones []Milestone `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
}

type Task struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ProjectID string    `gorm:"not null;index" json:"projectId"`
	Name      string    `gorm:"not null" json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Progress  int       `gorm:"not null;default:0" json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Milestone struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ProjectID string    `gorm:"not null;index" json:"projectId"`
	Title     string    `gorm:"not null" json:"title"`
	DueDate   time.Time `json:"dueDate"`
	Completed bool      `gorm:"not null;default:false" json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Session{},
		&Chat{},
		&Message{},
		&Document{},
		&KnowledgeCategory{},
		&KnowledgeDocument{},
		&Project{},
		&Task{},
		&Milestone{},
	)
}
