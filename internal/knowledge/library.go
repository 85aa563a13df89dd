package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/cache/redis"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
	"github.com/grantdesk/backend/pkg/logger"
	"github.com/grantdesk/backend/pkg/utils"
)

const categoryTreeKey = "knowledge:categories"

// Library manages the shared knowledge documents and their category tree.
// Reads are shared across users; writes are admin-only (enforced here in
// addition to the route middleware).
type Library struct {
	store    *sqlite.Client
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewLibrary(store *sqlite.Client, cache *redis.Client, cacheTTL time.Duration) *Library {
	return &Library{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// ListCategories returns root categories with one eager level of
// subcategories. Cache failures fall through to the database.
func (l *Library) ListCategories(ctx context.Context) ([]models.KnowledgeCategory, error) {
	var cached []models.KnowledgeCategory
	hit, err := l.cache.GetJSON(ctx, categoryTreeKey, &cached)
	if err != nil {
		logger.Warn("Category cache read failed", zap.Error(err))
	}
	if hit {
		metrics.CacheHits.WithLabelValues("knowledge").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("knowledge").Inc()

	cats, err := l.store.ListRootCategories()
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	if err := l.cache.SetJSON(ctx, categoryTreeKey, cats, l.cacheTTL); err != nil {
		logger.Warn("Category cache write failed", zap.Error(err))
	}

	return cats, nil
}

type CreateCategoryInput struct {
	Name     string
	ParentID string
	Password string
	IsPublic bool
}

// CreateCategory creates a category; admin role required. The optional
// password is stored only as its digest.
func (l *Library) CreateCategory(ctx context.Context, actor *models.User, in CreateCategoryInput) (*models.KnowledgeCategory, error) {
	if actor == nil {
		return nil, auth.ErrUnauthenticated
	}
	if actor.Role != models.RoleAdmin {
		return nil, auth.ErrForbidden
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", auth.ErrInvalidInput)
	}

	cat := &models.KnowledgeCategory{
		ID:        uuid.New().String(),
		Name:      in.Name,
		IsPublic:  in.IsPublic,
		CreatedBy: actor.ID,
	}

	if in.ParentID != "" {
		if _, err := l.store.GetKnowledgeCategory(in.ParentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: parent category does not exist", auth.ErrInvalidInput)
			}
			return nil, fmt.Errorf("failed to look up parent category: %w", err)
		}
		cat.ParentID = &in.ParentID
	}

	if in.Password != "" {
		cat.PasswordDigest = utils.DigestPassword(in.Password)
	}

	if err := l.store.CreateKnowledgeCategory(cat); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	l.invalidateTree(ctx)

	logger.Info("Knowledge category created",
		zap.String("category_id", cat.ID),
		zap.String("created_by", actor.ID),
	)

	return cat, nil
}

// VerifyPassword checks access to a category. Categories without a stored
// digest are open regardless of the supplied password; otherwise the
// digest of the trimmed input must match exactly.
func (l *Library) VerifyPassword(categoryID, password string) error {
	cat, err := l.store.GetKnowledgeCategory(categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.ErrNotFound
		}
		return fmt.Errorf("failed to look up category: %w", err)
	}

	if !cat.HasPassword() {
		return nil
	}

	if utils.DigestPassword(password) != cat.PasswordDigest {
		return auth.ErrForbidden
	}

	return nil
}

type CreateDocumentInput struct {
	Title      string
	Content    string
	FileType   string
	CategoryID string
}

// CreateDocument adds a document to the library; admin role required and
// the category must exist.
func (l *Library) CreateDocument(actor *models.User, in CreateDocumentInput) (*models.KnowledgeDocument, error) {
	if actor == nil {
		return nil, auth.ErrUnauthenticated
	}
	if actor.Role != models.RoleAdmin {
		return nil, auth.ErrForbidden
	}
	if in.Title == "" || in.CategoryID == "" {
		return nil, fmt.Errorf("%w: title and categoryId are required", auth.ErrInvalidInput)
	}

	if _, err := l.store.GetKnowledgeCategory(in.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: category does not exist", auth.ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to look up category: %w", err)
	}

	doc := &models.KnowledgeDocument{
		ID:         uuid.New().String(),
		Title:      in.Title,
		FileType:   in.FileType,
		Content:    in.Content,
		CategoryID: in.CategoryID,
	}
	if err := l.store.CreateKnowledgeDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to create knowledge document: %w", err)
	}

	return doc, nil
}

func (l *Library) GetDocument(id string) (*models.KnowledgeDocument, error) {
	doc, err := l.store.GetKnowledgeDocument(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up knowledge document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns library documents, optionally filtered by
// category.
func (l *Library) ListDocuments(categoryID string) ([]models.KnowledgeDocument, error) {
	docs, err := l.store.ListKnowledgeDocuments(categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge documents: %w", err)
	}
	return docs, nil
}

func (l *Library) invalidateTree(ctx context.Context) {
	if err := l.cache.Delete(ctx, categoryTreeKey); err != nil {
		logger.Warn("Failed to invalidate category cache", zap.Error(err))
	}
}
