package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
	"github.com/grantdesk/backend/pkg/logger"
)

// Completer is the external completion API surface the orchestrator needs.
type Completer interface {
	AnalyzeDocuments(ctx context.Context, question, documentContext string) (string, error)
}

// Orchestrator persists chat messages and forwards document-grounded
// questions to the completion API. One round trip per analysis call, no
// retries beyond what the client itself performs.
type Orchestrator struct {
	store           *sqlite.Client
	completer       Completer
	contextBudget   int
	fallbackMessage string
}

func NewOrchestrator(store *sqlite.Client, completer Completer, contextBudget int, fallbackMessage string) *Orchestrator {
	if contextBudget <= 0 {
		contextBudget = 12000
	}
	return &Orchestrator{
		store:           store,
		completer:       completer,
		contextBudget:   contextBudget,
		fallbackMessage: fallbackMessage,
	}
}

// ownedChat is the ownership guard for every chat-scoped operation.
func (o *Orchestrator) ownedChat(userID, chatID string) (*models.Chat, error) {
	chat, err := o.store.GetChat(chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up chat: %w", err)
	}
	if chat.UserID != userID {
		return nil, auth.ErrForbidden
	}
	return chat, nil
}

func (o *Orchestrator) ListChats(userID string) ([]models.Chat, error) {
	return o.store.ListChatsByUser(userID)
}

func (o *Orchestrator) CreateChat(userID, title string) (*models.Chat, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", auth.ErrInvalidInput)
	}
	chat := &models.Chat{
		ID:                uuid.New().String(),
		Title:             title,
		UserID:            userID,
		ActiveDocumentIDs: models.StringList{},
	}
	if err := o.store.CreateChat(chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (o *Orchestrator) GetChat(userID, chatID string) (*models.Chat, error) {
	return o.ownedChat(userID, chatID)
}

func (o *Orchestrator) ListMessages(userID, chatID string) ([]models.Message, error) {
	if _, err := o.ownedChat(userID, chatID); err != nil {
		return nil, err
	}
	return o.store.ListMessages(chatID)
}

// PostMessage stores a message. Roles outside {user, assistant} are
// rejected before any row is created.
func (o *Orchestrator) PostMessage(userID, chatID, role, content string) (*models.Message, error) {
	if role != models.MessageRoleUser && role != models.MessageRoleAssistant {
		return nil, fmt.Errorf("%w: role must be user or assistant", auth.ErrInvalidInput)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", auth.ErrInvalidInput)
	}

	if _, err := o.ownedChat(userID, chatID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:      uuid.New().String(),
		ChatID:  chatID,
		Role:    role,
		Content: content,
	}
	if err := o.store.CreateMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if err := o.store.TouchChat(chatID); err != nil {
		logger.Warn("Failed to touch chat", zap.String("chat_id", chatID), zap.Error(err))
	}

	return msg, nil
}

// ListDocuments returns the chat's documents.
func (o *Orchestrator) ListDocuments(userID, chatID string) ([]models.Document, error) {
	if _, err := o.ownedChat(userID, chatID); err != nil {
		return nil, err
	}
	return o.store.ListDocumentsByChat(chatID)
}

// ActivateDocuments updates the chat's active-document list. With
// activateAll the list becomes exactly the ids of the chat's documents;
// otherwise the provided ids replace the list after being checked for
// membership in the chat.
func (o *Orchestrator) ActivateDocuments(userID, chatID string, documentIDs []string, activateAll bool) ([]string, error) {
	if _, err := o.ownedChat(userID, chatID); err != nil {
		return nil, err
	}

	if activateAll {
		return o.store.SetAllDocumentsActive(chatID)
	}

	docs, err := o.store.ListDocumentsByChat(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	owned := make(map[string]bool, len(docs))
	for _, d := range docs {
		owned[d.ID] = true
	}

	deduped := make([]string, 0, len(documentIDs))
	seen := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		if !owned[id] {
			return nil, fmt.Errorf("%w: document %s does not belong to this chat", auth.ErrInvalidInput, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}

	if err := o.store.ReplaceActiveDocuments(chatID, deduped); err != nil {
		return nil, fmt.Errorf("failed to update active documents: %w", err)
	}
	return deduped, nil
}

// Analyze answers a question from the chat's active documents. The user
// question and the assistant reply are both persisted; on upstream failure
// the reply is the configured fallback message rather than an error.
func (o *Orchestrator) Analyze(ctx context.Context, userID, chatID, question string) (*models.Message, error) {
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", auth.ErrInvalidInput)
	}

	chat, err := o.ownedChat(userID, chatID)
	if err != nil {
		return nil, err
	}

	documentContext := o.buildContext(chat)

	if _, err := o.PostMessage(userID, chatID, models.MessageRoleUser, question); err != nil {
		return nil, err
	}

	answer, err := o.completer.AnalyzeDocuments(ctx, question, documentContext)
	if err != nil {
		logger.Error("Completion API failed, using fallback",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		metrics.LLMFailures.Inc()
		answer = o.fallbackMessage
	}

	return o.PostMessage(userID, chatID, models.MessageRoleAssistant, answer)
}

// buildContext concatenates active document contents up to the character
// budget, preserving activation order.
func (o *Orchestrator) buildContext(chat *models.Chat) string {
	var b strings.Builder
	for _, docID := range chat.ActiveDocumentIDs {
		doc, err := o.store.GetDocument(docID)
		if err != nil {
			logger.Warn("Active document missing", zap.String("doc_id", docID), zap.Error(err))
			continue
		}

		remaining := o.contextBudget - b.Len()
		if remaining <= 0 {
			break
		}

		section := fmt.Sprintf("=== %s ===\n%s\n\n", doc.Title, doc.Content)
		if len(section) > remaining {
			section = section[:remaining]
		}
		b.WriteString(section)
	}

	if b.Len() == 0 {
		return "(no active documents)"
	}
	return b.String()
}
