package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
)

const fallback = "I could not analyze the documents right now. Please try again later."

type stubCompleter struct {
	answer      string
	err         error
	lastContext string
}

func (s *stubCompleter) AnalyzeDocuments(ctx context.Context, question, documentContext string) (string, error) {
	s.lastContext = documentContext
	return s.answer, s.err
}

func testOrchestrator(t *testing.T, completer Completer) (*Orchestrator, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	seedUser(t, store, "user-1")

	return NewOrchestrator(store, completer, 0, fallback), store
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

func TestCreateChatRequiresTitle(t *testing.T) {
	o, _ := testOrchestrator(t, &stubCompleter{})

	_, err := o.CreateChat("user-1", "")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	chat, err := o.CreateChat("user-1", "Budget questions")
	require.NoError(t, err)
	assert.Equal(t, "Budget questions", chat.Title)
	assert.Empty(t, chat.ActiveDocumentIDs)
}

func TestOwnershipGuard(t *testing.T) {
	o, store := testOrchestrator(t, &stubCompleter{})
	seedUser(t, store, "owner")

	chat, err := o.CreateChat("owner", "Owned chat")
	require.NoError(t, err)

	_, err = o.GetChat("intruder", chat.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = o.ListMessages("intruder", chat.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = o.GetChat("owner", uuid.New().String())
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestPostMessageRejectsUnknownRole(t *testing.T) {
	o, store := testOrchestrator(t, &stubCompleter{})

	chat, err := o.CreateChat("user-1", "Role test")
	require.NoError(t, err)

	_, err = o.PostMessage("user-1", chat.ID, "system", "sneaky")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	_, err = o.PostMessage("user-1", chat.ID, models.MessageRoleUser, "")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	// No row was created by the rejected calls.
	messages, err := store.ListMessages(chat.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	msg, err := o.PostMessage("user-1", chat.ID, models.MessageRoleUser, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.MessageRoleUser, msg.Role)
}

func TestAnalyzePersistsQuestionAndAnswer(t *testing.T) {
	completer := &stubCompleter{answer: "The total budget is 2.4M EUR."}
	o, _ := testOrchestrator(t, completer)

	chat, err := o.CreateChat("user-1", "Budget")
	require.NoError(t, err)

	reply, err := o.Analyze(context.Background(), "user-1", chat.ID, "What is the budget?")
	require.NoError(t, err)
	assert.Equal(t, models.MessageRoleAssistant, reply.Role)
	assert.Equal(t, "The total budget is 2.4M EUR.", reply.Content)

	messages, err := o.ListMessages("user-1", chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.MessageRoleUser, messages[0].Role)
	assert.Equal(t, "What is the budget?", messages[0].Content)
	assert.Equal(t, models.MessageRoleAssistant, messages[1].Role)
}

func TestAnalyzeFallsBackOnCompleterError(t *testing.T) {
	completer := &stubCompleter{err: errors.New("rate limited")}
	o, _ := testOrchestrator(t, completer)

	chat, err := o.CreateChat("user-1", "Fallback")
	require.NoError(t, err)

	reply, err := o.Analyze(context.Background(), "user-1", chat.ID, "Anything?")
	require.NoError(t, err)
	assert.Equal(t, fallback, reply.Content)

	// Both the question and the apology are persisted.
	messages, err := o.ListMessages("user-1", chat.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestAnalyzeBuildsContextFromActiveDocuments(t *testing.T) {
	completer := &stubCompleter{answer: "ok"}
	o, store := testOrchestrator(t, completer)

	chat, err := o.CreateChat("user-1", "Context")
	require.NoError(t, err)

	active := &models.Document{
		ID:      uuid.New().String(),
		ChatID:  chat.ID,
		Title:   "Annex 1",
		Content: "Description of the action.",
	}
	inactive := &models.Document{
		ID:      uuid.New().String(),
		ChatID:  chat.ID,
		Title:   "Annex 2",
		Content: "Financial rules.",
	}
	require.NoError(t, store.CreateDocument(active))
	require.NoError(t, store.CreateDocument(inactive))
	require.NoError(t, store.ReplaceActiveDocuments(chat.ID, []string{active.ID}))

	_, err = o.Analyze(context.Background(), "user-1", chat.ID, "What does it say?")
	require.NoError(t, err)

	assert.Contains(t, completer.lastContext, "Annex 1")
	assert.Contains(t, completer.lastContext, "Description of the action.")
	assert.NotContains(t, completer.lastContext, "Financial rules.")
}

func TestAnalyzeWithNoActiveDocuments(t *testing.T) {
	completer := &stubCompleter{answer: "ok"}
	o, _ := testOrchestrator(t, completer)

	chat, err := o.CreateChat("user-1", "Empty context")
	require.NoError(t, err)

	_, err = o.Analyze(context.Background(), "user-1", chat.ID, "Hello?")
	require.NoError(t, err)

	assert.Equal(t, "(no active documents)", completer.lastContext)
}

func TestActivateDocuments(t *testing.T) {
	o, store := testOrchestrator(t, &stubCompleter{})

	chat, err := o.CreateChat("user-1", "Activation")
	require.NoError(t, err)

	docA := &models.Document{ID: uuid.New().String(), ChatID: chat.ID, Title: "a", Content: "a"}
	docB := &models.Document{ID: uuid.New().String(), ChatID: chat.ID, Title: "b", Content: "b"}
	require.NoError(t, store.CreateDocument(docA))
	require.NoError(t, store.CreateDocument(docB))

	t.Run("replaces list and dedupes", func(t *testing.T) {
		ids, err := o.ActivateDocuments("user-1", chat.ID, []string{docA.ID, docA.ID, docB.ID}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{docA.ID, docB.ID}, ids)
	})

	t.Run("rejects foreign document ids", func(t *testing.T) {
		_, err := o.ActivateDocuments("user-1", chat.ID, []string{uuid.New().String()}, false)
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("activate all", func(t *testing.T) {
		ids, err := o.ActivateDocuments("user-1", chat.ID, nil, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{docA.ID, docB.ID}, ids)
	})

	t.Run("ownership enforced", func(t *testing.T) {
		_, err := o.ActivateDocuments("intruder", chat.ID, nil, true)
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})
}

func TestContextBudgetTruncation(t *testing.T) {
	completer := &stubCompleter{answer: "ok"}

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	seedUser(t, store, "user-1")

	o := NewOrchestrator(store, completer, 100, fallback)

	chat, err := o.CreateChat("user-1", "Budgeted")
	require.NoError(t, err)

	doc := &models.Document{
		ID:      uuid.New().String(),
		ChatID:  chat.ID,
		Title:   "Huge",
		Content: strings.Repeat("x", 5000),
	}
	require.NoError(t, store.CreateDocument(doc))
	require.NoError(t, store.ReplaceActiveDocuments(chat.ID, []string{doc.ID}))

	_, err = o.Analyze(context.Background(), "user-1", chat.ID, "Summarize")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(completer.lastContext), 100)
}
