package knowledge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
)

func testLibrary(t *testing.T) (*Library, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	// Nil cache: the redis client no-ops and every read hits the database.
	return NewLibrary(store, nil, 0), store
}

func admin() *models.User {
	return &models.User{ID: "admin-1", Name: "Admin", Role: models.RoleAdmin}
}

func regular() *models.User {
	return &models.User{ID: "user-1", Name: "User", Role: models.RoleUser}
}

func TestCreateCategoryRequiresAdmin(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	_, err := lib.CreateCategory(ctx, regular(), CreateCategoryInput{Name: "Calls", IsPublic: true})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = lib.CreateCategory(ctx, nil, CreateCategoryInput{Name: "Calls", IsPublic: true})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	cat, err := lib.CreateCategory(ctx, admin(), CreateCategoryInput{Name: "Calls", IsPublic: true})
	require.NoError(t, err)
	assert.Equal(t, "Calls", cat.Name)
	assert.Equal(t, "admin-1", cat.CreatedBy)
	assert.False(t, cat.HasPassword())
}

func TestCreateCategoryValidatesParent(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	_, err := lib.CreateCategory(ctx, admin(), CreateCategoryInput{
		Name:     "Subcategory",
		ParentID: uuid.New().String(),
	})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	parent, err := lib.CreateCategory(ctx, admin(), CreateCategoryInput{Name: "Parent", IsPublic: true})
	require.NoError(t, err)

	child, err := lib.CreateCategory(ctx, admin(), CreateCategoryInput{
		Name:     "Child",
		ParentID: parent.ID,
		IsPublic: true,
	})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)

	roots, err := lib.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
}

func TestVerifyPasswordOpenCategory(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	cat, err := lib.CreateCategory(ctx, admin(), CreateCategoryInput{Name: "Open", IsPublic: true})
	require.NoError(t, err)

	// A category without a stored digest is open regardless of input.
	assert.NoError(t, lib.VerifyPassword(cat.ID, ""))
	assert.NoError(t, lib.VerifyPassword(cat.ID, "anything at all"))
}

func TestVerifyPasswordProtectedCategory(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	cat, err := lib.CreateCategory(ctx, admin(), CreateCategoryInput{
		Name:     "Protected",
		Password: "s3cret",
	})
	require.NoError(t, err)

	assert.NoError(t, lib.VerifyPassword(cat.ID, "s3cret"))

	// Leading and trailing whitespace is trimmed before digesting.
	assert.NoError(t, lib.VerifyPassword(cat.ID, "  s3cret  "))

	assert.ErrorIs(t, lib.VerifyPassword(cat.ID, "wrong"), auth.ErrForbidden)
	assert.ErrorIs(t, lib.VerifyPassword(cat.ID, ""), auth.ErrForbidden)
}

func TestVerifyPasswordUnknownCategory(t *testing.T) {
	lib, _ := testLibrary(t)

	err := lib.VerifyPassword(uuid.New().String(), "whatever")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestCreateDocument(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()

	cat, err := lib.CreateCategory(ctx, admin(), CreateCategoryInput{Name: "Guides", IsPublic: true})
	require.NoError(t, err)

	t.Run("requires admin", func(t *testing.T) {
		_, err := lib.CreateDocument(regular(), CreateDocumentInput{
			Title:      "Horizon guide",
			CategoryID: cat.ID,
		})
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("requires existing category", func(t *testing.T) {
		_, err := lib.CreateDocument(admin(), CreateDocumentInput{
			Title:      "Orphan",
			CategoryID: uuid.New().String(),
		})
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("creates and lists", func(t *testing.T) {
		doc, err := lib.CreateDocument(admin(), CreateDocumentInput{
			Title:      "Horizon guide",
			Content:    "How to report costs.",
			FileType:   "md",
			CategoryID: cat.ID,
		})
		require.NoError(t, err)

		got, err := lib.GetDocument(doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "Horizon guide", got.Title)

		docs, err := lib.ListDocuments(cat.ID)
		require.NoError(t, err)
		require.Len(t, docs, 1)

		all, err := lib.ListDocuments("")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestGetDocumentNotFound(t *testing.T) {
	lib, _ := testLibrary(t)

	_, err := lib.GetDocument(uuid.New().String())
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
