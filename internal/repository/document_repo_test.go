package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"collab-editor/internal/db"
	"collab-editor/internal/models"

	"gorm.io/driver/sqlite"
)

func newTestDB(t *testing.T) *db.GormDB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), "silent")
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	sqlDB, err := gdb.DB.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = gdb.Close() })
	return gdb
}

func newTestDocumentRepo(t *testing.T) *DocumentRepositoryImpl {
	return NewDocumentRepository(newTestDB(t).DB)
}

func TestLoadOrCreateCreatesEmptyDocument(t *testing.T) {
	repo := newTestDocumentRepo(t)
	ctx := context.Background()

	doc, err := repo.LoadOrCreate(ctx, "d1")
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if doc.ID != "d1" || doc.Content != "" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be set")
	}
}

func TestLoadOrCreateKeepsExistingContent(t *testing.T) {
	repo := newTestDocumentRepo(t)
	ctx := context.Background()

	if err := repo.ReplaceContent(ctx, "d1", "existing"); err != nil {
		t.Fatalf("ReplaceContent() error = %v", err)
	}
	doc, err := repo.LoadOrCreate(ctx, "d1")
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if doc.Content != "existing" {
		t.Fatalf("Content = %q, want %q", doc.Content, "existing")
	}
}

func TestReplaceContentReadYourWrite(t *testing.T) {
	repo := newTestDocumentRepo(t)
	ctx := context.Background()

	for _, content := range []string{"", "hello", "héllo\nwörld"} {
		if err := repo.ReplaceContent(ctx, "d1", content); err != nil {
			t.Fatalf("ReplaceContent() error = %v", err)
		}
		doc, err := repo.LoadOrCreate(ctx, "d1")
		if err != nil {
			t.Fatalf("LoadOrCreate() error = %v", err)
		}
		if doc.Content != content {
			t.Fatalf("Content = %q, want %q", doc.Content, content)
		}
	}
}

func TestReplaceContentLastWriteWins(t *testing.T) {
	repo := newTestDocumentRepo(t)
	ctx := context.Background()

	if err := repo.ReplaceContent(ctx, "d1", "X"); err != nil {
		t.Fatalf("ReplaceContent(X) error = %v", err)
	}
	if err := repo.ReplaceContent(ctx, "d1", "Y"); err != nil {
		t.Fatalf("ReplaceContent(Y) error = %v", err)
	}

	doc, err := repo.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Content != "Y" {
		t.Fatalf("Content = %q, want Y", doc.Content)
	}
	if doc.UpdatedAt.Before(doc.CreatedAt) {
		t.Fatalf("UpdatedAt %v before CreatedAt %v", doc.UpdatedAt, doc.CreatedAt)
	}
}

func TestLoadOrCreateConcurrentCreators(t *testing.T) {
	repo := newTestDocumentRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.LoadOrCreate(ctx, "race"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}

	docs, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected exactly one document, got %d", len(docs))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestDocumentRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestListPagination(t *testing.T) {
	repo := newTestDocumentRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.ReplaceContent(ctx, id, id); err != nil {
			t.Fatalf("ReplaceContent() error = %v", err)
		}
	}

	first, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	rest, err := repo.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(first) != 2 || len(rest) != 1 {
		t.Fatalf("unexpected page sizes %d, %d", len(first), len(rest))
	}
}

func TestStoreUnavailable(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewDocumentRepository(gdb.DB)
	if err := gdb.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := repo.LoadOrCreate(context.Background(), "d1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("LoadOrCreate() error = %v, want ErrStoreUnavailable", err)
	}
	if err := repo.ReplaceContent(context.Background(), "d1", "x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("ReplaceContent() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(newTestDB(t).DB)
	ctx := context.Background()

	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected KSUID to be generated")
	}

	dup := &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "hash"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Create(duplicate) error = %v, want ErrDuplicate", err)
	}

	got, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("GetByUsername() ID = %s, want %s", got.ID, user.ID)
	}

	if _, err := repo.GetByUsername(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByUsername(bob) error = %v, want ErrNotFound", err)
	}
}
