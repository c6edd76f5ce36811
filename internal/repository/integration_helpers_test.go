//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/testutil"
)

func newPostTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(dbURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func createTestUser(t *testing.T, ctx context.Context, repo *Repository, name string) *model.User {
	t.Helper()
	hash := "$2a$04$notarealhashbutlongenoughforthecolumn"
	user := &model.User{
		Name:         name,
		Email:        testutil.UniqueEmail(name),
		PasswordHash: &hash,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

// resolveTagNames runs resolveTags in its own transaction.
func resolveTagNames(ctx context.Context, repo *Repository, names []string) ([]int64, error) {
	var ids []int64
	err := repo.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		ids, err = resolveTags(ctx, tx, names)
		return err
	})
	return ids, err
}

// listTags returns every stored tag ordered by name.
func listTags(t *testing.T, ctx context.Context, repo *Repository) []model.Tag {
	t.Helper()
	rows, err := repo.Pool().Query(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	tags, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.Tag])
	if err != nil {
		t.Fatalf("scan tags: %v", err)
	}
	return tags
}
