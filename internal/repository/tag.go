package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// resolveTags returns the IDs for names in order, creating missing tags.
// Names are expected to be normalized already.
func resolveTags(ctx context.Context, q querier, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	seen := make(map[int64]struct{}, len(names))
	for _, name := range names {
		id, err := findOrCreateTag(ctx, q, name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// findOrCreateTag looks the tag up by exact name and inserts it when missing.
// A concurrent insert of the same name makes ON CONFLICT skip the row, in which
// case the committed row is read back.
func findOrCreateTag(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up tag %q: %w", name, err)
	}

	err = q.QueryRow(ctx, `
		INSERT INTO tags (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to create tag %q: %w", name, err)
	}

	if err := q.QueryRow(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to re-read tag %q: %w", name, err)
	}
	return id, nil
}

// replacePostTags swaps the association set of a post for tagIDs.
func replacePostTags(ctx context.Context, q querier, postID int64, tagIDs []int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("failed to clear post tags: %w", err)
	}
	return insertPostTags(ctx, q, postID, tagIDs)
}

func insertPostTags(ctx context.Context, q querier, postID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO post_tags (post_id, tag_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`, postID, tagIDs)
	if err != nil {
		return fmt.Errorf("failed to link post tags: %w", err)
	}
	return nil
}
