package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/inkpost/inkpost/internal/model"
)

// Common errors for post repository operations.
var ErrPostNotFound = errors.New("post not found")

// NewPost holds the fields of a post to insert.
type NewPost struct {
	Title    string
	Content  string
	OwnerID  int64
	TagNames []string
}

// PostUpdate holds the replacement fields of an existing post.
// TagNames replaces the whole tag set.
type PostUpdate struct {
	ID       int64
	Title    string
	Content  string
	TagNames []string
}

// PostSearch filters a page of posts. Results are ordered by ID descending and
// hold at most Limit rows; callers wanting a lookahead row ask for one more.
type PostSearch struct {
	BeforeID *int64
	Query    string
	Limit    int
}

// PostGuard inspects a locked post before it is modified. A non-nil error
// aborts the transaction and is returned unchanged to the caller.
// The post passed to the guard carries its columns only, not owner or tags.
type PostGuard func(post *model.Post) error

const postSelect = `
	SELECT p.id, p.title, p.content, p.owner_id, p.created_at, p.updated_at,
	       u.id, u.name, u.email, u.image
	FROM posts p
	JOIN users u ON u.id = p.owner_id
`

// CreatePost inserts a post with its tags in one transaction and returns it hydrated.
func (r *Repository) CreatePost(ctx context.Context, in NewPost) (*model.Post, error) {
	var post *model.Post
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO posts (title, content, owner_id)
			VALUES ($1, $2, $3)
			RETURNING id
		`, in.Title, in.Content, in.OwnerID).Scan(&id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to create post: %w", err)
		}

		tagIDs, err := resolveTags(ctx, tx, in.TagNames)
		if err != nil {
			return err
		}
		if err := insertPostTags(ctx, tx, id, tagIDs); err != nil {
			return err
		}

		post, err = getPost(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost retrieves a hydrated post by ID.
func (r *Repository) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	return getPost(ctx, r.pool, id)
}

// ListPosts returns every post, newest ID first, hydrated.
func (r *Repository) ListPosts(ctx context.Context) ([]*model.Post, error) {
	return queryPosts(ctx, r.pool, postSelect+` ORDER BY p.id DESC`)
}

// SearchPosts returns a page of hydrated posts matching search.
// A non-blank Query matches title, content or any tag name, case-insensitively.
func (r *Repository) SearchPosts(ctx context.Context, search PostSearch) ([]*model.Post, error) {
	query := postSelect + ` WHERE TRUE`
	args := []any{}
	argIndex := 1

	if search.BeforeID != nil {
		query += fmt.Sprintf(" AND p.id < $%d", argIndex)
		args = append(args, *search.BeforeID)
		argIndex++
	}

	if q := strings.TrimSpace(search.Query); q != "" {
		query += fmt.Sprintf(` AND (
			p.title ILIKE $%[1]d
			OR p.content ILIKE $%[1]d
			OR EXISTS (
				SELECT 1 FROM post_tags pt
				JOIN tags t ON t.id = pt.tag_id
				WHERE pt.post_id = p.id AND t.name ILIKE $%[1]d
			)
		)`, argIndex)
		args = append(args, "%"+escapeLike(q)+"%")
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY p.id DESC LIMIT $%d", argIndex)
	args = append(args, search.Limit)

	return queryPosts(ctx, r.pool, query, args...)
}

// UpdatePost locks the post, runs guard, then replaces its fields and tag set.
func (r *Repository) UpdatePost(ctx context.Context, in PostUpdate, guard PostGuard) (*model.Post, error) {
	var post *model.Post
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockPost(ctx, tx, in.ID, guard); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			UPDATE posts
			SET title = $2, content = $3, updated_at = NOW()
			WHERE id = $1
		`, in.ID, in.Title, in.Content)
		if err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}

		tagIDs, err := resolveTags(ctx, tx, in.TagNames)
		if err != nil {
			return err
		}
		if err := replacePostTags(ctx, tx, in.ID, tagIDs); err != nil {
			return err
		}

		post, err = getPost(ctx, tx, in.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost locks the post, runs guard, then deletes it. Associations cascade;
// tags are kept.
func (r *Repository) DeletePost(ctx context.Context, id int64, guard PostGuard) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockPost(ctx, tx, id, guard); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return nil
	})
}

func lockPost(ctx context.Context, tx pgx.Tx, id int64, guard PostGuard) error {
	var p model.Post
	err := tx.QueryRow(ctx, `
		SELECT id, title, content, owner_id, created_at, updated_at
		FROM posts
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Title, &p.Content, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to lock post: %w", err)
	}
	if guard != nil {
		return guard(&p)
	}
	return nil
}

func getPost(ctx context.Context, q querier, id int64) (*model.Post, error) {
	posts, err := queryPosts(ctx, q, postSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	return posts[0], nil
}

func queryPosts(ctx context.Context, q querier, query string, args ...any) ([]*model.Post, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	rows.Close()

	if err := attachTags(ctx, q, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func scanPost(row pgx.Row) (*model.Post, error) {
	var (
		p     model.Post
		owner model.UserSummary
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.OwnerID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&owner.ID,
		&owner.Name,
		&owner.Email,
		&owner.Image,
	)
	if err != nil {
		return nil, err
	}
	p.Owner = &owner
	p.Tags = []model.Tag{}
	return &p, nil
}

// attachTags loads the tags of posts in one query, sorted by name.
func attachTags(ctx context.Context, q querier, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int64, len(posts))
	byID := make(map[int64]*model.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := q.Query(ctx, `
		SELECT pt.post_id, t.id, t.name
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1)
		ORDER BY t.name
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID int64
			tag    model.Tag
		)
		if err := rows.Scan(&postID, &tag.ID, &tag.Name); err != nil {
			return fmt.Errorf("failed to scan post tag: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Tags = append(p.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating post tags: %w", err)
	}
	return nil
}
