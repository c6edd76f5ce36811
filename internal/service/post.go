package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/inkpost/inkpost/internal/cache"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
	"github.com/inkpost/inkpost/internal/validation"
)

// Feed page size bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PostService handles post business logic.
type PostService struct {
	store     PostStore
	cache     PostCache
	cacheTTL  time.Duration
	metrics   metrics.Recorder
	logger    *slog.Logger
	validator *validation.Validator
}

// NewPostService creates a new PostService. cache may be nil to disable
// the detail cache.
func NewPostService(store PostStore, postCache PostCache, cacheTTL time.Duration, recorder metrics.Recorder, logger *slog.Logger) *PostService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultPostTTL
	}
	return &PostService{
		store:     store,
		cache:     postCache,
		cacheTTL:  cacheTTL,
		metrics:   recorder,
		logger:    logger,
		validator: validation.New(),
	}
}

// PostInput is the writable part of a post.
type PostInput struct {
	Title   string   `json:"title" validate:"notblank,max=200"`
	Content string   `json:"content" validate:"notblank,max=50000"`
	Tags    []string `json:"tags" validate:"max=20,dive,max=50"`
}

// ListPostsInput selects a feed page. Zero Limit means DefaultPageSize.
type ListPostsInput struct {
	Limit  int
	Cursor *int64
	Query  string
}

// ListPostsOutput is one feed page. NextCursor is set only when HasNextPage is true.
type ListPostsOutput struct {
	Posts       []*model.Post
	NextCursor  *int64
	HasNextPage bool
}

func (s *PostService) validate(in *PostInput) error {
	in.Tags = NormalizeTagNames(in.Tags)

	fields, err := s.validator.Struct(in)
	if err != nil {
		return err
	}
	if fields != nil {
		return newValidationError(fields)
	}
	return nil
}

func ownerFromPrincipal(p *model.Principal) (int64, error) {
	if p == nil {
		return 0, ErrAuthenticationFailed
	}
	id, ok := parsePrincipalID(p.UserID)
	if !ok {
		return 0, ErrAuthenticationFailed
	}
	return id, nil
}

// ownerGuard rejects modifications by anyone but the post's owner.
func ownerGuard(p *model.Principal) repository.PostGuard {
	return func(post *model.Post) error {
		if !OwnsPost(post, p.UserID) {
			return ErrForbidden
		}
		return nil
	}
}

// CreatePost creates a post owned by the principal.
func (s *PostService) CreatePost(ctx context.Context, principal *model.Principal, in PostInput) (*model.Post, error) {
	ownerID, err := ownerFromPrincipal(principal)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	post, err := s.store.CreatePost(ctx, repository.NewPost{
		Title:    in.Title,
		Content:  in.Content,
		OwnerID:  ownerID,
		TagNames: in.Tags,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, storageError("create post", err)
	}

	s.invalidate(ctx, post.ID)
	s.metrics.IncPostCreated()
	s.logger.InfoContext(ctx, "post_created", "post_id", post.ID, "owner_id", ownerID, "tags", len(post.Tags))

	return post, nil
}

// GetPost returns one hydrated post, reading through the cache.
func (s *PostService) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	if id <= 0 {
		return nil, ErrPostNotFound
	}

	// version stays -1 when the cache should not be filled.
	version := int64(-1)
	if s.cache != nil {
		if neg, err := s.cache.IsPostNegativelyCached(ctx, id); err == nil && neg {
			s.metrics.IncPostCacheHit()
			return nil, ErrPostNotFound
		}

		cached, err := s.cache.GetPost(ctx, id)
		if err == nil {
			s.metrics.IncPostCacheHit()
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "post_cache_read_failed", "post_id", id, "error", err)
		}
		s.metrics.IncPostCacheMiss()

		if v, err := s.cache.PostVersion(ctx, id); err == nil {
			version = v
		} else {
			s.logger.WarnContext(ctx, "post_cache_read_failed", "post_id", id, "error", err)
		}
	}

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			s.fill(ctx, id, version, nil)
			return nil, ErrPostNotFound
		}
		return nil, storageError("get post", err)
	}

	s.fill(ctx, id, version, post)
	return post, nil
}

// fill back-fills the cache after a database read. A nil post records a
// negative entry. Writes are dropped if the post was invalidated since
// version was read.
func (s *PostService) fill(ctx context.Context, id, version int64, post *model.Post) {
	if s.cache == nil || version < 0 {
		return
	}

	var (
		stored bool
		err    error
	)
	if post == nil {
		stored, err = s.cache.SetPostNegativeCache(ctx, id, version)
	} else {
		stored, err = s.cache.SetPost(ctx, post, s.cacheTTL, version)
	}
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "post_cache_write_failed", "post_id", id, "error", err)
	case !stored:
		s.logger.DebugContext(ctx, "post_cache_fill_skipped", "post_id", id, "version", version)
	}
}

// GetAllPosts returns every post, newest first. It is not paginated.
func (s *PostService) GetAllPosts(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, storageError("list posts", err)
	}
	return posts, nil
}

// SearchPosts returns one feed page, newest first, filtered by Query.
func (s *PostService) SearchPosts(ctx context.Context, in ListPostsInput) (*ListPostsOutput, error) {
	if in.Cursor != nil && *in.Cursor <= 0 {
		return nil, newValidationError(map[string]string{"cursor": "must be a positive integer"})
	}
	limit := clampLimit(in.Limit)

	start := time.Now()
	posts, err := s.store.SearchPosts(ctx, repository.PostSearch{
		BeforeID: in.Cursor,
		Query:    in.Query,
		Limit:    limit + 1,
	})
	s.metrics.ObserveSearchDuration(time.Since(start))
	if err != nil {
		return nil, storageError("search posts", err)
	}

	page, next, hasNext := paginate(posts, limit)
	return &ListPostsOutput{
		Posts:       page,
		NextCursor:  next,
		HasNextPage: hasNext,
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultPageSize
	case limit < 1:
		return 1
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// paginate trims a lookahead result to limit. When the extra row is present
// the last kept post's id becomes the cursor for the next page.
func paginate(posts []*model.Post, limit int) ([]*model.Post, *int64, bool) {
	if posts == nil {
		posts = []*model.Post{}
	}
	if len(posts) <= limit {
		return posts, nil, false
	}
	page := posts[:limit]
	next := page[len(page)-1].ID
	return page, &next, true
}

// UpdatePost replaces title, content and the tag set of a post the principal owns.
func (s *PostService) UpdatePost(ctx context.Context, principal *model.Principal, id int64, in PostInput) (*model.Post, error) {
	if _, err := ownerFromPrincipal(principal); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrPostNotFound
	}
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	post, err := s.store.UpdatePost(ctx, repository.PostUpdate{
		ID:       id,
		Title:    in.Title,
		Content:  in.Content,
		TagNames: in.Tags,
	}, ownerGuard(principal))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			return nil, ErrPostNotFound
		case errors.Is(err, ErrForbidden):
			s.logger.WarnContext(ctx, "post_update_forbidden", "post_id", id, "user_id", principal.UserID)
			return nil, ErrForbidden
		default:
			return nil, storageError("update post", err)
		}
	}

	s.invalidate(ctx, id)
	s.metrics.IncPostUpdated()
	s.logger.InfoContext(ctx, "post_updated", "post_id", id, "tags", len(post.Tags))

	return post, nil
}

// DeletePost removes a post the principal owns. Its tags are kept.
func (s *PostService) DeletePost(ctx context.Context, principal *model.Principal, id int64) error {
	if _, err := ownerFromPrincipal(principal); err != nil {
		return err
	}
	if id <= 0 {
		return ErrPostNotFound
	}

	err := s.store.DeletePost(ctx, id, ownerGuard(principal))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			return ErrPostNotFound
		case errors.Is(err, ErrForbidden):
			s.logger.WarnContext(ctx, "post_delete_forbidden", "post_id", id, "user_id", principal.UserID)
			return ErrForbidden
		default:
			return storageError("delete post", err)
		}
	}

	s.invalidate(ctx, id)
	s.metrics.IncPostDeleted()
	s.logger.InfoContext(ctx, "post_deleted", "post_id", id)

	return nil
}

// invalidate drops cached and negatively cached entries for id and
// discards fills that are still in flight.
func (s *PostService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePost(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "post_cache_invalidate_failed", "post_id", id, "error", err)
	}
}
