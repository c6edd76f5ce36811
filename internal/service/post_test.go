package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/testutil/memstore"
)

type postEnv struct {
	store   *memstore.Store
	cache   *fakeCache
	metrics *metrics.InMemoryRecorder
	svc     *PostService
	owner   *model.Principal
	other   *model.Principal
}

func newPostEnv(t *testing.T) *postEnv {
	t.Helper()
	store := memstore.New()
	c := newFakeCache()
	rec := metrics.NewInMemory()
	return &postEnv{
		store:   store,
		cache:   c,
		metrics: rec,
		svc:     NewPostService(store, c, 0, rec, nil),
		owner:   seedUser(t, store, "Owner", "owner@example.com", ""),
		other:   seedUser(t, store, "Other", "other@example.com", ""),
	}
}

func (e *postEnv) create(t *testing.T, title, content string, tags ...string) *model.Post {
	t.Helper()
	p, err := e.svc.CreatePost(context.Background(), e.owner, PostInput{Title: title, Content: content, Tags: tags})
	require.NoError(t, err)
	return p
}

func TestPostService_CreateHydratesAndRoundTripsTags(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()

	created := env.create(t, "Hello", "World", "y", "x", " y ")

	assert.Equal(t, "Hello", created.Title)
	assert.Equal(t, []string{"x", "y"}, created.TagNames())
	require.NotNil(t, created.Owner)
	assert.Equal(t, "owner@example.com", created.Owner.Email)

	fetched, err := env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, fetched.TagNames())
	assert.EqualValues(t, 1, env.metrics.Snapshot().PostsCreated)
}

func TestPostService_CreateCaseSensitiveTags(t *testing.T) {
	env := newPostEnv(t)

	created := env.create(t, "t", "c", "A", " a ", "A")

	assert.Equal(t, []string{"A", "a"}, created.TagNames())
	assert.Equal(t, 2, env.store.TagCount())
}

func TestPostService_CreateRequiresPrincipal(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()

	for _, p := range []*model.Principal{nil, {UserID: ""}, {UserID: "01"}, {UserID: "abc"}} {
		_, err := env.svc.CreatePost(ctx, p, PostInput{Title: "t", Content: "c"})
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	}
	assert.Zero(t, env.store.CallCount("CreatePost"), "storage must not be touched without a principal")
}

func TestPostService_CreateUnknownOwner(t *testing.T) {
	env := newPostEnv(t)

	_, err := env.svc.CreatePost(context.Background(), &model.Principal{UserID: "999"}, PostInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestPostService_CreateValidation(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()

	manyTags := make([]string, 21)
	for i := range manyTags {
		manyTags[i] = fmt.Sprintf("tag-%d", i)
	}

	tests := []struct {
		name  string
		in    PostInput
		field string
	}{
		{"empty title", PostInput{Title: "", Content: "c"}, "title"},
		{"blank title", PostInput{Title: "   ", Content: "c"}, "title"},
		{"empty content", PostInput{Title: "t", Content: ""}, "content"},
		{"long title", PostInput{Title: strings.Repeat("t", 201), Content: "c"}, "title"},
		{"too many tags", PostInput{Title: "t", Content: "c", Tags: manyTags}, "tags"},
		{"long tag", PostInput{Title: "t", Content: "c", Tags: []string{strings.Repeat("x", 51)}}, "tags[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreatePost(ctx, env.owner, tt.in)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Zero(t, env.store.CallCount("CreatePost"))
}

func TestPostService_DuplicateTagsCountOnceTowardsLimit(t *testing.T) {
	env := newPostEnv(t)

	tags := make([]string, 0, 40)
	for i := 0; i < 20; i++ {
		tags = append(tags, fmt.Sprintf("t%d", i), fmt.Sprintf(" t%d ", i))
	}

	created := env.create(t, "t", "c", tags...)
	assert.Len(t, created.Tags, 20)
}

func TestPostService_GetAllNewestFirst(t *testing.T) {
	env := newPostEnv(t)
	first := env.create(t, "one", "c")
	second := env.create(t, "two", "c")

	all, err := env.svc.GetAllPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestPostService_PaginationChainEqualsFilteredListing(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()

	for i := 0; i < 23; i++ {
		tags := []string{}
		if i%3 == 0 {
			tags = append(tags, "Golang")
		}
		title := fmt.Sprintf("post %d", i)
		if i%5 == 0 {
			title = fmt.Sprintf("GO weekly %d", i)
		}
		env.create(t, title, "body", tags...)
	}

	all, err := env.svc.GetAllPosts(ctx)
	require.NoError(t, err)

	for _, query := range []string{"", "go", "  Weekly ", "nothing"} {
		var want []int64
		for _, p := range all {
			if query == "" || matchesForTest(p, strings.ToLower(strings.TrimSpace(query))) {
				want = append(want, p.ID)
			}
		}

		for _, limit := range []int{1, 4, 10, 23, 100} {
			t.Run(fmt.Sprintf("q=%q limit=%d", query, limit), func(t *testing.T) {
				var (
					got    []int64
					cursor *int64
				)
				for pages := 0; pages < 100; pages++ {
					out, err := env.svc.SearchPosts(ctx, ListPostsInput{Limit: limit, Cursor: cursor, Query: query})
					require.NoError(t, err)
					require.LessOrEqual(t, len(out.Posts), limit)
					for _, p := range out.Posts {
						got = append(got, p.ID)
					}
					if !out.HasNextPage {
						assert.Nil(t, out.NextCursor)
						break
					}
					require.NotNil(t, out.NextCursor)
					assert.Equal(t, out.Posts[len(out.Posts)-1].ID, *out.NextCursor)
					cursor = out.NextCursor
				}
				assert.Equal(t, want, got)
			})
		}
	}
}

func matchesForTest(p *model.Post, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q) {
		return true
	}
	for _, tag := range p.TagNames() {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func TestPostService_HasNextPageOnlyWhenMoreRemain(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		env.create(t, fmt.Sprintf("p%d", i), "c")
	}

	exact, err := env.svc.SearchPosts(ctx, ListPostsInput{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, exact.Posts, 5)
	assert.False(t, exact.HasNextPage)
	assert.Nil(t, exact.NextCursor)

	short, err := env.svc.SearchPosts(ctx, ListPostsInput{Limit: 4})
	require.NoError(t, err)
	assert.Len(t, short.Posts, 4)
	assert.True(t, short.HasNextPage)
}

func TestPostService_SearchLimitAndCursorBounds(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		env.create(t, fmt.Sprintf("p%d", i), "c")
	}

	def, err := env.svc.SearchPosts(ctx, ListPostsInput{})
	require.NoError(t, err)
	assert.Len(t, def.Posts, DefaultPageSize)

	neg, err := env.svc.SearchPosts(ctx, ListPostsInput{Limit: -5})
	require.NoError(t, err)
	assert.Len(t, neg.Posts, 1)

	huge, err := env.svc.SearchPosts(ctx, ListPostsInput{Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, huge.Posts, 12)

	zero := int64(0)
	_, err = env.svc.SearchPosts(ctx, ListPostsInput{Cursor: &zero})
	assert.ErrorIs(t, err, ErrValidation)

	empty, err := env.svc.SearchPosts(ctx, ListPostsInput{Query: "no such thing"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Posts)
	assert.Empty(t, empty.Posts)
	assert.False(t, empty.HasNextPage)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	mk := func(ids ...int64) []*model.Post {
		out := make([]*model.Post, len(ids))
		for i, id := range ids {
			out[i] = &model.Post{ID: id}
		}
		return out
	}

	page, next, more := paginate(mk(9, 8, 7), 2)
	assert.Len(t, page, 2)
	require.NotNil(t, next)
	assert.EqualValues(t, 8, *next)
	assert.True(t, more)

	page, next, more = paginate(mk(9, 8), 2)
	assert.Len(t, page, 2)
	assert.Nil(t, next)
	assert.False(t, more)

	page, next, more = paginate(nil, 2)
	assert.NotNil(t, page)
	assert.Empty(t, page)
	assert.Nil(t, next)
	assert.False(t, more)
}

func TestPostService_GetPostCaching(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	created := env.create(t, "cached", "c", "go")

	_, err := env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, env.metrics.Snapshot().PostCacheMisses)

	_, err = env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, env.metrics.Snapshot().PostCacheHits)
	assert.Equal(t, 1, env.store.CallCount("GetPost"), "second read should come from cache")
}

func TestPostService_GetPostNotFoundIsNegativelyCached(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetPost(ctx, 404)
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = env.svc.GetPost(ctx, 404)
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.Equal(t, 1, env.store.CallCount("GetPost"))

	_, err = env.svc.GetPost(ctx, 0)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostService_CacheFailuresDoNotFailReads(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	created := env.create(t, "t", "c")

	env.cache.err = errBoom
	got, err := env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

// writeFailingCache reads normally but fails every fill.
type writeFailingCache struct {
	*fakeCache
}

func (c writeFailingCache) SetPost(context.Context, *model.Post, time.Duration, int64) (bool, error) {
	return false, errBoom
}

func (c writeFailingCache) SetPostNegativeCache(context.Context, int64, int64) (bool, error) {
	return false, errBoom
}

func TestPostService_CacheWriteFailureLoggedOncePerRead(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	owner := seedUser(t, store, "Owner", "owner@example.com", "")

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	svc := NewPostService(store, writeFailingCache{newFakeCache()}, 0, nil, logger)

	created, err := svc.CreatePost(ctx, owner, PostInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	for _, id := range []int64{created.ID, 404} {
		logs.Reset()
		_, _ = svc.GetPost(ctx, id)
		assert.Equal(t, 1, strings.Count(logs.String(), `"post_cache_write_failed"`), "post %d", id)
	}
}

func TestPostService_NewPostClearsStaleNegativeEntry(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetPost(ctx, 3)
	require.ErrorIs(t, err, ErrPostNotFound)

	env.create(t, "one", "c")
	env.create(t, "two", "c")
	third := env.create(t, "three", "c")
	require.EqualValues(t, 3, third.ID)

	got, err := env.svc.GetPost(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "three", got.Title)
}

// pausingStore holds the next armed GetPost after its database read until
// release is closed.
type pausingStore struct {
	*memstore.Store
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (s *pausingStore) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.Store.GetPost(ctx, id)
	if s.armed.CompareAndSwap(true, false) {
		close(s.read)
		<-s.release
	}
	return post, err
}

func TestPostService_WriteDuringCacheFillIsNotOverwritten(t *testing.T) {
	cases := []struct {
		name  string
		write func(ctx context.Context, svc *PostService, owner *model.Principal, id int64) error
		check func(t *testing.T, got *model.Post, err error)
	}{
		{
			name: "update",
			write: func(ctx context.Context, svc *PostService, owner *model.Principal, id int64) error {
				_, err := svc.UpdatePost(ctx, owner, id, PostInput{Title: "new", Content: "c", Tags: []string{"y"}})
				return err
			},
			check: func(t *testing.T, got *model.Post, err error) {
				require.NoError(t, err)
				assert.Equal(t, "new", got.Title)
				assert.Equal(t, []string{"y"}, got.TagNames())
			},
		},
		{
			name: "delete",
			write: func(ctx context.Context, svc *PostService, owner *model.Principal, id int64) error {
				return svc.DeletePost(ctx, owner, id)
			},
			check: func(t *testing.T, _ *model.Post, err error) {
				assert.ErrorIs(t, err, ErrPostNotFound)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := &pausingStore{
				Store:   memstore.New(),
				read:    make(chan struct{}),
				release: make(chan struct{}),
			}
			owner := seedUser(t, store.Store, "Owner", "owner@example.com", "")
			c := newFakeCache()
			svc := NewPostService(store, c, 0, nil, nil)

			created, err := svc.CreatePost(ctx, owner, PostInput{Title: "old", Content: "c", Tags: []string{"x"}})
			require.NoError(t, err)

			store.armed.Store(true)
			done := make(chan error, 1)
			go func() {
				_, err := svc.GetPost(ctx, created.ID)
				done <- err
			}()

			<-store.read
			writeErr := tc.write(ctx, svc, owner, created.ID)
			close(store.release)
			require.NoError(t, <-done)
			require.NoError(t, writeErr)

			assert.Equal(t, 1, c.skippedFills(), "fill from the earlier read must be dropped")

			got, err := svc.GetPost(ctx, created.ID)
			tc.check(t, got, err)
		})
	}
}

func TestPostService_UpdateByOwnerReplacesTags(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	created := env.create(t, "t", "c", "old", "keep")

	// Prime the cache so the update has something to invalidate.
	_, err := env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)

	updated, err := env.svc.UpdatePost(ctx, env.owner, created.ID, PostInput{Title: "t2", Content: "c2", Tags: []string{"keep", "new"}})
	require.NoError(t, err)
	assert.Equal(t, "t2", updated.Title)
	assert.Equal(t, []string{"keep", "new"}, updated.TagNames())

	fetched, err := env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "t2", fetched.Title, "cache must be invalidated on update")
	assert.Equal(t, 3, env.store.TagCount(), "replaced tags are kept")
	assert.EqualValues(t, 1, env.metrics.Snapshot().PostsUpdated)
}

func TestPostService_UpdateByNonOwnerIsForbiddenAndUnchanged(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	created := env.create(t, "mine", "c", "x")

	_, err := env.svc.UpdatePost(ctx, env.other, created.ID, PostInput{Title: "stolen", Content: "c"})
	assert.ErrorIs(t, err, ErrForbidden)

	fetched, err := env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", fetched.Title)
	assert.Equal(t, []string{"x"}, fetched.TagNames())
}

func TestPostService_UpdateErrors(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	created := env.create(t, "t", "c")

	_, err := env.svc.UpdatePost(ctx, env.owner, 999, PostInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = env.svc.UpdatePost(ctx, nil, created.ID, PostInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = env.svc.UpdatePost(ctx, env.owner, created.ID, PostInput{Title: "", Content: "c"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPostService_Delete(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	created := env.create(t, "t", "c", "kept")

	_, err := env.svc.GetPost(ctx, created.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.DeletePost(ctx, env.other, created.ID), ErrForbidden)
	assert.ErrorIs(t, env.svc.DeletePost(ctx, nil, created.ID), ErrAuthenticationFailed)

	require.NoError(t, env.svc.DeletePost(ctx, env.owner, created.ID))
	_, err = env.svc.GetPost(ctx, created.ID)
	assert.ErrorIs(t, err, ErrPostNotFound, "cache must be invalidated on delete")

	assert.ErrorIs(t, env.svc.DeletePost(ctx, env.owner, created.ID), ErrPostNotFound)
	assert.Equal(t, 1, env.store.TagCount())
	assert.EqualValues(t, 1, env.metrics.Snapshot().PostsDeleted)
}

func TestPostService_StorageErrors(t *testing.T) {
	env := newPostEnv(t)
	ctx := context.Background()
	env.store.Err = errBoom

	_, err := env.svc.CreatePost(ctx, env.owner, PostInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, errBoom)

	_, err = env.svc.GetAllPosts(ctx)
	assert.ErrorIs(t, err, ErrStorage)

	_, err = env.svc.SearchPosts(ctx, ListPostsInput{})
	assert.ErrorIs(t, err, ErrStorage)

	_, err = env.svc.GetPost(ctx, 1)
	assert.ErrorIs(t, err, ErrStorage)

	_, err = env.svc.UpdatePost(ctx, env.owner, 1, PostInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrStorage)

	assert.ErrorIs(t, env.svc.DeletePost(ctx, env.owner, 1), ErrStorage)
}

func TestPostService_NilCache(t *testing.T) {
	store := memstore.New()
	owner := seedUser(t, store, "o", "o@example.com", "")
	svc := NewPostService(store, nil, 0, nil, nil)
	ctx := context.Background()

	created, err := svc.CreatePost(ctx, owner, PostInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	got, err := svc.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.NoError(t, svc.DeletePost(ctx, owner, created.ID))
}
