package service

import (
	"context"
	"time"

	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

// PostStore persists posts. *repository.Repository implements it.
type PostStore interface {
	CreatePost(ctx context.Context, in repository.NewPost) (*model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	ListPosts(ctx context.Context) ([]*model.Post, error)
	SearchPosts(ctx context.Context, search repository.PostSearch) ([]*model.Post, error)
	UpdatePost(ctx context.Context, in repository.PostUpdate, guard repository.PostGuard) (*model.Post, error)
	DeletePost(ctx context.Context, id int64, guard repository.PostGuard) error
}

// PostCache holds hydrated posts for the detail endpoint. *cache.Cache implements it.
//
// Fills are conditional: PostVersion is read before the database and the
// Set methods store nothing if InvalidatePost ran in between.
type PostCache interface {
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	IsPostNegativelyCached(ctx context.Context, id int64) (bool, error)
	PostVersion(ctx context.Context, id int64) (int64, error)
	SetPost(ctx context.Context, post *model.Post, ttl time.Duration, version int64) (bool, error)
	SetPostNegativeCache(ctx context.Context, id int64, version int64) (bool, error)
	InvalidatePost(ctx context.Context, id int64) error
}

// UserStore persists accounts. *repository.Repository implements it.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// PasswordHasher hashes and verifies secrets. *auth.BcryptHasher implements it.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) error
	CompareDummy(secret string)
}

// TokenIssuer mints access tokens. *auth.TokenService implements it.
type TokenIssuer interface {
	Issue(p *model.Principal) (string, time.Time, error)
}

// TokenRevoker blacklists access tokens. *cache.Cache implements it.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, until time.Time) error
}
