// Package memstore is an in-memory post and user store for unit tests. It
// mirrors the repository's semantics: ids descend in listings, tags are
// shared by exact name, and guards run before any write.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

// Store implements the service's PostStore and UserStore.
type Store struct {
	mu sync.Mutex

	// Err, when set, is returned by every call.
	Err error

	users     map[int64]*model.User
	posts     map[int64]*model.Post
	postTags  map[int64][]int64
	tags      map[int64]string
	tagByName map[string]int64

	nextUserID int64
	nextPostID int64
	nextTagID  int64

	// Calls counts store invocations, keyed by method name.
	Calls map[string]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:     map[int64]*model.User{},
		posts:     map[int64]*model.Post{},
		postTags:  map[int64][]int64{},
		tags:      map[int64]string{},
		tagByName: map[string]int64{},
		Calls:     map[string]int{},
	}
}

func (s *Store) enter(method string) error {
	s.mu.Lock()
	s.Calls[method]++
	return s.Err
}

// CallCount returns how many times method was invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[method]
}

// CreateUser stores user, assigning its id.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	err := s.enter("CreateUser")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now().UTC()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

// GetUserByID returns a copy of the user.
func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	err := s.enter("GetUserByID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByEmail returns a copy of the user with exactly this email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	err := s.enter("GetUserByEmail")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// CreatePost stores a post and its tags.
func (s *Store) CreatePost(_ context.Context, in repository.NewPost) (*model.Post, error) {
	err := s.enter("CreatePost")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if _, ok := s.users[in.OwnerID]; !ok {
		return nil, repository.ErrUserNotFound
	}

	now := time.Now().UTC()
	s.nextPostID++
	id := s.nextPostID
	s.posts[id] = &model.Post{
		ID:        id,
		Title:     in.Title,
		Content:   in.Content,
		OwnerID:   in.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.postTags[id] = s.resolveTags(in.TagNames)

	return s.hydrate(id), nil
}

// GetPost returns the hydrated post.
func (s *Store) GetPost(_ context.Context, id int64) (*model.Post, error) {
	err := s.enter("GetPost")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if _, ok := s.posts[id]; !ok {
		return nil, repository.ErrPostNotFound
	}
	return s.hydrate(id), nil
}

// ListPosts returns every post, newest id first.
func (s *Store) ListPosts(_ context.Context) ([]*model.Post, error) {
	err := s.enter("ListPosts")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := []*model.Post{}
	for _, id := range s.sortedIDs() {
		out = append(out, s.hydrate(id))
	}
	return out, nil
}

// SearchPosts filters like the SQL query: id below the cursor, then a
// case-insensitive substring match on title, content or any tag name.
func (s *Store) SearchPosts(_ context.Context, search repository.PostSearch) ([]*model.Post, error) {
	err := s.enter("SearchPosts")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(search.Query))
	out := []*model.Post{}
	for _, id := range s.sortedIDs() {
		if len(out) >= search.Limit {
			break
		}
		if search.BeforeID != nil && id >= *search.BeforeID {
			continue
		}
		post := s.hydrate(id)
		if q != "" && !matches(post, q) {
			continue
		}
		out = append(out, post)
	}
	return out, nil
}

func matches(p *model.Post, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t.Name), q) {
			return true
		}
	}
	return false
}

// UpdatePost runs guard against the stored post, then replaces its fields and tags.
func (s *Store) UpdatePost(_ context.Context, in repository.PostUpdate, guard repository.PostGuard) (*model.Post, error) {
	err := s.enter("UpdatePost")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p, ok := s.posts[in.ID]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	if guard != nil {
		locked := *p
		if err := guard(&locked); err != nil {
			return nil, err
		}
	}

	p.Title = in.Title
	p.Content = in.Content
	p.UpdatedAt = time.Now().UTC()
	s.postTags[in.ID] = s.resolveTags(in.TagNames)

	return s.hydrate(in.ID), nil
}

// DeletePost runs guard, then removes the post. Tags are kept.
func (s *Store) DeletePost(_ context.Context, id int64, guard repository.PostGuard) error {
	err := s.enter("DeletePost")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	p, ok := s.posts[id]
	if !ok {
		return repository.ErrPostNotFound
	}
	if guard != nil {
		locked := *p
		if err := guard(&locked); err != nil {
			return err
		}
	}

	delete(s.posts, id)
	delete(s.postTags, id)
	return nil
}

// TagCount returns the number of distinct tags ever created.
func (s *Store) TagCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tags)
}

func (s *Store) resolveTags(names []string) []int64 {
	ids := []int64{}
	seen := map[int64]bool{}
	for _, name := range names {
		id, ok := s.tagByName[name]
		if !ok {
			s.nextTagID++
			id = s.nextTagID
			s.tags[id] = name
			s.tagByName[name] = id
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Store) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.posts))
	for id := range s.posts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids
}

func (s *Store) hydrate(id int64) *model.Post {
	out := *s.posts[id]
	if u, ok := s.users[out.OwnerID]; ok {
		summary := u.Summary()
		out.Owner = &summary
	}
	out.Tags = []model.Tag{}
	for _, tid := range s.postTags[id] {
		out.Tags = append(out.Tags, model.Tag{ID: tid, Name: s.tags[tid]})
	}
	sort.Slice(out.Tags, func(i, j int) bool { return out.Tags[i].Name < out.Tags[j].Name })
	return &out
}
