package dto

import (
	"strconv"
	"time"

	"github.com/inkpost/inkpost/internal/model"
)

// PostRequest is the body of create and update requests. Update replaces
// every field, including the tag set.
type PostRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// OwnerResponse is the author embedded in a post.
type OwnerResponse struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

// TagResponse is one tag of a post.
type TagResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PostResponse represents a hydrated post in API responses.
type PostResponse struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Owner     *OwnerResponse `json:"owner"`
	Tags      []TagResponse  `json:"tags"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PostListResponse represents a feed page. Pagination is omitted when the
// full unpaginated list was requested.
type PostListResponse struct {
	Data       []PostResponse `json:"data"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor  string `json:"next_cursor,omitempty"`
	HasNextPage bool   `json:"has_next_page"`
}

// ToPostResponse converts a Post model to PostResponse DTO.
func ToPostResponse(post *model.Post) PostResponse {
	resp := PostResponse{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Tags:      make([]TagResponse, 0, len(post.Tags)),
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	if post.Owner != nil {
		resp.Owner = &OwnerResponse{
			ID:    post.Owner.ID,
			Name:  post.Owner.Name,
			Email: post.Owner.Email,
			Image: post.Owner.Image,
		}
	}
	for _, t := range post.Tags {
		resp.Tags = append(resp.Tags, TagResponse{ID: t.ID, Name: t.Name})
	}
	return resp
}

// ToPostListResponse converts a page of posts. A nil nextCursor means there
// is no further page.
func ToPostListResponse(posts []*model.Post, nextCursor *int64, hasNext bool) *PostListResponse {
	resp := ToPostList(posts)
	resp.Pagination = &Pagination{HasNextPage: hasNext}
	if nextCursor != nil {
		resp.Pagination.NextCursor = strconv.FormatInt(*nextCursor, 10)
	}
	return resp
}

// ToPostList converts posts without pagination info.
func ToPostList(posts []*model.Post) *PostListResponse {
	data := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		data = append(data, ToPostResponse(p))
	}
	return &PostListResponse{Data: data}
}
