package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/service"
)

// PostHandler handles HTTP requests for post operations.
type PostHandler struct {
	svc    *service.PostService
	logger *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/v1/posts.
//
// Query parameters: limit (default 10, clamped to 1..100), cursor (id of the
// last post of the previous page) and q (substring of title, content or a
// tag name). all=true returns every post unpaginated.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("all") == "true" {
		posts, err := h.svc.GetAllPosts(r.Context())
		if err != nil {
			handleServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.ToPostList(posts))
		return
	}

	input := service.ListPostsInput{Query: query.Get("q")}
	invalid := map[string]string{}

	if l := query.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			invalid["limit"] = "must be an integer"
		} else {
			input.Limit = parsed
		}
	}

	if c := query.Get("cursor"); c != "" {
		parsed, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			invalid["cursor"] = "must be a positive integer"
		} else {
			input.Cursor = &parsed
		}
	}

	if len(invalid) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Code:    "VALIDATION_ERROR",
			Details: invalid,
		})
		return
	}

	result, err := h.svc.SearchPosts(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPostListResponse(result.Posts, result.NextCursor, result.HasNextPage))
}

// Get handles GET /api/v1/posts/{id}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := h.svc.GetPost(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPostResponse(post))
}

// Create handles POST /api/v1/posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.svc.CreatePost(r.Context(), auth.PrincipalFromContext(r.Context()), toPostInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/posts/"+strconv.FormatInt(post.ID, 10))
	writeJSON(w, http.StatusCreated, dto.ToPostResponse(post))
}

// Update handles PUT /api/v1/posts/{id}.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	var req dto.PostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.svc.UpdatePost(r.Context(), auth.PrincipalFromContext(r.Context()), id, toPostInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPostResponse(post))
}

// Delete handles DELETE /api/v1/posts/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeletePost(r.Context(), auth.PrincipalFromContext(r.Context()), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// postID parses the {id} path parameter. Only canonical positive decimal
// ids are accepted.
func postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 || strconv.FormatInt(id, 10) != raw {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Post ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func toPostInput(req dto.PostRequest) service.PostInput {
	return service.PostInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	}
}
