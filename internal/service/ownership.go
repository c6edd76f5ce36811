package service

import (
	"strconv"

	"github.com/inkpost/inkpost/internal/model"
)

// OwnsPost reports whether principalID names the owner of post.
// Only the canonical decimal form matches: "01", " 1" and "+1" do not match owner 1.
func OwnsPost(post *model.Post, principalID string) bool {
	if post == nil {
		return false
	}
	id, ok := parsePrincipalID(principalID)
	return ok && id == post.OwnerID
}

// parsePrincipalID converts the session's textual user id to a user id.
func parsePrincipalID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	if strconv.FormatInt(id, 10) != s {
		return 0, false
	}
	return id, true
}
