package model

import "time"

// Post is a blog entry with its owner and tags hydrated.
type Post struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	OwnerID   int64        `json:"owner_id"`
	Owner     *UserSummary `json:"owner,omitempty"`
	Tags      []Tag        `json:"tags"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TagNames returns the names of the post's tags in their stored order.
func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}
