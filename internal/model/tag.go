package model

// Tag is a label shared by any number of posts. Names are unique and case-sensitive.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
