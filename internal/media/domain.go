// Package media manages the ordered attachments of an article. Uploaded bytes
// live elsewhere; items reference them by URL.
package media

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates attachment kinds.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypePDF   Type = "pdf"
)

// Item is one attachment of an article.
type Item struct {
	ID        uuid.UUID `json:"id"`
	ArticleID uuid.UUID `json:"articleId"`
	Type      Type      `json:"type"`
	URL       string    `json:"url"`
	Title     *string   `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddInput is the payload of Add. Position defaults to the end of the list.
type AddInput struct {
	Type     Type    `json:"type" validate:"required,oneof=image video pdf"`
	URL      string  `json:"url" validate:"required,url,max=1000"`
	Title    *string `json:"title" validate:"omitempty,max=255"`
	Position *int    `json:"position" validate:"omitempty,min=0"`
}

// MoveInput moves one item to a new position.
type MoveInput struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	Position int       `json:"position" validate:"min=0"`
}

// Reposition moves id to position to, shifting the items in between by one.
// items must be sorted by position; the result is renumbered from zero.
func Reposition(items []Item, id uuid.UUID, to int) ([]Item, bool) {
	from := -1
	for i := range items {
		if items[i].ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return items, false
	}
	if to >= len(items) {
		to = len(items) - 1
	}
	if to < 0 {
		to = 0
	}
	out := make([]Item, 0, len(items))
	moved := items[from]
	for i, it := range items {
		if i != from {
			out = append(out, it)
		}
	}
	out = append(out[:to], append([]Item{moved}, out[to:]...)...)
	for i := range out {
		out[i].Position = i
	}
	return out, true
}
