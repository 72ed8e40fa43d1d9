package authors

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
)

// SearchLimit caps quick-search results.
const SearchLimit = 10

// Author is a staff account as shown in the authors directory. Staff are
// users holding at least one role besides the default user role.
type Author struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Username          *string   `json:"username"`
	Bio               *string   `json:"bio"`
	Avatar            *string   `json:"avatar"`
	AccountStatus     string    `json:"accountStatus"`
	IsActive          bool      `json:"isActive"`
	Roles             []string  `json:"roles"`
	PublishedArticles int       `json:"publishedArticles"`
	TotalViews        int64     `json:"totalViews"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ListFilter narrows the directory.
type ListFilter struct {
	Role          string
	AccountStatus string
	Search        string
	Page          shared.Page
}

// Stats summarises the staff directory.
type Stats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	ByRole   map[string]int `json:"byRole"`
}
