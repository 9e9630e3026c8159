package middlewares

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/store"
)

// PaginationConfig bounds list queries.
type PaginationConfig struct {
	// DefaultPageSize applies when the request names no size
	DefaultPageSize int
	// MaxPageSize caps whatever the request asks for
	MaxPageSize int
}

// DefaultPaginationConfig returns sensible defaults for pagination
func DefaultPaginationConfig() *PaginationConfig {
	return &PaginationConfig{DefaultPageSize: 10, MaxPageSize: 100}
}

// PaginationParams holds pagination parameters
type PaginationParams struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Search string `json:"search,omitempty"`
	Total  int    `json:"total"`
	Pages  int    `json:"pages"`
}

// PaginationMeta contains pagination metadata for response
type PaginationMeta struct {
	CurrentPage  int  `json:"current_page"`
	PerPage      int  `json:"per_page"`
	TotalPages   int  `json:"total_pages"`
	TotalRecords int  `json:"total_records"`
	HasNext      bool `json:"has_next"`
	HasPrev      bool `json:"has_prev"`
	NextPage     *int `json:"next_page,omitempty"`
	PrevPage     *int `json:"prev_page,omitempty"`
}

// ParsePagination reads page, limit (or pageSize) and search from the query.
// preferredSize, when positive, replaces the configured default; it carries
// the user's own page size setting.
func ParsePagination(r *http.Request, cfg *PaginationConfig, preferredSize int) *PaginationParams {
	if cfg == nil {
		cfg = DefaultPaginationConfig()
	}
	q := r.URL.Query()

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	limit := cfg.DefaultPageSize
	if preferredSize > 0 {
		limit = preferredSize
	}
	raw := q.Get("limit")
	if raw == "" {
		raw = q.Get("pageSize")
	}
	if l, err := strconv.Atoi(raw); err == nil && l > 0 {
		limit = l
	}
	if cfg.MaxPageSize > 0 && limit > cfg.MaxPageSize {
		limit = cfg.MaxPageSize
	}

	return &PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
		Search: strings.TrimSpace(q.Get("search")),
	}
}

// ListOptions converts the parameters into a store query.
func (p *PaginationParams) ListOptions() store.ListOptions {
	return store.ListOptions{Search: p.Search, Limit: p.Limit, Offset: p.Offset}
}

// SetTotal records the unpaged row count and derives the page count.
func (p *PaginationParams) SetTotal(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.Pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
}

// BuildMeta derives the response metadata. Call SetTotal first.
func (p *PaginationParams) BuildMeta() *PaginationMeta {
	meta := &PaginationMeta{
		CurrentPage:  p.Page,
		PerPage:      p.Limit,
		TotalPages:   p.Pages,
		TotalRecords: p.Total,
		HasNext:      p.Page < p.Pages,
		HasPrev:      p.Page > 1,
	}
	if meta.HasNext {
		next := p.Page + 1
		meta.NextPage = &next
	}
	if meta.HasPrev {
		prev := p.Page - 1
		meta.PrevPage = &prev
	}
	return meta
}

// PageNumbers lists every page for the pager, or nil for a single page.
func (p *PaginationParams) PageNumbers() []int {
	if p.Pages <= 1 {
		return nil
	}
	nums := make([]int, p.Pages)
	for i := range nums {
		nums[i] = i + 1
	}
	return nums
}

// PaginatedResponse is a standard paginated response structure
type PaginatedResponse struct {
	Status     string          `json:"status"`
	Data       any             `json:"data"`
	Pagination *PaginationMeta `json:"pagination"`
}

// RespondPaginated sends a paginated JSON response
func RespondPaginated(w http.ResponseWriter, data any, p *PaginationParams) {
	config.RespondJSON(w, http.StatusOK, PaginatedResponse{
		Status:     "success",
		Data:       data,
		Pagination: p.BuildMeta(),
	})
}
