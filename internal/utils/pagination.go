package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
	// maxPage keeps (page-1)*limit far from int overflow.
	maxPage = 1_000_000
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// Meta describes where a page sits within the full result set.
type Meta struct {
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Page       int   `json:"page"`
	NextPage   *int  `json:"nextPage"`
	PrevPage   *int  `json:"prevPage"`
	TotalPages int   `json:"totalPages"`
}

// ParsePagination reads page and limit query params with sane defaults.
func ParsePagination(c *fiber.Ctx) Pagination {
	return NewPagination(
		parseInt(c.Query("page"), defaultPage),
		parseInt(c.Query("limit"), defaultLimit),
	)
}

// NewPagination clamps page and limit and computes the offset.
func NewPagination(page, limit int) Pagination {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page <= 0 {
		page = defaultPage
	}
	if page > maxPage {
		page = maxPage
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Meta computes page links for total matching rows.
func (p Pagination) Meta(total int64) Meta {
	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))

	meta := Meta{
		Total:      total,
		Limit:      p.Limit,
		Page:       p.Page,
		TotalPages: totalPages,
	}
	if p.Page < totalPages {
		next := p.Page + 1
		meta.NextPage = &next
	}
	if p.Page > 1 {
		prev := p.Page - 1
		meta.PrevPage = &prev
	}
	return meta
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
