package helpers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/models/dto"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultPage     = 1 // Default page is 1-based
)

// ParsePaginationParams extracts and validates pagination parameters from the request
func ParsePaginationParams(c *gin.Context) (page, size int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = DefaultPage
	}

	size, err = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(DefaultPageSize)))
	if err != nil || size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}

	return page, size
}

// NewPaginationInfo creates a standard PaginationInfo DTO.
// page should be the 1-based page number.
func NewPaginationInfo(totalItems int64, page, size int) dto.PaginationInfo {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = DefaultPage
	}

	totalPages := int((totalItems + int64(size) - 1) / int64(size))
	if totalPages == 0 {
		totalPages = 1
	}

	return dto.PaginationInfo{
		CurrentPage: page,
		TotalPages:  totalPages,
		PageSize:    size,
		TotalItems:  totalItems,
	}
}

// Paginate returns the requested page of items. A page past the end is empty.
func Paginate[T any](items []T, page, size int) ([]T, dto.PaginationInfo) {
	info := NewPaginationInfo(int64(len(items)), page, size)

	start := (info.CurrentPage - 1) * info.PageSize
	if start >= len(items) {
		return []T{}, info
	}
	end := start + info.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], info
}
