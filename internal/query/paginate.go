package query

import (
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// DefaultPageSize is used when the caller does not specify a page size.
const DefaultPageSize = 20

// pageSizeAll is the caller-facing sentinel for an unbounded page.
const pageSizeAll = "all"

// Options carries the caller's pagination parameters. The zero value means
// page 1 with the default page size.
type Options struct {
	Page     int
	PageSize int
	All      bool
}

// ParseOptions maps the raw caller contract (page and page_size as strings,
// page_size possibly "all") onto Options. Unparseable values fall back to
// the defaults.
func ParseOptions(page, pageSize string) Options {
	var opts Options
	if n, err := strconv.Atoi(strings.TrimSpace(page)); err == nil {
		opts.Page = n
	}
	pageSize = strings.TrimSpace(pageSize)
	if strings.EqualFold(pageSize, pageSizeAll) {
		opts.All = true
	} else if n, err := strconv.Atoi(pageSize); err == nil {
		opts.PageSize = n
	}
	return opts
}

// Page is a read-only projection of one page of a query result.
type Page[T any] struct {
	Entries      []T   `json:"entries"`
	PageNumber   int   `json:"page_number"`
	PageSize     int   `json:"page_size"`
	TotalEntries int64 `json:"total_entries"`
	TotalPages   int   `json:"total_pages"`
}

// Paginate executes db as a counted, offset-limited fetch and wraps the
// result in a Page. With opts.All the whole result set comes back as page 1
// whose size equals the total. An empty result is one page with no entries,
// never zero pages, so the current page stays well-defined.
//
// Deterministic ordering across pages is the caller's responsibility; pass a
// queryable with an explicit ORDER BY on a stable key or page boundaries may
// duplicate or skip rows.
func Paginate[T any](db *gorm.DB, opts Options) (*Page[T], error) {
	if opts.All {
		entries := make([]T, 0)
		if err := db.Find(&entries).Error; err != nil {
			return nil, err
		}
		return &Page[T]{
			Entries:      entries,
			PageNumber:   1,
			PageSize:     len(entries),
			TotalEntries: int64(len(entries)),
			TotalPages:   1,
		}, nil
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size < 1 {
		size = DefaultPageSize
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Model(new(T)).Count(&total).Error; err != nil {
		return nil, err
	}

	entries := make([]T, 0, size)
	if err := db.Session(&gorm.Session{}).Limit(size).Offset((page - 1) * size).Find(&entries).Error; err != nil {
		return nil, err
	}

	totalPages := (int(total) + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}

	return &Page[T]{
		Entries:      entries,
		PageNumber:   page,
		PageSize:     size,
		TotalEntries: total,
		TotalPages:   totalPages,
	}, nil
}
