package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"fintrack/internal/model"
)

func TestPaginate_Defaults(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 45; i++ {
		require.NoError(t, db.Create(&model.User{Email: fmt.Sprintf("u%02d@example.com", i), Name: fmt.Sprintf("User %02d", i)}).Error)
	}

	page, err := Paginate[model.User](db.Model(&model.User{}).Order("id"), Options{})
	require.NoError(t, err)
	require.Len(t, page.Entries, DefaultPageSize)
	require.Equal(t, 1, page.PageNumber)
	require.Equal(t, DefaultPageSize, page.PageSize)
	require.Equal(t, int64(45), page.TotalEntries)
	require.Equal(t, 3, page.TotalPages)
}

func TestPaginate_TotalPagesIsCeil(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 45; i++ {
		require.NoError(t, db.Create(&model.User{Email: fmt.Sprintf("u%02d@example.com", i)}).Error)
	}

	page, err := Paginate[model.User](db.Model(&model.User{}).Order("id"), Options{Page: 3, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, page.Entries, 5) // last, partial page
	require.Equal(t, 3, page.PageNumber)
	require.Equal(t, int64(45), page.TotalEntries)
	require.Equal(t, 3, page.TotalPages)
}

func TestPaginate_PagesDoNotOverlap(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 30; i++ {
		require.NoError(t, db.Create(&model.User{Email: fmt.Sprintf("u%02d@example.com", i)}).Error)
	}

	seen := make(map[uint]bool)
	for p := 1; p <= 3; p++ {
		page, err := Paginate[model.User](db.Model(&model.User{}).Order("id"), Options{Page: p, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, page.Entries, 10)
		for _, u := range page.Entries {
			require.False(t, seen[u.ID], "user %d returned twice", u.ID)
			seen[u.ID] = true
		}
	}
	require.Len(t, seen, 30)
}

func TestPaginate_EmptyResultIsOnePage(t *testing.T) {
	db := newTestDB(t)

	page, err := Paginate[model.User](db.Model(&model.User{}).Order("id"), Options{})
	require.NoError(t, err)
	require.NotNil(t, page.Entries)
	require.Empty(t, page.Entries)
	require.Equal(t, 1, page.PageNumber)
	require.Equal(t, int64(0), page.TotalEntries)
	require.Equal(t, 1, page.TotalPages)
}

func TestPaginate_All(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 27; i++ {
		require.NoError(t, db.Create(&model.User{Email: fmt.Sprintf("u%02d@example.com", i)}).Error)
	}

	page, err := Paginate[model.User](db.Model(&model.User{}).Order("id"), Options{All: true})
	require.NoError(t, err)
	require.Len(t, page.Entries, 27)
	require.Equal(t, 1, page.PageNumber)
	require.Equal(t, 27, page.PageSize)
	require.Equal(t, int64(27), page.TotalEntries)
	require.Equal(t, 1, page.TotalPages)
}

func TestPaginate_OutOfRangePage(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&model.User{Email: fmt.Sprintf("u%02d@example.com", i)}).Error)
	}

	page, err := Paginate[model.User](db.Model(&model.User{}).Order("id"), Options{Page: 4, PageSize: 10})
	require.NoError(t, err)
	require.Empty(t, page.Entries)
	require.Equal(t, 4, page.PageNumber)
	require.Equal(t, int64(5), page.TotalEntries)
	require.Equal(t, 1, page.TotalPages)
}

func TestParseOptions(t *testing.T) {
	opts := ParseOptions("2", "50")
	require.Equal(t, Options{Page: 2, PageSize: 50}, opts)

	opts = ParseOptions("1", "all")
	require.True(t, opts.All)
	require.Equal(t, 1, opts.Page)

	opts = ParseOptions("", "ALL")
	require.True(t, opts.All)

	// Garbage falls back to the zero value, which Paginate defaults.
	opts = ParseOptions("x", "y")
	require.Equal(t, Options{}, opts)
}
