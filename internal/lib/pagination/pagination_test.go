package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/reports/by-group", nil)
	p := Parse(r, "variance", "asc", DefaultOpts)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 25, p.PerPage)
	assert.Equal(t, "variance", p.SortBy)
	assert.Equal(t, "asc", p.SortOrder)
}

func TestParse_CapsPerPage(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?page=0&per_page=100000&order=DESC", nil)
	p := Parse(r, "id", "asc", DefaultOpts)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 200, p.PerPage)
	assert.True(t, p.Desc())
}

func TestSortKey_FallsBackToDefault(t *testing.T) {
	allowed := map[string]struct{}{"recorded_hour": {}, "qty": {}}

	assert.Equal(t, "qty", SortKey(allowed, "qty", "recorded_hour"))
	assert.Equal(t, "recorded_hour", SortKey(allowed, "id; DROP TABLE hourly_facts", "recorded_hour"))
	assert.Equal(t, "recorded_hour", SortKey(allowed, "", "recorded_hour"))
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{3, 4}, Page(items, Params{Page: 2, PerPage: 2}))
	assert.Equal(t, []int{5}, Page(items, Params{Page: 3, PerPage: 2}))
	assert.Empty(t, Page(items, Params{Page: 4, PerPage: 2}))
}

func TestBuildMeta(t *testing.T) {
	m := BuildMeta(11, Params{Page: 2, PerPage: 5})
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)
}

func TestCursor_RoundTrip(t *testing.T) {
	c := Cursor{Value: "2026-01-14 17:00:00", ID: 42}

	got, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.Equal(t, c, *got)

	none, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, none)

	_, err = DecodeCursor("!!!")
	assert.Error(t, err)
}
