package ridesearch

import (
	"net/url"
	"testing"

	"github.com/phillip-england/transitops/internal/rides"
	"github.com/stretchr/testify/assert"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	assert.False(t, s.Searched)
	assert.Equal(t, Sort{By: rides.KeyDate, Dir: DirDesc}, s.Sort)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, DefaultPageSize, s.PageSize)
}

func TestParseStateFallsBack(t *testing.T) {
	s := ParseState(url.Values{
		ParamSortBy:   {"PRICE"},
		ParamSortDir:  {"sideways"},
		ParamPage:     {"-3"},
		ParamPageSize: {"7"},
	})
	assert.Equal(t, DefaultSort(), s.Sort)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, DefaultPageSize, s.PageSize)

	s = ParseState(url.Values{ParamSortBy: {rides.KeyTime}, ParamSortDir: {"bogus"}})
	assert.Equal(t, Sort{By: rides.KeyTime, Dir: DirAsc}, s.Sort)
}

func TestStateRoundTrip(t *testing.T) {
	s := State{
		Searched: true,
		Filter:   Filter{From: "2026-03-01", TourOper: "Sunway"},
		Sort:     Sort{By: rides.KeyID, Dir: DirAsc},
		Page:     3,
		PageSize: 50,
		Selected: "12",
		Editing:  "12",
	}
	values := s.Values()
	assert.False(t, values.Has(ParamTo), "empty filter fields are omitted")
	assert.Equal(t, s, ParseState(values))
}

func TestToggleSort(t *testing.T) {
	s := NewState().NewSearch(Filter{}).WithPage(4).Select("9").Edit("9")

	asc := s.ToggleSort(rides.KeyTime)
	assert.Equal(t, Sort{By: rides.KeyTime, Dir: DirAsc}, asc.Sort)
	assert.Equal(t, 1, asc.Page)
	assert.True(t, asc.Selected.IsZero())
	assert.True(t, asc.Editing.IsZero())

	desc := asc.ToggleSort(rides.KeyTime)
	assert.Equal(t, DirDesc, desc.Sort.Dir)

	again := desc.ToggleSort(rides.KeyTime)
	assert.Equal(t, DirAsc, again.Sort.Dir)

	// THE_DATE starts out descending; toggling it goes to ascending.
	assert.Equal(t, DirAsc, NewState().ToggleSort(rides.KeyDate).Sort.Dir)

	assert.Equal(t, s, s.ToggleSort(rides.KeyPrice), "non-sortable field is a no-op")
}

func TestPagingKeepsActiveFilter(t *testing.T) {
	active := NewState().NewSearch(Filter{TourOper: "Sunway"})
	next := active.WithPage(2).Select("5")

	assert.Equal(t, "Sunway", next.Filter.TourOper)
	assert.Equal(t, 2, next.Page)

	resized := next.WithPageSize(100)
	assert.Equal(t, 1, resized.Page)
	assert.Equal(t, 100, resized.PageSize)
	assert.True(t, resized.Selected.IsZero())
	assert.Equal(t, DefaultPageSize, next.WithPageSize(33).PageSize)
}

func TestNewSearchKeepsSortAndPageSize(t *testing.T) {
	s := NewState().ToggleSort(rides.KeyID).WithPageSize(50).WithPage(3)
	next := s.NewSearch(Filter{From: "2026-01-01", To: "2026-01-31"})

	assert.Equal(t, Sort{By: rides.KeyID, Dir: DirAsc}, next.Sort)
	assert.Equal(t, 50, next.PageSize)
	assert.Equal(t, 1, next.Page)
	assert.Equal(t, "2026-01-31", next.Filter.To)
}

func TestClearedKeepsPageSize(t *testing.T) {
	s := NewState().NewSearch(Filter{TourOper: "x"}).WithPageSize(100).ToggleSort(rides.KeyID)
	cleared := s.Cleared()
	assert.False(t, cleared.Searched)
	assert.Equal(t, Filter{}, cleared.Filter)
	assert.Equal(t, DefaultSort(), cleared.Sort)
	assert.Equal(t, 100, cleared.PageSize)
}

func TestQueryAndPageCount(t *testing.T) {
	s := NewState().NewSearch(Filter{From: "2026-03-01"}).WithPage(2)
	q := s.Query()
	assert.Equal(t, "2026-03-01", q.From)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, rides.KeyDate, q.SortBy)

	assert.Equal(t, 1, s.PageCount(0))
	assert.Equal(t, 1, s.PageCount(25))
	assert.Equal(t, 2, s.PageCount(26))
}
