// Package ridesearch holds the ride search controller: the active filter,
// sort and page carried in the results URL, the fetched page of rows, row
// selection, inline editing and the per-page voucher and export actions.
package ridesearch

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/rides"
)

const (
	DirAsc  = "asc"
	DirDesc = "desc"

	DefaultPageSize = 25
)

// Query parameter names of the results URL.
const (
	ParamRun      = "run"
	ParamFrom     = "date_from"
	ParamTo       = "date_to"
	ParamTourOper = "operator"
	ParamSortBy   = "sort_by"
	ParamSortDir  = "sort_dir"
	ParamPage     = "page"
	ParamPageSize = "page_size"
	ParamSelected = "selected"
	ParamEdit     = "edit"
)

var (
	SortableFields = []string{rides.KeyID, rides.KeyDate, rides.KeyTime}
	PageSizes      = []int{25, 50, 100, 200}
)

// Filter is a date range on THE_DATE plus an optional tour operator. Dates
// are YYYY-MM-DD; empty means unbounded.
type Filter struct {
	From     string
	To       string
	TourOper string
}

type Sort struct {
	By  string
	Dir string
}

func DefaultSort() Sort { return Sort{By: rides.KeyDate, Dir: DirDesc} }

func IsSortable(field string) bool { return slices.Contains(SortableFields, field) }

// State is everything the results page needs to reproduce itself. Filter
// and Sort are always the active ones, i.e. the values of the last search
// that ran; edits to the filter inputs only land here when submitted.
type State struct {
	Searched bool
	Filter   Filter
	Sort     Sort
	// Page is 1-based.
	Page     int
	PageSize int
	Selected rides.ID
	Editing  rides.ID
}

func NewState() State {
	return State{Sort: DefaultSort(), Page: 1, PageSize: DefaultPageSize}
}

// ParseState reads a state from query or form values. Unknown sort fields,
// directions and page sizes fall back to the defaults.
func ParseState(values url.Values) State {
	s := NewState()
	s.Searched = values.Get(ParamRun) != ""
	s.Filter = Filter{
		From:     strings.TrimSpace(values.Get(ParamFrom)),
		To:       strings.TrimSpace(values.Get(ParamTo)),
		TourOper: strings.TrimSpace(values.Get(ParamTourOper)),
	}

	if by := values.Get(ParamSortBy); IsSortable(by) {
		s.Sort.By = by
		if dir := strings.ToLower(values.Get(ParamSortDir)); dir == DirAsc || dir == DirDesc {
			s.Sort.Dir = dir
		} else {
			s.Sort.Dir = DirAsc
		}
	}

	if page, err := strconv.Atoi(values.Get(ParamPage)); err == nil && page > 0 {
		s.Page = page
	}
	if size, err := strconv.Atoi(values.Get(ParamPageSize)); err == nil && slices.Contains(PageSizes, size) {
		s.PageSize = size
	}
	s.Selected = rides.ID(strings.TrimSpace(values.Get(ParamSelected)))
	s.Editing = rides.ID(strings.TrimSpace(values.Get(ParamEdit)))
	return s
}

// Values encodes s. Empty filter fields are left out.
func (s State) Values() url.Values {
	values := url.Values{}
	if s.Searched {
		values.Set(ParamRun, "1")
	}
	if s.Filter.From != "" {
		values.Set(ParamFrom, s.Filter.From)
	}
	if s.Filter.To != "" {
		values.Set(ParamTo, s.Filter.To)
	}
	if s.Filter.TourOper != "" {
		values.Set(ParamTourOper, s.Filter.TourOper)
	}
	values.Set(ParamSortBy, s.Sort.By)
	values.Set(ParamSortDir, s.Sort.Dir)
	values.Set(ParamPage, strconv.Itoa(s.Page))
	values.Set(ParamPageSize, strconv.Itoa(s.PageSize))
	if !s.Selected.IsZero() {
		values.Set(ParamSelected, s.Selected.String())
	}
	if !s.Editing.IsZero() {
		values.Set(ParamEdit, s.Editing.String())
	}
	return values
}

func (s State) Encode() string { return s.Values().Encode() }

// reset is shared by every transition that re-issues the search.
func (s State) reset() State {
	s.Searched = true
	s.Page = 1
	s.Selected = ""
	s.Editing = ""
	return s
}

// NewSearch makes filter the active filter, keeping sort and page size.
func (s State) NewSearch(filter Filter) State {
	s = s.reset()
	s.Filter = filter
	return s
}

// ToggleSort flips the direction when field is already sorted ascending and
// sorts ascending otherwise. Non-sortable fields leave s untouched.
func (s State) ToggleSort(field string) State {
	if !IsSortable(field) {
		return s
	}
	next := Sort{By: field, Dir: DirAsc}
	if s.Sort.By == field && s.Sort.Dir == DirAsc {
		next.Dir = DirDesc
	}
	s = s.reset()
	s.Sort = next
	return s
}

func (s State) WithPage(page int) State {
	if page < 1 {
		page = 1
	}
	s = s.reset()
	s.Page = page
	return s
}

func (s State) WithPageSize(size int) State {
	if !slices.Contains(PageSizes, size) {
		size = DefaultPageSize
	}
	s = s.reset()
	s.PageSize = size
	return s
}

// Select marks id as the row single-row actions apply to.
func (s State) Select(id rides.ID) State {
	s.Selected = id
	return s
}

// Edit puts row id into edit mode. Only one row is edited at a time.
func (s State) Edit(id rides.ID) State {
	s.Editing = id
	return s
}

func (s State) WithoutEdit() State {
	s.Editing = ""
	return s
}

// Cleared drops results, filter and sort back to the idle page.
func (s State) Cleared() State {
	cleared := NewState()
	cleared.PageSize = s.PageSize
	return cleared
}

func (s State) Query() backend.SearchQuery {
	return backend.SearchQuery{
		From:     s.Filter.From,
		To:       s.Filter.To,
		TourOper: s.Filter.TourOper,
		SortBy:   s.Sort.By,
		SortDir:  s.Sort.Dir,
		Page:     s.Page,
		PageSize: s.PageSize,
	}
}

// PageCount is the number of pages for total matches, at least 1.
func (s State) PageCount(total int) int {
	if total <= 0 || s.PageSize <= 0 {
		return 1
	}
	return (total + s.PageSize - 1) / s.PageSize
}
