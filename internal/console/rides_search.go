package console

import (
	"context"
	"errors"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"slices"

	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/downloads"
	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/middleware"
	"github.com/phillip-england/transitops/internal/pricing"
	"github.com/phillip-england/transitops/internal/rides"
	"github.com/phillip-england/transitops/internal/ridesearch"
	"go.uber.org/zap"
)

const searchPath = "/rides/search"

type searchView struct {
	State         ridesearch.State
	Info          string
	Failed        bool
	Columns       []columnView
	Rows          []rowView
	Edit          *editView
	Total         int
	Page          int
	PageCount     int
	PrevURL       string
	NextURL       string
	PageSizes     []int
	PageTotal     float64
	Recipient     string
	SelectedID    string
	Hidden        []hiddenInput
	ClearURL      string
	CSVURL        string
	XLSXURL       string
	CancelEditURL string
	Destinations  []string
	TourOperators []string
	Warning       string
}

type columnView struct {
	Key       string
	Label     string
	Sortable  bool
	SortURL   string
	Indicator string
}

type rowView struct {
	ID        string
	Cells     []string
	Selected  bool
	Editing   bool
	SelectURL string
	EditURL   string
}

type editView struct {
	ID     string
	Cells  []editCell
	Error  string
	Saving bool
}

// editCell is one column of the row being edited. Fixed cells show Value
// read-only.
type editCell struct {
	Fixed bool
	Value string
	Field formFieldView
}

type hiddenInput struct {
	Name  string
	Value string
}

func searchURL(state ridesearch.State) string {
	return searchPath + "?" + state.Encode()
}

func newSearchView(res *ridesearch.Results, table pricing.Table, warning string) *searchView {
	state := res.State
	view := &searchView{
		State:         state,
		Info:          res.Info,
		Failed:        res.Failed,
		Total:         res.Total,
		Page:          state.Page,
		PageCount:     res.PageCount(),
		PageSizes:     ridesearch.PageSizes,
		PageTotal:     res.PageTotal(),
		Recipient:     res.DefaultRecipient(),
		ClearURL:      searchURL(state.Cleared()),
		CSVURL:        "/rides/export.csv?" + state.Encode(),
		XLSXURL:       "/rides/export.xlsx?" + state.Encode(),
		CancelEditURL: searchURL(state.WithoutEdit()),
		Destinations:  table.Destinations(),
		TourOperators: table.TourOperators(),
		Warning:       warning,
	}
	if !state.Searched {
		view.ClearURL = searchPath
	}

	hidden := state.WithoutEdit().Values()
	for _, name := range slices.Sorted(maps.Keys(hidden)) {
		view.Hidden = append(view.Hidden, hiddenInput{Name: name, Value: hidden.Get(name)})
	}
	if state.Page > 1 {
		view.PrevURL = searchURL(state.WithPage(state.Page - 1))
	}
	if state.Page < view.PageCount {
		view.NextURL = searchURL(state.WithPage(state.Page + 1))
	}

	for _, col := range rides.Columns {
		c := columnView{Key: col.Key, Label: col.Label}
		if ridesearch.IsSortable(col.Key) {
			c.Sortable = true
			c.SortURL = searchURL(state.ToggleSort(col.Key))
			if state.Sort.By == col.Key {
				c.Indicator = "▲"
				if state.Sort.Dir == ridesearch.DirDesc {
					c.Indicator = "▼"
				}
			}
		}
		view.Columns = append(view.Columns, c)
	}

	if selected, ok := res.Selected(); ok {
		view.SelectedID = selected.ID.String()
	}
	for _, ride := range res.Rows {
		row := rowView{
			ID:        ride.ID.String(),
			Selected:  res.IsSelected(ride.ID),
			Editing:   res.IsEditing(ride.ID),
			SelectURL: searchURL(state.WithoutEdit().Select(ride.ID)),
			EditURL:   searchURL(state.Select(ride.ID).Edit(ride.ID)),
		}
		for _, col := range rides.Columns {
			row.Cells = append(row.Cells, ride.Get(col.Key))
		}
		view.Rows = append(view.Rows, row)
	}

	if res.Edit != nil {
		view.Edit = newEditView(res.Edit, view.Destinations)
	}
	return view
}

// newEditView lays the draft out in results-column order. FROM, TO and AREA
// become closed selects when the destination catalog loaded.
func newEditView(edit *ridesearch.RowEdit, destinations []string) *editView {
	view := &editView{
		ID:     edit.ID.String(),
		Error:  edit.Error,
		Saving: edit.Phase == ridesearch.Saving,
	}
	for _, col := range rides.Columns {
		field, ok := rides.FieldByKey(col.Key)
		if !ok || col.Key == rides.KeyDriver {
			view.Cells = append(view.Cells, editCell{Fixed: true, Value: edit.Draft.Get(col.Key)})
			continue
		}
		cell := editCell{Field: fieldView(field, edit.Draft.Get(col.Key))}
		cell.Field.Form = "edit-form"
		if cell.Field.Kind == "destination" && len(destinations) > 0 {
			cell.Field.Kind = "select"
			cell.Field.Options = edit.Options(col.Key, destinations)
		}
		view.Cells = append(view.Cells, cell)
	}
	return view
}

func (s *server) renderSearch(w http.ResponseWriter, r *http.Request, sess pricing.Source, res *ridesearch.Results, download string) {
	table, warning := pricing.Load(r.Context(), sess)
	data := s.newPage(r, "Search & Reports", "search")
	data.ReturnTo = searchURL(res.State)
	data.Search = newSearchView(res, table, warning)
	data.Download = download
	s.render(w, r, s.searchTmpl, data)
}

func (s *server) searchPage(w http.ResponseWriter, r *http.Request) {
	sess := s.backendSession(r)
	res := ridesearch.Search(r.Context(), sess, ridesearch.ParseState(r.URL.Query()))
	s.renderSearch(w, r, sess, res, "")
}

// searchAction re-runs the posted search and hands the fresh page to act
// unless loading it failed.
func (s *server) searchAction(act func(r *http.Request, sess *backend.Session, res *ridesearch.Results) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, searchPath, http.StatusSeeOther)
			return
		}
		sess := s.backendSession(r)
		state := ridesearch.ParseState(r.PostForm).WithoutEdit()
		res := ridesearch.Search(r.Context(), sess, state)
		download := ""
		if !res.Failed {
			download = act(r, sess, res)
		}
		s.renderSearch(w, r, sess, res, download)
	}
}

func postedID(r *http.Request) rides.ID {
	return rides.ID(r.PostForm.Get("id"))
}

func (s *server) searchUpdate(w http.ResponseWriter, r *http.Request) {
	s.searchAction(func(r *http.Request, sess *backend.Session, res *ridesearch.Results) string {
		fields := map[string]string{}
		for _, field := range rides.FormFields() {
			if _, ok := r.PostForm[field.Name]; ok {
				fields[field.Key] = r.PostForm.Get(field.Name)
			}
		}
		res.Update(context.WithoutCancel(r.Context()), sess, postedID(r), fields)
		return ""
	})(w, r)
}

func (s *server) searchVoucher(w http.ResponseWriter, r *http.Request) {
	s.searchAction(func(r *http.Request, sess *backend.Session, res *ridesearch.Results) string {
		return s.park(r, res.Voucher(r.Context(), sess, postedID(r)))
	})(w, r)
}

func (s *server) searchVouchers(w http.ResponseWriter, r *http.Request) {
	s.searchAction(func(r *http.Request, sess *backend.Session, res *ridesearch.Results) string {
		return s.park(r, res.CombinedVoucher(r.Context(), sess))
	})(w, r)
}

func (s *server) searchEmail(w http.ResponseWriter, r *http.Request) {
	s.searchAction(func(r *http.Request, sess *backend.Session, res *ridesearch.Results) string {
		res.EmailVoucher(context.WithoutCancel(r.Context()), sess, postedID(r), r.PostForm.Get("recipient"))
		return ""
	})(w, r)
}

// park stores doc for the page to open and returns its URL.
func (s *server) park(r *http.Request, doc *backend.Document) string {
	if doc == nil {
		return ""
	}
	token, err := s.downloads.Put(r.Context(), *doc)
	if err != nil {
		logger.Error("could not park document",
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		return ""
	}
	return "/downloads/" + url.PathEscape(token)
}

func (s *server) exportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv", "text/csv; charset=utf-8", rides.WriteCSV)
}

func (s *server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rides.WriteXLSX)
}

func (s *server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, []rides.Ride) error) {
	sess := s.backendSession(r)
	state := ridesearch.ParseState(r.URL.Query()).WithoutEdit()
	res := ridesearch.Search(r.Context(), sess, state)
	if res.Failed {
		s.renderSearch(w, r, sess, res, "")
		return
	}
	rows, ok := res.ExportRows()
	if !ok {
		s.renderSearch(w, r, sess, res, "")
		return
	}

	filename := rides.ExportFilename(s.now(), state.Page, ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Cache-Control", "no-store")
	if err := write(w, rows); err != nil {
		logger.Error("export failed", zap.String("format", ext), zap.Error(err))
		return
	}
	logger.Info(res.Info, zap.String("format", ext), zap.String("filename", filename))
}

func (s *server) download(w http.ResponseWriter, r *http.Request) {
	doc, err := s.downloads.Get(r.Context(), r.PathValue("token"))
	if errors.Is(err, downloads.ErrNotFound) {
		http.Error(w, "This document has expired. Generate it again.", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("download lookup failed", zap.Error(err))
		http.Error(w, "download unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(doc.Data)
}
