package ridesearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/rides"
	"go.uber.org/zap"
)

// API is the slice of the backend session the search page uses.
type API interface {
	SearchRides(ctx context.Context, q backend.SearchQuery) (backend.SearchResult, error)
	UpdateRide(ctx context.Context, id rides.ID, ride rides.Ride) error
	RenderVoucher(ctx context.Context, ride rides.Ride) (backend.Document, error)
	RenderVouchers(ctx context.Context, list []rides.Ride) (backend.Document, error)
	EmailVoucher(ctx context.Context, ride rides.Ride, to string) error
}

// Results is one rendered results page.
type Results struct {
	State State
	Rows  []rides.Ride
	Total int
	Info  string
	// Failed marks Info as an error.
	Failed bool
	Edit   *RowEdit
}

// Search runs the query for state. Idle states (no search submitted yet)
// return an empty page without calling the backend.
func Search(ctx context.Context, api API, state State) *Results {
	res := &Results{State: state, Rows: []rides.Ride{}}
	if !state.Searched {
		return res
	}

	page, err := api.SearchRides(ctx, state.Query())
	if err != nil {
		res.fail("Could not load rides: " + err.Error())
		logger.Warn("ride search failed", zap.Error(err))
		return res
	}

	res.Rows = page.Rows
	res.Total = page.Total
	res.Info = fmt.Sprintf("Loaded %d ride(s) on this page. Total matches: %d.", len(page.Rows), page.Total)

	if !state.Editing.IsZero() {
		res.BeginEdit(state.Editing)
	}
	return res
}

func (r *Results) fail(message string) {
	r.Info = message
	r.Failed = true
}

func (r *Results) succeed(message string) {
	r.Info = message
	r.Failed = false
}

func (r *Results) PageTotal() float64 { return rides.PageTotal(r.Rows) }

func (r *Results) PageCount() int { return r.State.PageCount(r.Total) }

// Selected is the explicitly selected row when it is on this page, else the
// first row.
func (r *Results) Selected() (rides.Ride, bool) {
	if len(r.Rows) == 0 {
		return rides.Ride{}, false
	}
	if !r.State.Selected.IsZero() {
		if i := rides.IndexOf(r.Rows, r.State.Selected); i >= 0 {
			return r.Rows[i], true
		}
	}
	return r.Rows[0], true
}

func (r *Results) IsSelected(id rides.ID) bool {
	selected, ok := r.Selected()
	return ok && selected.ID == id
}

// row returns the row with id, or the implicit selection when id is empty.
func (r *Results) row(id rides.ID) (rides.Ride, bool) {
	if id.IsZero() {
		return r.Selected()
	}
	if i := rides.IndexOf(r.Rows, id); i >= 0 {
		return r.Rows[i], true
	}
	return rides.Ride{}, false
}

// Voucher renders the voucher for row id (or the selected row).
func (r *Results) Voucher(ctx context.Context, api API, id rides.ID) *backend.Document {
	ride, ok := r.row(id)
	if !ok {
		r.fail("Run a search first and select a row.")
		return nil
	}
	doc, err := api.RenderVoucher(ctx, ride)
	if err != nil {
		r.fail("Could not generate voucher PDF: " + err.Error())
		return nil
	}
	r.succeed("Voucher generated for A/A " + displayID(ride.ID) + ".")
	return &doc
}

// CombinedVoucher renders one document for every row on the page.
func (r *Results) CombinedVoucher(ctx context.Context, api API) *backend.Document {
	if len(r.Rows) == 0 {
		r.fail("Run a search first and make sure there are rows to print.")
		return nil
	}
	doc, err := api.RenderVouchers(ctx, r.Rows)
	if err != nil {
		r.fail("Could not generate combined PDF: " + err.Error())
		return nil
	}
	r.succeed(fmt.Sprintf("Combined PDF generated for %d ride(s) on this page.", len(r.Rows)))
	return &doc
}

// DefaultRecipient pre-fills the email prompt from the selected row.
func (r *Results) DefaultRecipient() string {
	ride, ok := r.Selected()
	if !ok {
		return ""
	}
	return strings.TrimSpace(ride.Email)
}

// EmailVoucher asks the backend to email row id's voucher to recipient.
func (r *Results) EmailVoucher(ctx context.Context, api API, id rides.ID, recipient string) bool {
	ride, ok := r.row(id)
	if !ok {
		r.fail("Run a search first and select a row.")
		return false
	}
	recipient = strings.TrimSpace(recipient)
	if err := validateRecipient(recipient); err != nil {
		r.fail("Recipient email is required.")
		return false
	}
	if err := api.EmailVoucher(ctx, ride, recipient); err != nil {
		r.fail("Could not send voucher email: " + err.Error())
		return false
	}
	r.succeed("Voucher emailed to " + recipient + ".")
	return true
}

// ExportRows returns the rows of the current page for CSV/XLSX export.
func (r *Results) ExportRows() ([]rides.Ride, bool) {
	if len(r.Rows) == 0 {
		r.fail("Run a search first and make sure there are rows to export.")
		return nil, false
	}
	r.succeed(fmt.Sprintf("Excel export generated for %d ride(s) on this page.", len(r.Rows)))
	return r.Rows, true
}

func displayID(id rides.ID) string {
	if id.IsZero() {
		return "-"
	}
	return id.String()
}
