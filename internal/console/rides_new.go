package console

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/pricing"
	"github.com/phillip-england/transitops/internal/rideform"
	"github.com/phillip-england/transitops/internal/rides"
	"go.uber.org/zap"
)

const (
	actionSave      = "save"
	actionSavePrint = "save_print"
	actionLookup    = "lookup"
	actionClear     = "clear"
)

type rideFormView struct {
	Fields        []formFieldView
	PrevTo        string
	PrevTourOper  string
	Warning       string
	PriceTable    string
	Destinations  []string
	TourOperators []string
}

type formFieldView struct {
	Key   string
	Name  string
	Label string
	Value string
	// Kind selects the input: text, date, time, select, destination, tour,
	// decimal, email or textarea.
	Kind     string
	Options  []string
	Required bool
	// Form names the owning form when the input sits outside it.
	Form string
}

func newRideFormView(form *rideform.Form, warning string) *rideFormView {
	view := &rideFormView{
		PrevTo:        form.Ride.To,
		PrevTourOper:  form.Ride.TourOper,
		Warning:       warning,
		PriceTable:    pricing.EncodeSnapshot(form.Table, warning),
		Destinations:  form.Table.Destinations(),
		TourOperators: form.Table.TourOperators(),
	}
	for _, field := range rides.FormFields() {
		view.Fields = append(view.Fields, fieldView(field, form.Ride.Get(field.Key)))
	}
	return view
}

// fieldView picks the input kind for field. The same kinds drive the entry
// form and the inline edit row.
func fieldView(field rides.Field, value string) formFieldView {
	view := formFieldView{Key: field.Key, Name: field.Name, Label: field.Label, Value: value, Kind: "text"}
	switch field.Key {
	case rides.KeyDate:
		view.Kind = "date"
		view.Value = rides.DateInputValue(value)
		view.Required = true
	case rides.KeyTime:
		view.Kind = "time"
		view.Value = rides.TimeInputValue(value)
		view.Required = true
	case rides.KeyType:
		view.Kind = "select"
		view.Options = rides.EditOptions(value, rides.Types)
	case rides.KeyFrom, rides.KeyTo:
		view.Kind = "destination"
		view.Required = true
	case rides.KeyArea:
		view.Kind = "destination"
	case rides.KeyTourOper:
		view.Kind = "tour"
	case rides.KeyEmail:
		view.Kind = "email"
	case rides.KeyInfo:
		view.Kind = "textarea"
	default:
		if field.Decimal {
			view.Kind = "decimal"
		}
	}
	return view
}

func (s *server) newRidePage(w http.ResponseWriter, r *http.Request) {
	table, warning := pricing.Load(r.Context(), s.backendSession(r))
	form := rideform.New(table)

	query := r.URL.Query()
	data := s.newPage(r, "New Ride", "new")
	data.Message = query.Get("message")
	data.Error = query.Get("error")
	if token := strings.TrimSpace(query.Get("download")); token != "" {
		data.Download = "/downloads/" + url.PathEscape(token)
	}
	data.Ride = newRideFormView(form, warning)
	s.render(w, r, s.newTmpl, data)
}

func (s *server) newRideSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, withFlash("/rides/new", url.Values{"error": {"Invalid form submission."}}), http.StatusSeeOther)
		return
	}
	action := r.PostForm.Get("action")
	if action == actionClear {
		http.Redirect(w, r, "/rides/new", http.StatusSeeOther)
		return
	}

	sess := s.backendSession(r)
	table, warning, ok := pricing.DecodeSnapshot(r.PostForm.Get("price_table"))
	if !ok {
		table, warning = pricing.Load(r.Context(), sess)
	}
	form, rejected := rideform.FromValues(r.PostForm, table)

	data := s.newPage(r, "New Ride", "new")
	data.ReturnTo = "/rides/new"
	if len(rejected) > 0 {
		form.Error = "Invalid number in " + strings.Join(rejected, ", ") + ". Use digits with a single . or , separator."
	}

	if (action == actionSave || action == actionSavePrint) && len(rejected) == 0 {
		// A browser that leaves mid-save does not abort the write; the
		// answer is just not rendered.
		out := form.Submit(context.WithoutCancel(r.Context()), sess, action == actionSavePrint)
		if out.Saved {
			flash := url.Values{"message": {form.Success}}
			if out.Voucher != nil {
				token, err := s.downloads.Put(r.Context(), *out.Voucher)
				if err != nil {
					logger.Error("could not park voucher", zap.String("id", out.ID.String()), zap.Error(err))
					form.Error = "Ride saved, but voucher failed: " + err.Error()
				} else {
					flash.Set("download", token)
				}
			}
			if form.Error != "" {
				flash.Set("error", form.Error)
			}
			http.Redirect(w, r, withFlash("/rides/new", flash), http.StatusSeeOther)
			return
		}
	}

	data.Message = form.Success
	data.Error = form.Error
	data.Ride = newRideFormView(form, warning)
	s.render(w, r, s.newTmpl, data)
}
