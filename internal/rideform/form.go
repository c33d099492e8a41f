// Package rideform holds the in-progress "new ride" form: field edits, price
// derivation, required-field validation and submission.
package rideform

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/pricing"
	"github.com/phillip-england/transitops/internal/rides"
	"go.uber.org/zap"
)

// Hidden inputs carrying the key values the page was rendered with, so a
// POST can tell whether TO or TOUR_OPER changed since.
const (
	PrevToName       = "prev_to"
	PrevTourOperName = "prev_tour_oper"
)

const missingRequired = "Missing required fields: THE_DATE, TIME, FROM, TO."

var validate = validator.New()

type requiredFields struct {
	Date string `validate:"required"`
	Time string `validate:"required"`
	From string `validate:"required"`
	To   string `validate:"required"`
}

type Form struct {
	Ride    rides.Ride
	Table   pricing.Table
	Success string
	Error   string
}

func New(table pricing.Table) *Form {
	return &Form{Table: table}
}

// SetField stores value under key. TO and TOUR_OPER changes overwrite PRICE
// with the derived price (possibly empty). Decimal fields refuse values that
// are not partial decimals; the call then reports false and nothing changes.
func (f *Form) SetField(key, value string) bool {
	field, ok := rides.FieldByKey(key)
	if !ok || key == rides.KeyDriver {
		return false
	}
	if field.Decimal && !rides.ValidDecimal(value) {
		return false
	}

	previous := f.Ride.Get(key)
	f.Ride.Set(key, value)
	if (key == rides.KeyTo || key == rides.KeyTourOper) && previous != value {
		f.Ride.Price = pricing.DerivePrice(f.Ride.To, f.Ride.TourOper, f.Table)
	}
	return true
}

// FromValues rebuilds a form from a posted page. Returns the labels of
// decimal fields whose posted value was refused.
func FromValues(values url.Values, table pricing.Table) (*Form, []string) {
	f := New(table)
	f.Ride.To = values.Get(PrevToName)
	f.Ride.TourOper = values.Get(PrevTourOperName)

	var rejected []string
	for _, field := range rides.FormFields() {
		if field.Key == rides.KeyTo || field.Key == rides.KeyTourOper {
			continue
		}
		if !f.SetField(field.Key, values.Get(field.Name)) {
			rejected = append(rejected, field.Label)
		}
	}

	toField, _ := rides.FieldByKey(rides.KeyTo)
	tourField, _ := rides.FieldByKey(rides.KeyTourOper)
	f.SetField(rides.KeyTo, values.Get(toField.Name))
	f.SetField(rides.KeyTourOper, values.Get(tourField.Name))
	return f, rejected
}

// Validate checks the mandatory fields. The message names all four whatever
// is missing.
func (f *Form) Validate() error {
	err := validate.Struct(requiredFields{
		Date: strings.TrimSpace(f.Ride.Date),
		Time: strings.TrimSpace(f.Ride.Time),
		From: strings.TrimSpace(f.Ride.From),
		To:   strings.TrimSpace(f.Ride.To),
	})
	if err != nil {
		return errors.New(missingRequired)
	}
	return nil
}

// Clear empties every field and message. The price table is kept.
func (f *Form) Clear() {
	f.Ride = rides.Ride{}
	f.Success = ""
	f.Error = ""
}

// Creator is what Submit needs from the backend.
type Creator interface {
	CreateRide(ctx context.Context, ride rides.Ride) (rides.ID, error)
	RenderVoucher(ctx context.Context, ride rides.Ride) (backend.Document, error)
}

type Outcome struct {
	Saved   bool
	ID      rides.ID
	Voucher *backend.Document
}

// Submit validates and creates the ride. With withVoucher, a voucher for
// the saved ride is rendered afterwards; its failure does not undo the save.
func (f *Form) Submit(ctx context.Context, api Creator, withVoucher bool) Outcome {
	f.Success = ""
	f.Error = ""

	if err := f.Validate(); err != nil {
		f.Error = err.Error()
		return Outcome{}
	}

	payload := f.Ride.WithoutID().Normalized()
	payload.Driver = ""
	id, err := api.CreateRide(ctx, payload)
	if err != nil {
		f.Error = "Could not save ride: " + err.Error()
		return Outcome{}
	}

	logger.Info("ride created", zap.String("id", id.String()))
	if id.IsZero() {
		f.Success = "Ride saved."
	} else {
		f.Success = "Ride saved (A/A " + id.String() + ")."
	}
	out := Outcome{Saved: true, ID: id}

	if withVoucher {
		saved := payload
		saved.ID = id
		doc, err := api.RenderVoucher(ctx, saved)
		if err != nil {
			f.Error = "Ride saved, but voucher failed: " + err.Error()
		} else {
			out.Voucher = &doc
		}
	}

	f.Ride = rides.Ride{}
	return out
}
