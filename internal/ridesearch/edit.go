package ridesearch

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/rides"
	"go.uber.org/zap"
)

var validate = validator.New()

func validateRecipient(recipient string) error {
	return validate.Var(recipient, "required")
}

type Phase int

const (
	Editing Phase = iota
	Saving
)

// RowEdit is the single in-progress inline edit: a draft copy of one row.
type RowEdit struct {
	ID    rides.ID
	Draft rides.Ride
	Phase Phase
	Error string
}

// ErrNotOnPage is returned when an edit targets a row that is not displayed.
var ErrNotOnPage = errors.New("ride is not on this page")

// BeginEdit snapshots row id into a draft, replacing any other edit.
func (r *Results) BeginEdit(id rides.ID) bool {
	i := rides.IndexOf(r.Rows, id)
	if i < 0 {
		r.Edit = nil
		r.State.Editing = ""
		return false
	}
	r.Edit = &RowEdit{ID: id, Draft: r.Rows[i], Phase: Editing}
	r.State.Editing = id
	return true
}

// CancelEdit drops the draft. The displayed row is untouched.
func (r *Results) CancelEdit() {
	r.Edit = nil
	r.State.Editing = ""
}

func (r *Results) IsEditing(id rides.ID) bool {
	return r.Edit != nil && r.Edit.ID == id
}

// SetDraftField edits the draft. Decimal fields take the same partial
// decimal pattern as the entry form and are stored without whitespace;
// picker fields store the picker's value. The identifier and DRIVER are not
// editable.
func (e *RowEdit) SetDraftField(key, value string) bool {
	field, ok := rides.FieldByKey(key)
	if !ok || key == rides.KeyDriver {
		return false
	}
	if field.Decimal {
		if !rides.ValidDecimal(value) {
			return false
		}
		value = strings.Join(strings.Fields(value), "")
	}
	e.Draft.Set(key, value)
	return true
}

// DateValue and TimeValue are the picker forms of the draft's date and time.
func (e *RowEdit) DateValue() string { return rides.DateInputValue(e.Draft.Date) }
func (e *RowEdit) TimeValue() string { return rides.TimeInputValue(e.Draft.Time) }

// Options lists the choices for a closed-list field (FROM, TO, AREA): the
// known destinations plus the draft's current value when it is not among
// them.
func (e *RowEdit) Options(key string, known []string) []string {
	return rides.EditOptions(e.Draft.Get(key), known)
}

// Updater is what SaveEdit needs from the backend.
type Updater interface {
	UpdateRide(ctx context.Context, id rides.ID, ride rides.Ride) error
}

// SaveEdit sends the draft. On success the draft is merged into the
// displayed row and edit mode ends; on failure edit mode stays with the
// error attached.
func (r *Results) SaveEdit(ctx context.Context, api Updater) bool {
	if r.Edit == nil {
		return false
	}
	edit := r.Edit
	edit.Phase = Saving
	edit.Error = ""

	payload := edit.Draft.WithoutID().Normalized()
	if err := api.UpdateRide(ctx, edit.ID, payload); err != nil {
		edit.Phase = Editing
		edit.Error = "Could not update ride: " + err.Error()
		r.fail(edit.Error)
		logger.Warn("ride update failed", zap.String("id", edit.ID.String()), zap.Error(err))
		return false
	}

	merged := edit.Draft
	merged.ID = edit.ID
	if i := rides.IndexOf(r.Rows, edit.ID); i >= 0 {
		r.Rows[i] = merged
	}
	r.succeed("Ride A/A " + edit.ID.String() + " updated.")
	r.CancelEdit()
	return true
}

// Update applies posted draft fields (backend key to value) to row id and
// saves. A refused decimal keeps edit mode open with an error and sends
// nothing. A blank date or time posted for a stored value the picker could
// not show keeps the stored value.
func (r *Results) Update(ctx context.Context, api Updater, id rides.ID, fields map[string]string) bool {
	if !r.BeginEdit(id) {
		r.fail("Could not update ride: " + ErrNotOnPage.Error())
		return false
	}
	stored := r.Edit.Draft

	var rejected []string
	for _, field := range rides.FormFields() {
		value, posted := fields[field.Key]
		if !posted {
			continue
		}
		if strings.TrimSpace(value) == "" && !rides.PickerKeeps(field.Key, stored.Get(field.Key)) {
			continue
		}
		if !r.Edit.SetDraftField(field.Key, value) && field.Decimal {
			rejected = append(rejected, field.Label)
		}
	}
	if len(rejected) > 0 {
		r.Edit.Error = "Invalid number in " + strings.Join(rejected, ", ") + ". Use digits with a single . or , separator."
		r.fail(r.Edit.Error)
		return false
	}
	return r.SaveEdit(ctx, api)
}
