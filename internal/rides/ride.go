// Package rides holds the ride record exchanged with the backend and the
// presentation helpers built on top of it (decimal inputs, picker values,
// page totals, CSV/XLSX export).
package rides

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Types is the closed list offered for the TYPE field.
var Types = []string{"ARRIVAL", "DEPARTURE", "TRANSFER", "TOUR", "TOUR + BETWEEN"}

// ID is the backend-assigned sequential identifier (the "A/A" column). It is
// kept as text so it survives both numeric and string encodings.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

func (id ID) MarshalJSON() ([]byte, error) {
	trimmed := strings.TrimSpace(string(id))
	if trimmed == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return []byte(trimmed), nil
	}
	return json.Marshal(trimmed)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	value, err := decodeText(data)
	if err != nil {
		return fmt.Errorf("decode A/A: %w", err)
	}
	*id = ID(value)
	return nil
}

// Ride is one transfer/tour booking. Every field except ID is plain text at
// this layer; DRIVER is assigned by the backend and only ever read back.
type Ride struct {
	ID          ID     `json:"A/A,omitempty"`
	Date        string `json:"THE_DATE"`
	Time        string `json:"TIME"`
	Type        string `json:"TYPE"`
	From        string `json:"FROM"`
	To          string `json:"TO"`
	HotelName   string `json:"HOTEL NAME"`
	Area        string `json:"AREA"`
	FlyCode     string `json:"FLY_CODE"`
	FlyCompany  string `json:"FLY_COMPANY"`
	Email       string `json:"EMAIL"`
	Name        string `json:"THE_NAME"`
	Pax         string `json:"PAX"`
	Adult       string `json:"ADULT"`
	ChildInfant string `json:"CH/INF"`
	Info        string `json:"INFO"`
	TourOper    string `json:"TOUR_OPER"`
	VCode       string `json:"VCode"`
	Price       string `json:"PRICE"`
	Driver      string `json:"DRIVER,omitempty"`
}

// UnmarshalJSON tolerates numbers, booleans and nulls in any column; the
// backend is not consistent about PAX, ADULT and PRICE.
func (r *Ride) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Ride
	if value, ok := raw[KeyID]; ok {
		if err := out.ID.UnmarshalJSON(value); err != nil {
			return err
		}
	}
	for _, field := range fieldTable {
		value, ok := raw[field.Key]
		if !ok {
			continue
		}
		text, err := decodeText(value)
		if err != nil {
			return fmt.Errorf("decode %s: %w", field.Key, err)
		}
		*field.ptr(&out) = text
	}
	*r = out
	return nil
}

// WithoutID returns a copy with the identifier cleared, which drops the A/A
// key from the encoded payload.
func (r Ride) WithoutID() Ride {
	r.ID = ""
	return r
}

// Normalized returns the payload form of r: decimal columns use "." as the
// separator.
func (r Ride) Normalized() Ride {
	r.Adult = NormalizeDecimal(r.Adult)
	r.Price = NormalizeDecimal(r.Price)
	return r
}

// PageTotal sums the PRICE column. Values that do not parse count as zero.
func PageTotal(rows []Ride) float64 {
	var sum float64
	for _, row := range rows {
		value, err := strconv.ParseFloat(strings.TrimSpace(row.Price), 64)
		if err != nil {
			continue
		}
		sum += value
	}
	return sum
}

// IndexOf returns the position of the row with id, or -1.
func IndexOf(rows []Ride, id ID) int {
	for i := range rows {
		if rows[i].ID == id {
			return i
		}
	}
	return -1
}

func decodeText(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}
