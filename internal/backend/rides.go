package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/pricing"
	"github.com/phillip-england/transitops/internal/rides"
	"go.uber.org/zap"
)

// Document is a binary answer (voucher PDFs).
type Document struct {
	Data        []byte
	ContentType string
	Filename    string
}

type SearchQuery struct {
	From     string
	To       string
	TourOper string
	SortBy   string
	SortDir  string
	// Page is 1-based.
	Page     int
	PageSize int
}

func (q SearchQuery) values() url.Values {
	values := url.Values{}
	if q.From != "" {
		values.Set("from", q.From)
	}
	if q.To != "" {
		values.Set("to", q.To)
	}
	if q.TourOper != "" {
		values.Set("tour_oper", q.TourOper)
	}
	values.Set("sortBy", q.SortBy)
	values.Set("sortDir", q.SortDir)
	values.Set("page", strconv.Itoa(q.Page))
	values.Set("pageSize", strconv.Itoa(q.PageSize))
	return values
}

type SearchResult struct {
	Rows  []rides.Ride
	Total int
}

func (s *Session) Prices(ctx context.Context) ([]pricing.Entry, error) {
	var entries []pricing.Entry
	err := s.doJSON(ctx, call{
		action:   "prices",
		fallback: "Could not load prices",
		method:   http.MethodGet,
		path:     "/prices",
	}, &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateRide stores a new ride and returns the identifier the backend
// assigned. The identifier may be empty when the backend does not report it.
func (s *Session) CreateRide(ctx context.Context, ride rides.Ride) (rides.ID, error) {
	var created struct {
		ID rides.ID `json:"id"`
	}
	err := s.doJSON(ctx, call{
		action:   "create",
		fallback: "Save failed",
		method:   http.MethodPost,
		path:     "/rides",
		body:     ride.WithoutID(),
	}, &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// SearchRides runs one page of a search. The backend answers either with a
// bare array (total is the array length) or with {rows, total}.
func (s *Session) SearchRides(ctx context.Context, q SearchQuery) (SearchResult, error) {
	c := call{
		action:   "search",
		fallback: "Search request failed",
		method:   http.MethodGet,
		path:     "/rides/search",
		query:    q.values(),
	}
	resp, err := s.send(ctx, c)
	if err != nil {
		return SearchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SearchResult{}, readAPIError(c.action, c.fallback, resp.StatusCode, resp.Body, true)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchResult{}, fmt.Errorf("read search response: %w", err)
	}
	result, err := decodeSearch(body)
	if err != nil {
		return SearchResult{}, err
	}
	if result.bare && q.PageSize > 0 && len(result.Rows) == q.PageSize {
		logger.Warn("search returned a bare array filling the page; total may be understated",
			zap.Int("rows", len(result.Rows)),
			zap.Int("page", q.Page),
		)
	}
	return result.SearchResult, nil
}

type decodedSearch struct {
	SearchResult
	bare bool
}

func decodeSearch(body []byte) (decodedSearch, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return decodedSearch{SearchResult: SearchResult{Rows: []rides.Ride{}}}, nil
	}

	if trimmed[0] == '[' {
		var rows []rides.Ride
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return decodedSearch{}, fmt.Errorf("decode search response: %w", err)
		}
		if rows == nil {
			rows = []rides.Ride{}
		}
		return decodedSearch{SearchResult: SearchResult{Rows: rows, Total: len(rows)}, bare: true}, nil
	}

	var envelope struct {
		Rows  json.RawMessage `json:"rows"`
		Total any             `json:"total"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return decodedSearch{}, fmt.Errorf("decode search response: %w", err)
	}

	rows := []rides.Ride{}
	if r := bytes.TrimSpace(envelope.Rows); len(r) > 0 && r[0] == '[' {
		if err := json.Unmarshal(r, &rows); err != nil {
			return decodedSearch{}, fmt.Errorf("decode search rows: %w", err)
		}
	}
	return decodedSearch{SearchResult: SearchResult{Rows: rows, Total: totalOf(envelope.Total, len(rows))}}, nil
}

func totalOf(value any, fallback int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// UpdateRide replaces the editable fields of ride id. The identifier travels
// in the path only.
func (s *Session) UpdateRide(ctx context.Context, id rides.ID, ride rides.Ride) error {
	return s.doJSON(ctx, call{
		action:   "update",
		fallback: "Update failed",
		method:   http.MethodPut,
		path:     "/rides/" + url.PathEscape(id.String()),
		body:     ride.WithoutID(),
	}, nil)
}

func (s *Session) RenderVoucher(ctx context.Context, ride rides.Ride) (Document, error) {
	return s.document(ctx, call{
		action: "voucher",
		method: http.MethodPost,
		path:   "/pdf/voucher",
		body:   ride,
	})
}

func (s *Session) RenderVouchers(ctx context.Context, list []rides.Ride) (Document, error) {
	return s.document(ctx, call{
		action: "vouchers",
		method: http.MethodPost,
		path:   "/pdf/vouchers",
		body:   map[string][]rides.Ride{"rides": list},
	})
}

func (s *Session) EmailVoucher(ctx context.Context, ride rides.Ride, to string) error {
	return s.doJSON(ctx, call{
		action:   "voucher-email",
		fallback: "Email request failed",
		method:   http.MethodPost,
		path:     "/pdf/voucher-email",
		body: struct {
			Ride rides.Ride `json:"ride"`
			To   string     `json:"to"`
		}{Ride: ride, To: to},
	}, nil)
}

// document reads a binary answer. Failures are reported by status only;
// the body of a failed render is not inspected.
func (s *Session) document(ctx context.Context, c call) (Document, error) {
	resp, err := s.send(ctx, c)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Document{}, &APIError{
			Action:  c.action,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Voucher request failed (%d)", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("read %s response: %w", c.action, err)
	}

	doc := Document{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    "voucher.pdf",
	}
	if doc.ContentType == "" {
		doc.ContentType = "application/pdf"
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			doc.Filename = name
		}
	}
	return doc, nil
}
