// Package rest talks to a hosted PostgREST-compatible endpoint
// (e.g. Supabase) holding the budget_items table.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budget/internal/adapters"
	"budget/internal/ports"
)

const DefaultTable = "budget_items"

// Store implements ports.RecordStore over HTTP. Every request carries the
// shared client key; there is no per-user identity.
type Store struct {
	baseURL string
	apiKey  string
	table   string
	client  *http.Client
}

type Option func(*Store)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

func New(baseURL, apiKey, table string, opts ...Option) (*Store, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("rest base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("rest API key is required")
	}
	if table == "" {
		table = DefaultTable
	}
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		table:   table,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// ListRecords implements ports.RecordStore
func (s *Store) ListRecords(ctx context.Context) ([]adapters.Record, error) {
	q := url.Values{"select": {"*"}, "order": {"id.asc"}}
	var out []adapters.Record
	if err := s.do(ctx, http.MethodGet, q, nil, &out); err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	return out, nil
}

// GetRecord implements ports.RecordStore
func (s *Store) GetRecord(ctx context.Context, id int64) (adapters.Record, error) {
	var out []adapters.Record
	if err := s.do(ctx, http.MethodGet, byID(id, true), nil, &out); err != nil {
		return adapters.Record{}, fmt.Errorf("get budget item %d: %w", id, err)
	}
	if len(out) == 0 {
		return adapters.Record{}, fmt.Errorf("get budget item %d: %w", id, ports.ErrNotFound)
	}
	return out[0], nil
}

// InsertRecord implements ports.RecordStore
func (s *Store) InsertRecord(ctx context.Context, r adapters.Record) (adapters.Record, error) {
	r.ID, r.HTML, r.CreatedAt, r.UpdatedAt = nil, nil, nil, nil
	var out []adapters.Record
	if err := s.do(ctx, http.MethodPost, nil, r, &out); err != nil {
		return adapters.Record{}, fmt.Errorf("create budget item: %w", err)
	}
	if len(out) == 0 {
		return adapters.Record{}, fmt.Errorf("create budget item: empty representation")
	}
	return out[0], nil
}

// UpdateRecordField implements ports.RecordStore. updated_at is left to
// the table's trigger.
func (s *Store) UpdateRecordField(ctx context.Context, id int64, column string, value any) (adapters.Record, error) {
	body := map[string]any{column: value}
	var out []adapters.Record
	if err := s.do(ctx, http.MethodPatch, byID(id, true), body, &out); err != nil {
		return adapters.Record{}, fmt.Errorf("update budget item %d %s: %w", id, column, err)
	}
	if len(out) == 0 {
		return adapters.Record{}, fmt.Errorf("update budget item %d: %w", id, ports.ErrNotFound)
	}
	return out[0], nil
}

// DeleteRecord implements ports.RecordStore
func (s *Store) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	var out []adapters.Record
	if err := s.do(ctx, http.MethodDelete, byID(id, false), nil, &out); err != nil {
		return false, fmt.Errorf("delete budget item %d: %w", id, err)
	}
	return len(out) > 0, nil
}

// SetHTML implements ports.HTMLWriter
func (s *Store) SetHTML(ctx context.Context, id int64, html string) error {
	var out []adapters.Record
	if err := s.do(ctx, http.MethodPatch, byID(id, false), map[string]any{"html": html}, &out); err != nil {
		return fmt.Errorf("set html for budget item %d: %w", id, err)
	}
	if len(out) == 0 {
		return fmt.Errorf("set html for budget item %d: %w", id, ports.ErrNotFound)
	}
	return nil
}

// Ping checks the endpoint answers with the configured key.
func (s *Store) Ping(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	var out []json.RawMessage
	return s.do(ctx, http.MethodGet, q, nil, &out)
}

func byID(id int64, selectAll bool) url.Values {
	q := url.Values{"id": {"eq." + strconv.FormatInt(id, 10)}}
	if selectAll {
		q.Set("select", "*")
	}
	return q
}

func (s *Store) do(ctx context.Context, method string, q url.Values, body any, out any) error {
	endpoint := s.baseURL + "/rest/v1/" + url.PathEscape(s.table)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)
	msg := ae.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	// Class 23 is integrity constraint violation (not null, check, ...).
	if strings.HasPrefix(ae.Code, "23") || status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: %s", ports.ErrRejected, msg)
	}
	if status == http.StatusNotFound && ae.Code == "PGRST116" {
		return ports.ErrNotFound
	}
	return fmt.Errorf("api error (status %d): %s", status, msg)
}
