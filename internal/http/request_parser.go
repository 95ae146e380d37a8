// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// row keys and field names from the path, filter controls from the query and
// field values from HTMX form or JSON bodies.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budget/internal/core"
	"budget/internal/pipeline"
)

// maxBodyBytes bounds field and markdown bodies.
const maxBodyBytes = 1 << 20

// ParseFilter reads the search box, category selector and required-only
// toggle. Unknown values match everything.
func ParseFilter(form url.Values) pipeline.Filter {
	required := strings.TrimSpace(form.Get("required"))
	return pipeline.Filter{
		Search:       strings.TrimSpace(sanitizeInput(form.Get("search"))),
		Category:     sanitizeInput(form.Get("category")),
		RequiredOnly: required == "on" || required == "true" || required == "1",
	}
}

// ParseItemKey reads the {key} path segment: "new" or a positive id.
func ParseItemKey(r *http.Request) (core.ItemID, *HTMXResponseBuilder) {
	id, err := core.ParseItemID(r.PathValue("key"))
	if err != nil {
		return core.ItemID{}, BadRequestError("Unknown row")
	}
	return id, nil
}

// ParseEditableField reads the {field} path segment.
func ParseEditableField(r *http.Request) (core.Field, *HTMXResponseBuilder) {
	f, ok := core.ParseField(r.PathValue("field"))
	if !ok || !f.Editable() {
		return "", BadRequestError("Unknown field")
	}
	return f, nil
}

// ParseDetailID reads ?id=N for the detail view.
func ParseDetailID(query url.Values) (int64, *HTMXResponseBuilder) {
	id, err := strconv.ParseInt(strings.TrimSpace(query.Get("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequestError("Missing or invalid item id")
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	return strings.TrimSpace(p.GetText(key))
}

// GetText returns a sanitized value with surrounding whitespace kept, for
// notes and markdown.
func (p *RequestBodyParser) GetText(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeText(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeText(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Malformed request")
	}
	return nil
}
