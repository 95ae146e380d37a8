package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budget/internal/core"
	"budget/internal/pipeline"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want pipeline.Filter
	}{
		{
			name: "empty form matches everything",
			form: url.Values{},
			want: pipeline.Filter{},
		},
		{
			name: "all controls",
			form: url.Values{"search": {"  flo "}, "category": {"Flowers"}, "required": {"on"}},
			want: pipeline.Filter{Search: "flo", Category: "Flowers", RequiredOnly: true},
		},
		{
			name: "unchecked toggle",
			form: url.Values{"required": {""}},
			want: pipeline.Filter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFilter(tt.form); got != tt.want {
				t.Errorf("ParseFilter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseItemKeyAndField(t *testing.T) {
	mux := http.NewServeMux()
	var gotID core.ItemID
	var gotField core.Field
	var failed bool
	mux.HandleFunc("POST /items/{key}/fields/{field}", func(w http.ResponseWriter, r *http.Request) {
		id, errResp := ParseItemKey(r)
		f, fieldErr := ParseEditableField(r)
		failed = errResp != nil || fieldErr != nil
		gotID, gotField = id, f
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items/12/fields/unitCost", nil))
	if failed || gotID != core.PersistedID(12) || gotField != core.FieldUnitCost {
		t.Errorf("got %v %q failed=%v", gotID, gotField, failed)
	}

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items/new/fields/item", nil))
	if failed || !gotID.IsPending() {
		t.Errorf("pending key not parsed: %v failed=%v", gotID, failed)
	}

	for _, target := range []string{"/items/abc/fields/item", "/items/3/fields/subTotal", "/items/3/fields/id"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, target, nil))
		if !failed {
			t.Errorf("%s should be rejected", target)
		}
	}
}

func TestParseDetailID(t *testing.T) {
	if id, errResp := ParseDetailID(url.Values{"id": {"7"}}); errResp != nil || id != 7 {
		t.Errorf("ParseDetailID(7) = %d, %v", id, errResp)
	}
	for _, bad := range []string{"", "0", "-1", "x"} {
		if _, errResp := ParseDetailID(url.Values{"id": {bad}}); errResp == nil {
			t.Errorf("ParseDetailID(%q) should fail", bad)
		}
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"value": " 123 ", "flag": true, "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.Get("value"); got != "123" {
		t.Errorf("Get('value') = %q, want '123'", got)
	}
	if got := parser.GetText("value"); got != " 123 " {
		t.Errorf("GetText('value') = %q, want ' 123 '", got)
	}
	if got := parser.Get("amount"); got != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", got)
	}
	if !parser.Has("flag") || parser.Has("missing") {
		t.Error("Has() mismatch")
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "value=line+one%0Aline+two%07&name=form+test"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.GetText("value"); got != "line one\nline two" {
		t.Errorf("GetText('value') = %q, control characters should be stripped", got)
	}
	if got := parser.Get("name"); got != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
	if parser.Has("value") {
		t.Error("empty body has no keys")
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("field=value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if result := ParseFormOrFail(req); result != nil {
		t.Error("Expected nil for valid form, got error response")
	}
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}

	bad := httptest.NewRequest(http.MethodPost, "/test?%zz", nil)
	if result := ParseFormOrFail(bad); result == nil {
		t.Error("Expected error response for malformed query")
	}
}
