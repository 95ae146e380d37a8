package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HTMX response headers.
const (
	headerTrigger  = "HX-Trigger"
	headerRetarget = "HX-Retarget"
	headerReswap   = "HX-Reswap"
)

// Client-side events raised through HX-Trigger.
const (
	eventNotification = "show-notification"
	eventItemsChanged = "items:changed"
)

// HTMXResponseBuilder accumulates status, headers and HX-Trigger events for
// one response. Nothing touches the ResponseWriter until Write.
type HTMXResponseBuilder struct {
	status   int
	header   http.Header
	events   map[string]any
	body     []byte
	hasError bool
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status: http.StatusOK,
		header: make(http.Header),
		events: make(map[string]any),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// Trigger raises a client event named name with data as its detail.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.events[name] = data
	return b
}

// TriggerItemsChanged tells other listeners the collection changed.
func (b *HTMXResponseBuilder) TriggerItemsChanged(count int) *HTMXResponseBuilder {
	return b.Trigger(eventItemsChanged, map[string]int{"count": count})
}

// Retarget swaps the response into selector instead of the requesting
// element's target. An empty swap keeps the element's hx-swap.
func (b *HTMXResponseBuilder) Retarget(selector, swap string) *HTMXResponseBuilder {
	b.header.Set(headerRetarget, selector)
	if swap != "" {
		b.header.Set(headerReswap, swap)
	}
	return b
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Notification is the detail of a show-notification event, rendered as a
// toast by app.js.
type Notification struct {
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	DurationMs int              `json:"duration"`
}

// Notify sets the toast for this response. Only one toast is shown per
// response and an error is never replaced by a later success or warning.
func (b *HTMXResponseBuilder) Notify(n Notification) *HTMXResponseBuilder {
	if b.hasError && n.Type != NotificationError {
		return b
	}
	b.hasError = n.Type == NotificationError
	return b.Trigger(eventNotification, n)
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.Notify(Notification{Type: NotificationSuccess, Message: message, DurationMs: 3000})
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.Notify(Notification{Type: NotificationError, Message: message, DurationMs: 5000})
}

// TriggerWarningNotification is used for transient conditions like a save
// still in flight.
func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.Notify(Notification{Type: NotificationWarning, Message: message, DurationMs: 3000})
}

// BodyHTML sets an HTML body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

// Write sends the response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.events) > 0 {
		if encoded, err := json.Marshal(b.events); err == nil {
			h.Set(headerTrigger, string(encoded))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message as an inline banner and raises the same
// text as an error toast.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		TriggerErrorNotification(message).
		BodyHTML(`<div class="banner error" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
