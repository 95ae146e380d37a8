package log

// Attribute keys shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldItemID     = "item_id"
	FieldItemField  = "field"
	FieldCategory   = "category"
	FieldItemName   = "item"
	FieldSubtotal   = "subtotal"
	FieldCount      = "count"
)

// Component names attached to every record a scoped Logger writes.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentEditor   = "editor"
	ComponentItems    = "items"
	ComponentWorker   = "worker"
	ComponentMirror   = "mirror"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
	ComponentAMQP     = "amqp"
	ComponentCLI      = "cli"
)

// Operation names for FieldOperation.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Fields collects attributes for one record.
type Fields map[string]any

func NewFields() Fields { return make(Fields) }

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithClientIP(ip string) Fields {
	f[FieldClientIP] = ip
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithError records err's message; nil is ignored.
func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithItem(id, category, item, subtotal string) Fields {
	f[FieldItemID] = id
	f[FieldCategory] = category
	f[FieldItemName] = item
	f[FieldSubtotal] = subtotal
	return f
}

// WithRequest records method and path, plus query and user agent when set.
func (f Fields) WithRequest(method, path, query, userAgent string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f Fields) WithResponse(status int, durationMs int64) Fields {
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	return f
}

// Args flattens the fields into slog key/value arguments. The component key
// is left out because Logger adds its own.
func (f Fields) Args() []any {
	args := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		args = append(args, k, v)
	}
	return args
}
