package log

import "log/slog"

// Attribute keys shared by every component.
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldQuery        = "query"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldUserAgent    = "user_agent"
	FieldReferer      = "referer"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldUID          = "uid"
	FieldMode         = "mode"
	FieldMutationID   = "mutation_id"
	FieldMutationKind = "kind"
	FieldAmount       = "amount"
)

const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentWorker  = "worker"
	ComponentAuth    = "auth"
	ComponentAI      = "ai"
	ComponentExport  = "export"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
)

const (
	OpCreate  = "create"
	OpRead    = "read"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpList    = "list"
	OpRetry   = "retry"
	OpExport  = "export"
	OpSignIn  = "sign_in"
	OpSignUp  = "sign_up"
	OpSignOut = "sign_out"
	OpClear   = "clear"
	OpStartup = "startup"
)

// Fields collects attributes in the order they are added. A later value for
// the same key replaces the earlier one in place.
type Fields struct {
	attrs []slog.Attr
}

func NewFields() *Fields {
	return &Fields{}
}

func (f *Fields) set(key string, value any) *Fields {
	for i := range f.attrs {
		if f.attrs[i].Key == key {
			f.attrs[i].Value = slog.AnyValue(value)
			return f
		}
	}
	f.attrs = append(f.attrs, slog.Any(key, value))
	return f
}

func (f *Fields) setIf(key, value string) *Fields {
	if value == "" {
		return f
	}
	return f.set(key, value)
}

func (f *Fields) WithComponent(component string) *Fields { return f.set(FieldComponent, component) }

func (f *Fields) WithOperation(op string) *Fields { return f.set(FieldOperation, op) }

func (f *Fields) WithClientIP(ip string) *Fields { return f.setIf(FieldClientIP, ip) }

// WithError records err's message; nil is ignored.
func (f *Fields) WithError(err error) *Fields {
	if err == nil {
		return f
	}
	return f.set(FieldError, err.Error())
}

func (f *Fields) WithMutation(id, kind, amount string) *Fields {
	return f.set(FieldMutationID, id).set(FieldMutationKind, kind).setIf(FieldAmount, amount)
}

// WithSession tags the record with the signed-in user (if any) and app mode.
func (f *Fields) WithSession(uid, mode string) *Fields {
	return f.setIf(FieldUID, uid).set(FieldMode, mode)
}

func (f *Fields) WithHTTPRequest(method, path, query, userAgent, referer string) *Fields {
	return f.set(FieldMethod, method).
		set(FieldPath, path).
		setIf(FieldQuery, query).
		setIf(FieldUserAgent, userAgent).
		setIf(FieldReferer, referer)
}

func (f *Fields) WithHTTPStatus(status int, durationMs int64) *Fields {
	return f.set(FieldStatusCode, status).set(FieldDuration, durationMs)
}

// Attrs returns the collected attributes as slog arguments.
func (f *Fields) Attrs() []any {
	out := make([]any, len(f.attrs))
	for i, a := range f.attrs {
		out[i] = a
	}
	return out
}
