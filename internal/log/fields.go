package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldTxKey         = "transaction_key"
	FieldTxDesc        = "transaction_description"
	FieldAmountCents   = "amount_cents"
	FieldKind          = "kind"
	FieldCategory      = "category"
	FieldRecordPath    = "record_path"
	FieldRecordKey     = "record_key"
	FieldSizeBytes     = "size_bytes"
	FieldSnapshotSize  = "snapshot_size"
	FieldDroppedCount  = "dropped"
	FieldStateRevision = "revision"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentAuth         = "auth"
	ComponentSynchronizer = "synchronizer"
	ComponentWriter       = "writer"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentCache        = "cache"
	ComponentBackend      = "backend"
)

// Operations defines standard operation names
const (
	OpSignIn    = "sign_in"
	OpSignUp    = "sign_up"
	OpSignOut   = "sign_out"
	OpSubscribe = "subscribe"
	OpRelease   = "release"
	OpSnapshot  = "snapshot"
	OpDecode    = "decode"
	OpWrite     = "write"
	OpPublish   = "publish"
	OpConsume   = "consume"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the authenticated user id
func (f LogFields) WithUser(uid string) LogFields {
	f[FieldUserID] = uid
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(key, desc string, amountCents int64, kind, category string) LogFields {
	f[FieldTxKey] = key
	f[FieldTxDesc] = desc
	f[FieldAmountCents] = amountCents
	f[FieldKind] = kind
	f[FieldCategory] = category
	return f
}

// WithSnapshot adds snapshot decoding stats
func (f LogFields) WithSnapshot(path string, size, dropped int) LogFields {
	f[FieldRecordPath] = path
	f[FieldSnapshotSize] = size
	f[FieldDroppedCount] = dropped
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
