package log

// Common field names for structured logging
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
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldRunID            = "run_id"
	FieldRulesDigest      = "rules_digest"
	FieldSteps            = "steps"
	FieldInputRows        = "input_rows"
	FieldOutputRows       = "output_rows"
	FieldRemovedByAccount = "removed_by_account"
	FieldRemovedByTerm    = "removed_by_term"
	FieldRemovedByStep    = "removed_by_step"
	FieldRecategorized    = "recategorized"
	FieldSheetsRange      = "sheets_range"
)

// Component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentPipeline  = "pipeline"
	ComponentRules     = "rules"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operation names
const (
	OpRun      = "run"
	OpRead     = "read"
	OpList     = "list"
	OpExport   = "export"
	OpPublish  = "publish"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error field when err is non-nil.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRun adds the identifying fields of a pipeline run.
func (f LogFields) WithRun(runID, digest string) LogFields {
	f[FieldRunID] = runID
	if digest != "" {
		f[FieldRulesDigest] = digest
	}
	return f
}

// WithRunStats adds pipeline counters.
func (f LogFields) WithRunStats(input, byAccount, byTerm, byStep, recategorized, output int) LogFields {
	f[FieldInputRows] = input
	f[FieldRemovedByAccount] = byAccount
	f[FieldRemovedByTerm] = byTerm
	f[FieldRemovedByStep] = byStep
	f[FieldRecategorized] = recategorized
	f[FieldOutputRows] = output
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
