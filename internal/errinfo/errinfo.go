package errinfo

// ErrorInfo is the structured error payload every surface returns as data.
// The calling agent (or UI) reads the code and detail and decides whether to
// retry; nothing in the core raises an unrecoverable fault for these.
type ErrorInfo struct {
	ErrorCode string   `json:"error_code"`
	Phase     string   `json:"phase,omitempty"`
	Retryable bool     `json:"retryable"`
	Actions   []string `json:"actions,omitempty"`
	Sheet     string   `json:"sheet,omitempty"`
	Column    string   `json:"column,omitempty"`
	BestGuess string   `json:"best_guess,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

const (
	CodeNotFound              = "NOT_FOUND"
	CodeAmbiguousMatch        = "AMBIGUOUS_MATCH"
	CodeOperationFailed       = "OPERATION_FAILED"
	CodeLoadFailed            = "LOAD_FAILED"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	CodeProviderAuthFailed    = "PROVIDER_AUTH_FAILED"
	CodeProviderUnavailable   = "PROVIDER_UNAVAILABLE"
	CodeUserCanceled          = "USER_CANCELED"
)

const (
	ActionRetry       = "retry"
	ActionRephrase    = "rephrase"
	ActionCheckAPIKey = "check_api_key"
)

const (
	PhaseLoad  = "load"
	PhaseQuery = "query"
	PhaseChat  = "chat"
)

func NotFound(phase, sheet, column string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeNotFound,
		Phase:     phase,
		Retryable: false,
		Sheet:     sheet,
		Column:    column,
	}
}

func AmbiguousMatch(phase, sheet, phrase, bestGuess string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeAmbiguousMatch,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRephrase},
		Sheet:     sheet,
		Column:    phrase,
		BestGuess: bestGuess,
	}
}

func OperationFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeOperationFailed,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func LoadFailed(detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeLoadFailed,
		Phase:     PhaseLoad,
		Retryable: false,
		Detail:    detail,
	}
}

func ValidationFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeValidationFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func ProviderNotConfigured(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderNotConfigured,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionCheckAPIKey},
	}
}

func ProviderAuthFailed(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderAuthFailed,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionCheckAPIKey},
	}
}

func ProviderUnavailable(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderUnavailable,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func UserCanceled(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeUserCanceled,
		Phase:     phase,
		Retryable: false,
	}
}
