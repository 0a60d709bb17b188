package errors

// Report is the machine-readable form of an error printed by the CLI
// when a structured output format is selected.
type Report struct {
	// Error contains the error code (domain.code format)
	Error string `json:"error" yaml:"error"`

	// Message contains a human-readable error message
	Message string `json:"message" yaml:"message"`

	// Cause contains the underlying error text, if any
	Cause string `json:"cause,omitempty" yaml:"cause,omitempty"`

	// ExitCode is the process exit status
	ExitCode int `json:"exit_code" yaml:"exit_code"`
}

// ToReport converts an Error to a Report
func (e *Error) ToReport() Report {
	r := Report{
		Error:    string(e.Domain) + "." + string(e.Code),
		Message:  e.Message,
		ExitCode: GetExitCode(e),
	}
	if e.cause != nil {
		r.Cause = e.cause.Error()
	}
	return r
}

// NewReport creates a Report from any error.
// Errors that are not an *Error are reported as internal errors.
func NewReport(err error) Report {
	var e *Error
	if As(err, &e) {
		return e.ToReport()
	}
	return Report{
		Error:    string(DomainInternal) + "." + string(CodeInternal),
		Message:  err.Error(),
		ExitCode: GetExitCode(err),
	}
}
