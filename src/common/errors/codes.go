package errors

// Common error codes used across domains
const (
	CodeNotFound      Code = "not_found"
	CodeInvalid       Code = "invalid"
	CodeMissing       Code = "missing"
	CodeFailed        Code = "failed"
	CodeUnavailable   Code = "unavailable"
	CodeInternal      Code = "internal_error"
	CodeAlreadyExists Code = "already_exists"
)

// Exit codes reported by the CLI
const (
	ExitFailure      = 1
	ExitPrecondition = 2
	ExitConfig       = 3
)

// ============================================================================
// Workspace and Configuration Errors
// ============================================================================

var (
	// ErrWorkspaceInvalid is returned when the workspace root is not a directory
	ErrWorkspaceInvalid = New(DomainWorkspace, CodeInvalid, ExitConfig,
		"Workspace root is not a valid directory")

	// ErrConfigInvalid is returned when a configuration value is rejected
	ErrConfigInvalid = New(DomainConfig, CodeInvalid, ExitConfig,
		"Invalid configuration")

	// ErrSourceSetInvalid is returned when boot sources cannot map 1:1 to objects
	ErrSourceSetInvalid = New(DomainWorkspace, "source_set_invalid", ExitConfig,
		"Boot source set is invalid")
)

// ============================================================================
// Toolchain Errors
// ============================================================================

var (
	// ErrToolInvocation is returned when an external tool exits non-zero
	ErrToolInvocation = New(DomainToolchain, "invocation_failed", ExitFailure,
		"Tool invocation failed")

	// ErrToolNotFound is returned when an external tool is not installed
	ErrToolNotFound = New(DomainToolchain, CodeNotFound, ExitFailure,
		"Tool not found in PATH")

	// ErrInvalidCommand is returned when a command specification fails validation
	ErrInvalidCommand = New(DomainToolchain, "invalid_command", ExitFailure,
		"Invalid command specification")
)

// ============================================================================
// Artifact Errors
// ============================================================================

var (
	// ErrArtifactMissing is returned when a required artifact has not been built
	ErrArtifactMissing = New(DomainArtifact, CodeMissing, ExitPrecondition,
		"Required artifact is missing")

	// ErrArtifactInvalid is returned when an artifact exists but is unusable
	ErrArtifactInvalid = New(DomainArtifact, CodeInvalid, ExitFailure,
		"Artifact is invalid")
)

// ============================================================================
// Privileged Operation Errors
// ============================================================================

var (
	// ErrPrivilegedOperation is returned when format/mount/unmount fails
	ErrPrivilegedOperation = New(DomainPrivilege, "operation_failed", ExitFailure,
		"Privileged operation failed")
)

// ============================================================================
// Pipeline Errors
// ============================================================================

var (
	// ErrStageFailed is returned when a pipeline stage fails
	ErrStageFailed = New(DomainPipeline, "stage_failed", ExitFailure,
		"Pipeline stage failed")

	// ErrInvalidTransition is returned when the pipeline state machine is misused
	ErrInvalidTransition = New(DomainPipeline, "invalid_transition", ExitFailure,
		"Invalid pipeline state transition")
)

// ============================================================================
// Storage and Database Errors
// ============================================================================

var (
	// ErrStorageUploadFailed is returned when publishing an artifact fails
	ErrStorageUploadFailed = New(DomainStorage, "upload_failed", ExitFailure,
		"Failed to upload artifact")

	// ErrStorageUnavailable is returned when the storage backend is unreachable
	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, ExitFailure,
		"Storage backend unavailable")

	// ErrDatabaseQuery is returned when a history query fails
	ErrDatabaseQuery = New(DomainDatabase, "query_failed", ExitFailure,
		"Database query failed")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	// ErrInternal is returned for unexpected internal errors
	ErrInternal = New(DomainInternal, CodeInternal, ExitFailure,
		"Internal error")
)
