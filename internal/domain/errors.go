package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidSourceURL is returned when a URL is not an Instagram post or reel.
	ErrInvalidSourceURL = errors.New("invalid Instagram URL")

	// ErrNoValidURLs is returned when a batch contains no acceptable URL.
	ErrNoValidURLs = errors.New("no valid Instagram URLs found")

	// ErrToolMissing is returned when the external downloader is not installed.
	ErrToolMissing = errors.New("yt-dlp is not installed")

	// ErrToolTimeout is returned when an external tool exceeds its deadline.
	ErrToolTimeout = errors.New("tool timed out")

	// ErrDownloadFailed is returned when the downloader exits without an artifact.
	ErrDownloadFailed = errors.New("download failed")

	// ErrNoArtifact is returned when no media file can be found after a download.
	ErrNoArtifact = errors.New("no downloaded media file found")

	// ErrRemoteStore is returned when a remote store call fails.
	ErrRemoteStore = errors.New("remote store error")

	// ErrRemoteNotConfigured is returned when the remote store is disabled.
	ErrRemoteNotConfigured = errors.New("remote store not configured")

	// ErrPublishFailed is returned when the relay publish fails.
	ErrPublishFailed = errors.New("publish failed")

	// ErrRelayNotConfigured is returned when no relay publisher is set up.
	ErrRelayNotConfigured = errors.New("relay publishing not configured")

	// ErrConsentRequired is returned when no cached credential exists and
	// interactive authorization has not been performed.
	ErrConsentRequired = errors.New("authorization required")
)

// Relay flow step tags reported to callers.
const (
	StepDuplicate  = "duplicate"
	StepDownload   = "download"
	StepRemotePull = "gdrive_download"
	StepUpload     = "upload"
	StepComplete   = "complete"
)

// ToolError carries the user-visible message of a failed tool invocation.
type ToolError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Message != "" {
		return e.Tool + ": " + e.Message
	}
	return e.Tool + ": " + e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a new ToolError.
func NewToolError(tool, message string, err error) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Err:     err,
	}
}

// StepError tags a relay failure with the step that stopped the flow.
type StepError struct {
	Step    string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Message != "" {
		return e.Step + ": " + e.Message
	}
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError creates a new StepError.
func NewStepError(step, message string, err error) *StepError {
	return &StepError{
		Step:    step,
		Message: message,
		Err:     err,
	}
}
