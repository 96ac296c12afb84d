package downloader

import (
	"context"
)

// Runner executes an external command and captures its output.
type Runner interface {
	// Run executes name with args. A non-nil error is returned when the
	// command cannot start or exits non-zero; stdout and stderr are
	// returned in both cases.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Fetcher retrieves a web page body.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}
