package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// fakeRunner records invocations and returns canned results.
type fakeRunner struct {
	calls  [][]string
	stdout string
	stderr string
	err    error
	// block waits for ctx cancellation before returning.
	block bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.block {
		<-ctx.Done()
		return nil, []byte("partial"), errors.New("signal: killed")
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func testYtDLP(r Runner, user, pass string) *YtDLP {
	return NewYtDLP(YtDLPConfig{
		Path:            "yt-dlp",
		MetadataTimeout: time.Second,
		DownloadTimeout: 50 * time.Millisecond,
		Username:        user,
		Password:        pass,
	}, r, nil)
}

func TestYtDLP_DumpJSON(t *testing.T) {
	r := &fakeRunner{stdout: `{"id":"ABC","uploader":"alice","description":"hello","title":"t"}`}
	y := testYtDLP(r, "", "")

	info, err := y.DumpJSON(context.Background(), "https://www.instagram.com/p/ABC/")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Uploader)
	assert.Equal(t, "hello", info.Description)

	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"yt-dlp", "--dump-json", "--no-playlist", "--quiet", "--no-warnings", "https://www.instagram.com/p/ABC/"}, r.calls[0])
}

func TestYtDLP_DumpJSON_BadOutput(t *testing.T) {
	y := testYtDLP(&fakeRunner{stdout: "not json"}, "", "")

	_, err := y.DumpJSON(context.Background(), "u")
	assert.Error(t, err)
}

func TestYtDLP_Download_Args(t *testing.T) {
	r := &fakeRunner{}
	y := testYtDLP(r, "me", "pw")

	require.NoError(t, y.Download(context.Background(), "https://www.instagram.com/reel/X/", "downloads"))

	got := strings.Join(r.calls[0], " ")
	assert.Contains(t, got, "-f best")
	assert.Contains(t, got, "-o downloads/%(id)s.%(ext)s")
	assert.Contains(t, r.calls[0], "--no-mtime")
	assert.Contains(t, got, "--username me --password pw")
	assert.True(t, strings.HasSuffix(got, "https://www.instagram.com/reel/X/"))
}

func TestYtDLP_CredentialsOmittedWhenIncomplete(t *testing.T) {
	r := &fakeRunner{}
	y := testYtDLP(r, "me", "")

	require.NoError(t, y.Download(context.Background(), "u", "d"))
	assert.NotContains(t, r.calls[0], "--username")
}

func TestYtDLP_Download_Errors(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		wantIs   error
		wantText string
	}{
		{
			name:     "stderr surfaced",
			runner:   &fakeRunner{stderr: "ERROR: login required\n", err: errors.New("exit status 1")},
			wantIs:   domain.ErrDownloadFailed,
			wantText: "ERROR: login required",
		},
		{
			name:     "generic failure",
			runner:   &fakeRunner{err: errors.New("exit status 1")},
			wantIs:   domain.ErrDownloadFailed,
			wantText: "Download failed",
		},
		{
			name:     "timeout",
			runner:   &fakeRunner{block: true},
			wantIs:   domain.ErrToolTimeout,
			wantText: "Download timeout",
		},
		{
			name:   "missing binary",
			runner: &fakeRunner{err: &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}},
			wantIs: domain.ErrToolMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testYtDLP(tt.runner, "", "").Download(context.Background(), "u", "d")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)

			if tt.wantText != "" {
				var toolErr *domain.ToolError
				require.True(t, errors.As(err, &toolErr))
				assert.Equal(t, tt.wantText, toolErr.Message)
			}
		})
	}
}

func TestYtDLP_Available(t *testing.T) {
	ok := testYtDLP(&fakeRunner{stdout: "2024.08.06\n"}, "", "")
	v, err := ok.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024.08.06", v)
	assert.NoError(t, ok.Available(context.Background()))

	missing := testYtDLP(&fakeRunner{err: fmt.Errorf("start: %w", exec.ErrNotFound)}, "", "")
	assert.ErrorIs(t, missing.Available(context.Background()), domain.ErrToolMissing)

	broken := testYtDLP(&fakeRunner{err: errors.New("exit status 2")}, "", "")
	assert.ErrorIs(t, broken.Available(context.Background()), domain.ErrToolMissing)
}

func TestPageFetcher_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	body, err := NewPageFetcher(5*time.Second, "test-agent").Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
}

func TestPageFetcher_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewPageFetcher(5*time.Second, "ua").Get(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestPageFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewPageFetcher(20*time.Millisecond, "ua").Get(context.Background(), server.URL)
	assert.Error(t, err)
}
