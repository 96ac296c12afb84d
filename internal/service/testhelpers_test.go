package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/iconidentify/reelrelay/internal/domain"
	"github.com/iconidentify/reelrelay/internal/repository"
	"github.com/iconidentify/reelrelay/pkg/youtube"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDownloader writes <shortcode>.mp4 into the target directory.
type fakeDownloader struct {
	mu           sync.Mutex
	calls        int
	err          error
	availableErr error
	content      []byte
	// noFile simulates a download that produced nothing.
	noFile bool
}

func (d *fakeDownloader) Download(ctx context.Context, url, dir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return d.err
	}
	if d.noFile {
		return nil
	}
	content := d.content
	if content == nil {
		content = []byte("video bytes")
	}
	return os.WriteFile(filepath.Join(dir, domain.Shortcode(url)+".mp4"), content, 0644)
}

func (d *fakeDownloader) Available(ctx context.Context) error {
	return d.availableErr
}

// fakeArtifacts is an in-memory ArtifactStore.
type fakeArtifacts struct {
	mu          sync.Mutex
	files       map[string][]byte
	uploadErr   error
	downloadErr error
	deleted     []string
	next        int
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{files: make(map[string][]byte)}
}

func (a *fakeArtifacts) UploadFile(ctx context.Context, localPath, name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.uploadErr != nil {
		return "", a.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	a.next++
	id := "drive-" + name
	a.files[id] = data
	return id, nil
}

func (a *fakeArtifacts) DownloadFile(ctx context.Context, id, localPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.downloadErr != nil {
		return a.downloadErr
	}
	data, ok := a.files[id]
	if !ok {
		return errors.New("not found")
	}
	return os.WriteFile(localPath, data, 0644)
}

func (a *fakeArtifacts) DeleteFile(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.files, id)
	a.deleted = append(a.deleted, id)
	return nil
}

// fakePublisher records publish requests.
type fakePublisher struct {
	mu       sync.Mutex
	requests []youtube.PublishRequest
	err      error
	// sawFile records whether the video existed at publish time.
	sawFile bool
	// onPublish runs after a successful publish.
	onPublish func()
}

func (p *fakePublisher) Publish(ctx context.Context, req youtube.PublishRequest) (*youtube.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	_, statErr := os.Stat(req.Path)
	p.sawFile = statErr == nil
	if p.err != nil {
		return nil, p.err
	}
	if p.onPublish != nil {
		p.onPublish()
	}
	return &youtube.PublishResult{ID: "vid1", URL: youtube.WatchURL("vid1")}, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeExtractor struct {
	meta  domain.Metadata
	calls int
}

func (e *fakeExtractor) Extract(ctx context.Context, url string) domain.Metadata {
	e.calls++
	return e.meta
}

// failingExtractor fails the test when called.
type failingExtractor struct{ t *testing.T }

func (e failingExtractor) Extract(ctx context.Context, url string) domain.Metadata {
	e.t.Fatalf("extractor called for %s", url)
	return domain.Metadata{}
}

type testEnv struct {
	dir       string
	dl        *fakeDownloader
	artifacts *fakeArtifacts
	publisher *fakePublisher
	extractor *fakeExtractor
	ledger    *repository.LedgerSelector
	local     *repository.FileLedgerStore
	pipeline  *Pipeline
}

// newTestEnv wires a pipeline over a local ledger. withRemote adds an
// artifact store to both the fetcher and the pipeline.
func newTestEnv(t *testing.T, withRemote bool) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		dir:       filepath.Join(root, "downloads"),
		dl:        &fakeDownloader{},
		publisher: &fakePublisher{},
		extractor: &fakeExtractor{meta: domain.Metadata{Uploader: "alice", Caption: "Sunset"}},
	}
	env.local = repository.NewFileLedgerStore(filepath.Join(root, "downloaded_links.json"), testLogger())
	env.ledger = repository.NewLedgerSelector(nil, env.local, testLogger())

	var store ArtifactStore
	if withRemote {
		env.artifacts = newFakeArtifacts()
		store = env.artifacts
	}
	fetcher := NewFetcher(env.dl, store, env.dir, testLogger())
	env.pipeline = NewPipeline(env.extractor, fetcher, store, env.publisher, env.ledger, testLogger())
	return env
}

func (e *testEnv) entries(t *testing.T) []domain.LedgerEntry {
	t.Helper()
	l, err := e.local.Load(context.Background())
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return l.Links
}
