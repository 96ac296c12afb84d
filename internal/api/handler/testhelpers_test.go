package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/iconidentify/reelrelay/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockPipeline is a test implementation of Pipeline.
type mockPipeline struct {
	relayResult *service.RelayResult
	relayErr    error
	batch       *service.BatchResult
	batchErr    error
	check       *service.CheckResult
	checkErr    error
	stats       *service.StatsResult
	statsErr    error

	relayURLs  []string
	batchInput string
	checkURL   string
}

func (m *mockPipeline) Relay(ctx context.Context, url string) (*service.RelayResult, error) {
	m.relayURLs = append(m.relayURLs, url)
	if m.relayErr != nil {
		return nil, m.relayErr
	}
	return m.relayResult, nil
}

func (m *mockPipeline) FetchBatch(ctx context.Context, input string) (*service.BatchResult, error) {
	m.batchInput = input
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	return m.batch, nil
}

func (m *mockPipeline) Check(ctx context.Context, url string) (*service.CheckResult, error) {
	m.checkURL = url
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.check, nil
}

func (m *mockPipeline) Stats(ctx context.Context) (*service.StatsResult, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

// mockTool is a test implementation of ToolChecker.
type mockTool struct {
	version string
	missing bool
}

func (m mockTool) Version(ctx context.Context) (string, error) {
	if m.missing {
		return "", errors.New("yt-dlp is not installed")
	}
	return m.version, nil
}
