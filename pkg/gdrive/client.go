// Package gdrive stores the link ledger document and media artifacts in
// Google Drive.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/iconidentify/reelrelay/internal/domain"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	jsonMimeType   = "application/json"
)

// Scopes required by the client.
var Scopes = []string{drive.DriveFileScope}

// TokenSourcer supplies OAuth tokens.
type TokenSourcer interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// Config names the singleton document and folder.
type Config struct {
	DocumentName string
	FolderName   string
}

// Client is a lazily authenticated Drive client. The service handle is
// cached after the first successful construction; failed attempts are
// retried on the next call.
type Client struct {
	cfg    Config
	creds  TokenSourcer
	opts   []option.ClientOption
	logger *slog.Logger

	mu       sync.Mutex
	svc      *drive.Service
	docID    string
	folderID string
}

// NewClient creates a client. creds may be nil when opts carry their own
// authentication.
func NewClient(cfg Config, creds TokenSourcer, logger *slog.Logger, opts ...option.ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		creds:  creds,
		opts:   opts,
		logger: logger,
	}
}

func (c *Client) service(ctx context.Context) (*drive.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc != nil {
		return c.svc, nil
	}

	// The handle outlives the request that created it.
	base := context.WithoutCancel(ctx)

	var opts []option.ClientOption
	if c.creds != nil {
		ts, err := c.creds.TokenSource(base)
		if err != nil {
			return nil, fmt.Errorf("%w: authenticate: %w", domain.ErrRemoteStore, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	opts = append(opts, c.opts...)

	svc, err := drive.NewService(base, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create drive service: %w", domain.ErrRemoteStore, err)
	}
	c.svc = svc
	return svc, nil
}

// findFile returns the id of the first non-trashed file called name,
// optionally restricted to mimeType. An empty id means not found.
func (c *Client) findFile(ctx context.Context, svc *drive.Service, name, mimeType string) (string, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if mimeType != "" {
		q += fmt.Sprintf(" and mimeType = '%s'", mimeType)
	}

	list, err := svc.Files.List().
		Q(q).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("%w: list files: %w", domain.ErrRemoteStore, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (c *Client) documentID(ctx context.Context, svc *drive.Service) (string, error) {
	c.mu.Lock()
	id := c.docID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	id, err := c.findFile(ctx, svc, c.cfg.DocumentName, "")
	if err != nil || id == "" {
		return id, err
	}
	c.mu.Lock()
	c.docID = id
	c.mu.Unlock()
	return id, nil
}

// ReadDocument downloads the ledger document. found is false when the
// document has not been created yet.
func (c *Client) ReadDocument(ctx context.Context) ([]byte, bool, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, false, err
	}

	id, err := c.documentID(ctx, svc)
	if err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, nil
	}

	resp, err := svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			c.forgetDocument()
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: download document: %w", domain.ErrRemoteStore, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read document: %w", domain.ErrRemoteStore, err)
	}
	return data, true, nil
}

// WriteDocument creates the ledger document or replaces its content.
func (c *Client) WriteDocument(ctx context.Context, data []byte) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	id, err := c.documentID(ctx, svc)
	if err != nil {
		return err
	}

	if id != "" {
		_, err = svc.Files.Update(id, &drive.File{}).
			Media(bytes.NewReader(data), googleapi.ContentType(jsonMimeType)).
			Context(ctx).
			Do()
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("%w: update document: %w", domain.ErrRemoteStore, err)
		}
		c.forgetDocument()
	}

	created, err := svc.Files.Create(&drive.File{
		Name:     c.cfg.DocumentName,
		MimeType: jsonMimeType,
	}).
		Media(bytes.NewReader(data), googleapi.ContentType(jsonMimeType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: create document: %w", domain.ErrRemoteStore, err)
	}

	c.mu.Lock()
	c.docID = created.Id
	c.mu.Unlock()
	c.logger.Info("created ledger document", "name", c.cfg.DocumentName, "id", created.Id)
	return nil
}

// EnsureFolder returns the artifact folder id, creating the folder if it
// does not exist.
func (c *Client) EnsureFolder(ctx context.Context) (string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	id := c.folderID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	id, err = c.findFile(ctx, svc, c.cfg.FolderName, folderMimeType)
	if err != nil {
		return "", err
	}
	if id == "" {
		folder, err := svc.Files.Create(&drive.File{
			Name:     c.cfg.FolderName,
			MimeType: folderMimeType,
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("%w: create folder: %w", domain.ErrRemoteStore, err)
		}
		id = folder.Id
		c.logger.Info("created drive folder", "name", c.cfg.FolderName, "id", id)
	}

	c.mu.Lock()
	c.folderID = id
	c.mu.Unlock()
	return id, nil
}

// UploadFile uploads localPath into the artifact folder as name and
// returns the remote file id.
func (c *Client) UploadFile(ctx context.Context, localPath, name string) (string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return "", err
	}
	folderID, err := c.EnsureFolder(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	if name == "" {
		name = filepath.Base(localPath)
	}
	mimeType := DetectMIME(localPath)

	created, err := svc.Files.Create(&drive.File{
		Name:     name,
		Parents:  []string{folderID},
		MimeType: mimeType,
	}).
		Media(f, googleapi.ContentType(mimeType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("%w: upload file: %w", domain.ErrRemoteStore, err)
	}

	c.logger.Info("uploaded file to drive", "name", name, "id", created.Id, "mime", mimeType)
	return created.Id, nil
}

// DownloadFile writes the content of remote file id to localPath.
func (c *Client) DownloadFile(ctx context.Context, id, localPath string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	resp, err := svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("%w: download file: %w", domain.ErrRemoteStore, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}

	_, err = io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(localPath)
		return fmt.Errorf("%w: write local file: %w", domain.ErrRemoteStore, err)
	}
	return nil
}

// DeleteFile removes remote file id.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}
	if err := svc.Files.Delete(id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: delete file: %w", domain.ErrRemoteStore, err)
	}
	return nil
}

// SetupResult describes the remote layout found by Setup.
type SetupResult struct {
	DocumentID string
	FolderID   string
	Entries    int
}

// Setup authenticates and locates the ledger document and artifact folder.
func (c *Client) Setup(ctx context.Context) (*SetupResult, error) {
	folderID, err := c.EnsureFolder(ctx)
	if err != nil {
		return nil, err
	}

	data, found, err := c.ReadDocument(ctx)
	if err != nil {
		return nil, err
	}

	res := &SetupResult{FolderID: folderID}
	if found {
		c.mu.Lock()
		res.DocumentID = c.docID
		c.mu.Unlock()
		if ledger, err := domain.ParseLedger(data); err == nil {
			res.Entries = ledger.Count
		} else {
			c.logger.Warn("ledger document is not valid JSON", "error", err)
		}
	}

	c.logger.Info("drive ready",
		"document", c.cfg.DocumentName,
		"document_id", res.DocumentID,
		"folder", c.cfg.FolderName,
		"folder_id", res.FolderID,
		"entries", res.Entries,
	)
	return res, nil
}

func (c *Client) forgetDocument() {
	c.mu.Lock()
	c.docID = ""
	c.mu.Unlock()
}

// DetectMIME sniffs the content type of the file at path.
func DetectMIME(path string) string {
	kind, err := filetype.MatchFile(path)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
