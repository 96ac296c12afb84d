// Package gauth manages Google OAuth2 credentials for installed-app flows:
// client secrets, a cached token file and interactive consent.
package gauth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/iconidentify/reelrelay/internal/domain"
	"github.com/iconidentify/reelrelay/pkg/crypto"
)

// Config configures an Authenticator.
type Config struct {
	// ClientSecretsPath is the OAuth client descriptor downloaded from the
	// Google Cloud console.
	ClientSecretsPath string

	// TokenPath is the cached token file.
	TokenPath string

	// Passphrase seals the token file when non-empty.
	Passphrase string

	Scopes []string
}

// Authenticator loads, refreshes and persists one OAuth token.
type Authenticator struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	oauth *oauth2.Config
}

// New creates an Authenticator.
func New(cfg Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{cfg: cfg, logger: logger}
}

// OAuthConfig parses the client secrets file once.
func (a *Authenticator) OAuthConfig() (*oauth2.Config, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.oauth != nil {
		return a.oauth, nil
	}

	data, err := os.ReadFile(a.cfg.ClientSecretsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, a.cfg.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	a.oauth = conf
	return conf, nil
}

// HasToken reports whether a cached token file exists.
func (a *Authenticator) HasToken() bool {
	_, err := os.Stat(a.cfg.TokenPath)
	return err == nil
}

// LoadToken reads the cached token. A missing cache returns
// domain.ErrConsentRequired.
func (a *Authenticator) LoadToken() (*oauth2.Token, error) {
	data, err := crypto.ReadFile(a.cfg.TokenPath, a.cfg.Passphrase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrConsentRequired
		}
		return nil, fmt.Errorf("read token cache: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	return &tok, nil
}

// SaveToken writes the token cache with owner-only permissions.
func (a *Authenticator) SaveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := crypto.WriteFile(a.cfg.TokenPath, data, a.cfg.Passphrase); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

// TokenSource returns a source that refreshes the cached token as needed
// and writes refreshed tokens back to the cache.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := a.OAuthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := a.LoadToken()
	if err != nil {
		return nil, err
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: cached token expired and has no refresh token", domain.ErrConsentRequired)
	}

	return oauth2.ReuseTokenSource(tok, &persistingSource{
		base:   conf.TokenSource(ctx, tok),
		last:   tok.AccessToken,
		save:   a.SaveToken,
		logger: a.logger,
	}), nil
}

// Authorize runs the consent flow: it prints the consent URL to out, reads
// the authorization code (or the full redirect URL) from in, exchanges it
// and caches the resulting token.
func (a *Authenticator) Authorize(ctx context.Context, in io.Reader, out io.Writer) error {
	conf, err := a.OAuthConfig()
	if err != nil {
		return err
	}

	state := uuid.NewString()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))

	fmt.Fprintf(out, "Open the following URL in your browser and grant access:\n\n%s\n\n", authURL)
	fmt.Fprint(out, "Paste the authorization code or the full redirect URL: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read authorization code: %w", err)
		}
		return fmt.Errorf("read authorization code: %w", io.ErrUnexpectedEOF)
	}

	code, err := extractCode(scanner.Text(), state)
	if err != nil {
		return err
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := a.SaveToken(tok); err != nil {
		return err
	}

	a.logger.Info("oauth token cached", "path", a.cfg.TokenPath)
	return nil
}

// extractCode accepts either a bare code or a redirect URL carrying code
// and state query parameters.
func extractCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", errors.New("state mismatch in redirect URL")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}

// persistingSource saves each newly issued token.
type persistingSource struct {
	base   oauth2.TokenSource
	save   func(*oauth2.Token) error
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.save(tok); err != nil {
			p.logger.Warn("persist refreshed token", "error", err)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
