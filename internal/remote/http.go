package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/nocturne-journal/nocturne/internal/common"
	"github.com/nocturne-journal/nocturne/internal/identity"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/models"
)

// HTTPClient implements Backend against the Nocturne HTTP API.
//
// Transient failures (transport errors, 5xx) are retried with exponential
// backoff. An expired access token is refreshed once per request using the
// session's refresh token, then the request is replayed.
type HTTPClient struct {
	base    string
	hc      *http.Client
	session *identity.Session
	log     logging.Logger
}

func NewHTTPClient(base string, timeout time.Duration, session *identity.Session, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: timeout},
		session: session,
		log:     log,
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil, nil)
}

func (c *HTTPClient) CreateEntry(ctx context.Context, entry models.JournalEntry, ownerID string) (models.JournalEntry, error) {
	req := struct {
		OwnerID string              `json:"ownerId"`
		Entry   models.JournalEntry `json:"entry"`
	}{OwnerID: ownerID, Entry: entry}

	headers := map[string]string{common.ClientRequestIDHeader: entry.ClientRequestID}

	var out models.JournalEntry
	if err := c.do(ctx, http.MethodPost, "/api/v1/entries", headers, req, &out); err != nil {
		return models.JournalEntry{}, err
	}
	return out, nil
}

func (c *HTTPClient) UpdateEntry(ctx context.Context, entry models.JournalEntry) (models.JournalEntry, error) {
	if entry.RemoteID == nil {
		return models.JournalEntry{}, common.ErrMissingRemoteID
	}
	var out models.JournalEntry
	path := fmt.Sprintf("/api/v1/entries/%d", *entry.RemoteID)
	if err := c.do(ctx, http.MethodPut, path, nil, entry, &out); err != nil {
		return models.JournalEntry{}, err
	}
	return out, nil
}

func (c *HTTPClient) DeleteEntry(ctx context.Context, remoteID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/entries/%d", remoteID), nil, nil, nil)
}

func (c *HTTPClient) FetchEntries(ctx context.Context, ownerID string) ([]models.JournalEntry, error) {
	var out []models.JournalEntry
	path := "/api/v1/entries?owner=" + url.QueryEscape(ownerID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AnalyzeText(ctx context.Context, req AnalyzeTextRequest) (AnalyzeTextResult, error) {
	var out AnalyzeTextResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/analysis/text", nil, req, &out); err != nil {
		return AnalyzeTextResult{}, err
	}
	return out, nil
}

func (c *HTTPClient) GenerateImage(ctx context.Context, req GenerateImageRequest) (string, error) {
	var out struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/analysis/image", nil, req, &out); err != nil {
		return "", err
	}
	return out.ImageURL, nil
}

func (c *HTTPClient) QuotaStatus(ctx context.Context, ownerID string) (QuotaStatus, error) {
	var out QuotaStatus
	path := "/api/v1/quota?owner=" + url.QueryEscape(ownerID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return QuotaStatus{}, err
	}
	return out, nil
}

func (c *HTTPClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	var out struct {
		Salt []byte `json:"salt"`
	}
	path := "/api/v1/auth/salt?username=" + url.QueryEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Salt, nil
}

func (c *HTTPClient) Login(ctx context.Context, username string, verifier []byte) (TokenPair, error) {
	req := struct {
		Username string `json:"username"`
		Verifier []byte `json:"verifier"`
	}{Username: username, Verifier: verifier}

	var out TokenPair
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", nil, req, &out); err != nil {
		return TokenPair{}, err
	}
	return out, nil
}

// do runs one API call with backoff on transient failures. All Nocturne
// API writes are idempotent (creates by client request id, updates by
// last-writer-wins), so replaying is safe.
func (c *HTTPClient) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, path, headers, in, out, true)
		if errors.Is(err, ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, headers map[string]string, in, out any, allowRefresh bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	if access, _ := c.session.Tokens(); access != "" {
		req.Header.Set(common.AuthorizationHeader, "Bearer "+access)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		_, refresh := c.session.Tokens()
		if allowRefresh && refresh != "" {
			if err := c.refreshTokens(ctx, refresh); err != nil {
				return fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
			}
			return c.doOnce(ctx, method, path, headers, in, out, false)
		}
		return common.ErrUnauthorized

	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound

	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)

	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", common.ErrRemoteOperation, resp.Status, string(msg))
	}
}

// refreshTokens trades the refresh token for a fresh pair and installs it
// on the session.
func (c *HTTPClient) refreshTokens(ctx context.Context, refresh string) error {
	req := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refresh}

	b, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/auth/refresh", bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.ErrTokenExpired
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return err
	}
	return c.session.SetTokens(ctx, pair.AccessToken, pair.RefreshToken)
}
