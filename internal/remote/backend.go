// Package remote defines the backend contract consumed by the sync engine
// and the analysis orchestrator, and implements it over HTTP/JSON.
package remote

import (
	"context"
	"errors"

	"github.com/nocturne-journal/nocturne/internal/models"
)

var (
	// ErrUnavailable marks transient transport or server failures. Callers
	// treat it as "queue and retry later".
	ErrUnavailable = errors.New("server unavailable")
)

// TokenPair is the access/refresh token pair issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AnalyzeTextRequest asks the backend to analyze one transcript.
// RequestID is the per-attempt idempotency token; Fingerprint is set for
// guest identities so the backend can meter them.
type AnalyzeTextRequest struct {
	RequestID   string `json:"requestId"`
	Transcript  string `json:"transcript"`
	Language    string `json:"language,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// AnalyzeTextResult is the primary analysis artifact.
type AnalyzeTextResult struct {
	Title          string `json:"title"`
	Interpretation string `json:"interpretation"`
	ShareableQuote string `json:"shareableQuote"`
	Theme          string `json:"theme"`
	DreamType      string `json:"dreamType"`

	// QuotaUsed, when present, is the server's count of analyses consumed
	// by this identity. Guests reconcile their local counter against it.
	QuotaUsed *int `json:"quotaUsed,omitempty"`
}

// GenerateImageRequest asks for a dream image. PreviousImageURL lets the
// generator reuse or vary the prior image.
type GenerateImageRequest struct {
	RequestID        string `json:"requestId"`
	Transcript       string `json:"transcript"`
	PreviousImageURL string `json:"previousImageUrl,omitempty"`
}

// QuotaStatus is the backend's view of this identity's allowances.
type QuotaStatus struct {
	CanAnalyze bool `json:"canAnalyze"`
	CanExplore bool `json:"canExplore"`

	AnalysisUsed     int `json:"analysisUsed"`
	AnalysisLimit    int `json:"analysisLimit"`
	ExplorationUsed  int `json:"explorationUsed"`
	ExplorationLimit int `json:"explorationLimit"`
	MessagesUsed     int `json:"messagesUsed"`
	MessagesLimit    int `json:"messagesLimit"`
}

// Backend is everything the client consumes from the server side: per-entry
// CRUD, the generation providers and the quota/auth services. Tests swap in
// fakes; production uses the HTTP client in this package.
type Backend interface {
	Ping(ctx context.Context) error

	// CreateEntry must honor the entry's ClientRequestID for deduplication
	// and returns the authoritative server copy carrying the RemoteID.
	CreateEntry(ctx context.Context, entry models.JournalEntry, ownerID string) (models.JournalEntry, error)

	// UpdateEntry requires entry.RemoteID and returns the server copy.
	UpdateEntry(ctx context.Context, entry models.JournalEntry) (models.JournalEntry, error)

	// DeleteEntry removes the remote record.
	DeleteEntry(ctx context.Context, remoteID int64) error

	// FetchEntries returns all entries owned by ownerID.
	FetchEntries(ctx context.Context, ownerID string) ([]models.JournalEntry, error)

	AnalyzeText(ctx context.Context, req AnalyzeTextRequest) (AnalyzeTextResult, error)
	GenerateImage(ctx context.Context, req GenerateImageRequest) (string, error)

	QuotaStatus(ctx context.Context, ownerID string) (QuotaStatus, error)

	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (TokenPair, error)
}
