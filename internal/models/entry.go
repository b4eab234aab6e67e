// Package models defines the journal entry and deferred mutation types
// shared by the store, the sync engine and the remote client.
package models

import "time"

// AnalysisStatus tracks the per-entry analysis state machine:
// none -> pending -> done | failed. A fresh Analyze call is the only way
// back into pending.
type AnalysisStatus string

const (
	AnalysisNone    AnalysisStatus = "none"
	AnalysisPending AnalysisStatus = "pending"
	AnalysisDone    AnalysisStatus = "done"
	AnalysisFailed  AnalysisStatus = "failed"
)

// ImageSource records where the entry's image came from.
type ImageSource string

const (
	ImageSourceGenerated ImageSource = "generated"
	ImageSourceUser      ImageSource = "user"
)

// JournalEntry is a dream-journal entry as held by the local store and
// exchanged with the backend.
//
// LocalID is the device-generated primary key and never changes. RemoteID is
// assigned by the backend once a create is confirmed and is immutable
// afterwards. ClientRequestID is the idempotency token reused across retries
// of the same create so the backend can deduplicate.
type JournalEntry struct {
	LocalID         int64  `json:"localId"`
	RemoteID        *int64 `json:"remoteId,omitempty"`
	ClientRequestID string `json:"clientRequestId,omitempty"`

	Transcript     string `json:"transcript"`
	Title          string `json:"title,omitempty"`
	Interpretation string `json:"interpretation,omitempty"`
	ShareableQuote string `json:"shareableQuote,omitempty"`
	Theme          string `json:"theme,omitempty"`
	DreamType      string `json:"dreamType,omitempty"`

	ImageURL              string      `json:"imageUrl,omitempty"`
	ThumbnailURL          string      `json:"thumbnailUrl,omitempty"`
	ImageSource           ImageSource `json:"imageSource,omitempty"`
	ImageUpdatedAt        *time.Time  `json:"imageUpdatedAt,omitempty"`
	ImageGenerationFailed bool        `json:"imageGenerationFailed,omitempty"`

	IsFavorite bool `json:"isFavorite"`

	IsAnalyzed        bool           `json:"isAnalyzed,omitempty"`
	AnalysisStatus    AnalysisStatus `json:"analysisStatus,omitempty"`
	AnalysisRequestID string         `json:"analysisRequestId,omitempty"`
	AnalyzedAt        *time.Time     `json:"analyzedAt,omitempty"`

	// PendingSync is set while the entry's last known state has not been
	// confirmed by the backend.
	PendingSync bool `json:"pendingSync,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRemoteID reports whether the backend has confirmed this entry's create.
func (e *JournalEntry) HasRemoteID() bool {
	return e.RemoteID != nil
}

// Clone returns a deep copy safe to hand out across goroutines.
func (e JournalEntry) Clone() JournalEntry {
	out := e
	if e.RemoteID != nil {
		v := *e.RemoteID
		out.RemoteID = &v
	}
	if e.ImageUpdatedAt != nil {
		v := *e.ImageUpdatedAt
		out.ImageUpdatedAt = &v
	}
	if e.AnalyzedAt != nil {
		v := *e.AnalyzedAt
		out.AnalyzedAt = &v
	}
	return out
}
