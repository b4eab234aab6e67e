// Package analysis coordinates the per-entry analysis workflow: a quota
// check, a text-analysis call and a best-effort image generation, with the
// results written back through the entry store like any other update.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nocturne-journal/nocturne/internal/common"
	"github.com/nocturne-journal/nocturne/internal/identity"
	"github.com/nocturne-journal/nocturne/internal/journal"
	"github.com/nocturne-journal/nocturne/internal/logging"
	"github.com/nocturne-journal/nocturne/internal/models"
	"github.com/nocturne-journal/nocturne/internal/quota"
	"github.com/nocturne-journal/nocturne/internal/remote"
)

// TextAnalyzer is the primary generation provider. Its failure fails the
// whole analysis.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, req remote.AnalyzeTextRequest) (remote.AnalyzeTextResult, error)
}

// ImageGenerator is the secondary provider. Its failure is absorbed into a
// soft flag on the entry and never propagates.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req remote.GenerateImageRequest) (string, error)
}

// Options controls one Analyze call.
type Options struct {
	// ReplaceImage requests a fresh dream image alongside the text
	// analysis. Off means the existing image is kept untouched.
	ReplaceImage bool
	// Language hints the analysis output language.
	Language string
}

// DefaultOptions analyzes text and regenerates the image.
func DefaultOptions() Options {
	return Options{ReplaceImage: true}
}

// softImage is the caught outcome of image generation: either a URL or a
// failure flag, never an error.
type softImage struct {
	url    string
	failed bool
}

// Orchestrator runs the none -> pending -> done|failed state machine for
// one entry at a time.
type Orchestrator struct {
	store   *journal.Store
	gate    *quota.Gate
	text    TextAnalyzer
	image   ImageGenerator
	session *identity.Session
	log     logging.Logger
}

func NewOrchestrator(store *journal.Store, gate *quota.Gate, text TextAnalyzer, image ImageGenerator, session *identity.Session, log logging.Logger) *Orchestrator {
	return &Orchestrator{store: store, gate: gate, text: text, image: image, session: session, log: log}
}

// Analyze runs the full workflow for the entry identified by localID.
//
// The quota gate is consulted before anything is mutated: a denial returns
// *quota.QuotaExceededError with the entry untouched. A text-analysis
// failure marks the entry failed and returns the error so the UI can offer
// a retry. Image failure only ever sets the soft ImageGenerationFailed
// flag.
func (o *Orchestrator) Analyze(ctx context.Context, localID int64, opts Options) (models.JournalEntry, error) {
	entry, ok := o.store.Snapshot(localID)
	if !ok {
		return models.JournalEntry{}, fmt.Errorf("entry %d: %w", localID, common.ErrNotFound)
	}

	if err := o.gate.CanAnalyze(ctx); err != nil {
		return models.JournalEntry{}, err
	}

	requestID := uuid.NewString()
	pending := entry.Clone()
	pending.AnalysisStatus = models.AnalysisPending
	pending.AnalysisRequestID = requestID
	if _, err := o.store.Update(ctx, pending); err != nil {
		return models.JournalEntry{}, err
	}

	ident := o.session.Current()

	textReq := remote.AnalyzeTextRequest{
		RequestID:  requestID,
		Transcript: entry.Transcript,
		Language:   opts.Language,
	}
	if ident.Guest() {
		textReq.Fingerprint = ident.Fingerprint
	}

	var (
		result remote.AnalyzeTextResult
		img    = softImage{url: entry.ImageURL}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = o.text.AnalyzeText(gctx, textReq)
		return err
	})
	if opts.ReplaceImage {
		g.Go(func() error {
			url, err := o.image.GenerateImage(gctx, remote.GenerateImageRequest{
				RequestID:        requestID,
				Transcript:       entry.Transcript,
				PreviousImageURL: entry.ImageURL,
			})
			if err != nil {
				o.log.Warn(gctx, "image generation failed", "localId", localID, "error", err)
				img = softImage{url: entry.ImageURL, failed: true}
				return nil
			}
			img = softImage{url: url}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.markFailed(ctx, localID, requestID)
		return models.JournalEntry{}, fmt.Errorf("analyzing entry %d: %w", localID, err)
	}

	merged := o.merge(localID, requestID, result, img, opts)
	updated, err := o.store.Update(ctx, merged)
	if err != nil {
		return models.JournalEntry{}, err
	}

	if ident.Guest() {
		if err := o.gate.RecordGuestAnalysis(ctx, result.QuotaUsed); err != nil {
			o.log.Warn(ctx, "recording guest analysis failed", "error", err)
		}
	}
	o.gate.Invalidate()

	return updated, nil
}

// merge folds the analysis artifacts into the freshest entry state. The
// snapshot is re-read here: the entry may have been edited while the
// providers were running, and those edits must not be clobbered.
func (o *Orchestrator) merge(localID int64, requestID string, result remote.AnalyzeTextResult, img softImage, opts Options) models.JournalEntry {
	latest, ok := o.store.Snapshot(localID)
	if !ok {
		// Deleted mid-analysis; the update below will then be a no-op.
		latest = models.JournalEntry{LocalID: localID}
	}

	merged := latest.Clone()
	merged.Title = result.Title
	merged.Interpretation = result.Interpretation
	merged.ShareableQuote = result.ShareableQuote
	merged.Theme = result.Theme
	merged.DreamType = result.DreamType

	if opts.ReplaceImage {
		switch {
		case img.failed:
			// The soft flag is only raised when an image was expected and
			// there is nothing older to fall back to.
			if latest.ImageURL == "" {
				merged.ImageGenerationFailed = true
			}
		case img.url != "" && img.url != latest.ImageURL:
			now := time.Now().UTC()
			merged.ImageURL = img.url
			merged.ImageSource = models.ImageSourceGenerated
			merged.ImageUpdatedAt = &now
			merged.ImageGenerationFailed = false
		}
	}

	now := time.Now().UTC()
	merged.AnalysisStatus = models.AnalysisDone
	merged.AnalysisRequestID = requestID
	merged.AnalyzedAt = &now
	merged.IsAnalyzed = true
	return merged
}

// markFailed records the failed state so the UI can show a retry
// affordance. A failure to record it is logged, not returned: the original
// analysis error is the one the caller needs.
func (o *Orchestrator) markFailed(ctx context.Context, localID int64, requestID string) {
	latest, ok := o.store.Snapshot(localID)
	if !ok {
		return
	}
	failed := latest.Clone()
	failed.AnalysisStatus = models.AnalysisFailed
	failed.AnalysisRequestID = requestID
	if _, err := o.store.Update(ctx, failed); err != nil {
		o.log.Error(ctx, "recording failed analysis state", "localId", localID, "error", err)
	}
}
