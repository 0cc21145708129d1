// Package onboarding orchestrates folder assignment when a user completes
// onboarding: score the profile, merge the recommendations into the pinned
// set, and resolve display metadata for the client.
package onboarding

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptdock/internal/folders"
	"github.com/thebtf/promptdock/internal/recommend"
)

// PinStore is the per-user pinned-folder state store.
type PinStore interface {
	// GetPinnedFolderIDs returns the pinned set; empty when the user has no
	// prior state (absence of a record is not an error).
	GetPinnedFolderIDs(ctx context.Context, userID string) ([]int64, error)

	// MergePinnedFolderIDs unions ids into the pinned set atomically, so a
	// concurrent pin from another endpoint cannot be clobbered.
	MergePinnedFolderIDs(ctx context.Context, userID string, ids []int64) error
}

// Catalog resolves folder display rows. IDs missing from the catalog are
// omitted, not errors.
type Catalog interface {
	GetFolderDisplayFields(ctx context.Context, ids []int64) ([]folders.Folder, error)
}

// Answers are the raw onboarding answers before cleaning.
type Answers struct {
	JobType      string
	JobIndustry  string
	JobSeniority string
	Interests    []string
}

// CompletionResult is returned from ProcessCompletion. On failure only
// Success and Message are populated; partial data is never returned.
type CompletionResult struct {
	Success          bool                   `json:"success"`
	NewFolders       []int64                `json:"new_folders"`
	TotalRecommended []int64                `json:"total_recommended"`
	TotalPinned      []int64                `json:"total_pinned"`
	FolderDetails    []folders.Detail       `json:"folder_details"`
	Explanation      *recommend.Explanation `json:"explanation,omitempty"`
	Message          string                 `json:"message"`
}

// PreviewResult is returned from Preview.
type PreviewResult struct {
	Success              bool                   `json:"success"`
	RecommendedFolderIDs []int64                `json:"recommended_folder_ids"`
	FolderDetails        []folders.Detail       `json:"folder_details"`
	Explanation          *recommend.Explanation `json:"explanation,omitempty"`
	TotalCount           int                    `json:"total_count"`
	Message              string                 `json:"message,omitempty"`
}

// Service runs the assignment and preview flows.
type Service struct {
	engine  *recommend.Engine
	pins    PinStore
	catalog Catalog

	// Per-user serialization for the read-merge-write over pinned state.
	// Concurrent completions for the same user must not interleave. Entries
	// are reference-counted and dropped once uncontended, so the map stays
	// bounded by the number of in-flight completions.
	locksMu sync.Mutex
	locks   map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a new onboarding service.
func NewService(engine *recommend.Engine, pins PinStore, catalog Catalog) *Service {
	return &Service{
		engine:  engine,
		pins:    pins,
		catalog: catalog,
		locks:   make(map[string]*userLock),
	}
}

// lockUser acquires the mutex serializing updates for userID.
func (s *Service) lockUser(userID string) *userLock {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return l
}

// unlockUser releases the mutex and drops the map entry when no other
// completion is waiting on it.
func (s *Service) unlockUser(userID string, l *userLock) {
	l.mu.Unlock()

	s.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, userID)
	}
	s.locksMu.Unlock()
}

// ProcessCompletion assigns recommended folders after onboarding completes:
// clean the answers, score them, union the recommendations into the user's
// pinned set, persist, and resolve display details. Any storage failure
// yields a failure result with nothing persisted.
func (s *Service) ProcessCompletion(ctx context.Context, userID string, a Answers, loc string) CompletionResult {
	profile := recommend.CleanProfile(recommend.Profile{
		JobType:      a.JobType,
		JobIndustry:  a.JobIndustry,
		JobSeniority: a.JobSeniority,
		Interests:    a.Interests,
	})

	recommended := s.engine.Recommend(profile)

	l := s.lockUser(userID)
	current, err := s.pins.GetPinnedFolderIDs(ctx, userID)
	if err != nil {
		s.unlockUser(userID, l)
		log.Error().Err(err).Str("user", userID).Msg("Failed to read pinned folders")
		return completionFailure()
	}

	if err := s.pins.MergePinnedFolderIDs(ctx, userID, recommended); err != nil {
		s.unlockUser(userID, l)
		log.Error().Err(err).Str("user", userID).Msg("Failed to persist pinned folders")
		return completionFailure()
	}
	s.unlockUser(userID, l)

	updated := union(current, recommended)

	details, err := s.resolveDetails(ctx, updated, loc)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to resolve folder details")
		return completionFailure()
	}

	before := make(map[int64]bool, len(current))
	for _, id := range current {
		before[id] = true
	}
	newFolders := make([]int64, 0, len(recommended))
	for _, id := range recommended {
		if !before[id] {
			newFolders = append(newFolders, id)
		}
	}

	explanation := s.engine.Explain(profile)

	log.Info().
		Str("user", userID).
		Int("new_folders", len(newFolders)).
		Int("total_pinned", len(updated)).
		Msg("Processed onboarding folder assignment")

	return CompletionResult{
		Success:          true,
		NewFolders:       newFolders,
		TotalRecommended: recommended,
		TotalPinned:      updated,
		FolderDetails:    details,
		Explanation:      &explanation,
		Message:          fmt.Sprintf("Added %d personalized folders based on your profile", len(newFolders)),
	}
}

// Preview computes recommendations without touching pinned state. Safe to
// call arbitrarily often.
func (s *Service) Preview(ctx context.Context, a Answers, loc string) PreviewResult {
	profile := recommend.CleanProfile(recommend.Profile{
		JobType:      a.JobType,
		JobIndustry:  a.JobIndustry,
		JobSeniority: a.JobSeniority,
		Interests:    a.Interests,
	})

	recommended := s.engine.Recommend(profile)

	details, err := s.resolveDetails(ctx, recommended, loc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve preview folder details")
		return PreviewResult{
			Success: false,
			Message: "Failed to generate recommendations preview",
		}
	}

	explanation := s.engine.Explain(profile)

	return PreviewResult{
		Success:              true,
		RecommendedFolderIDs: recommended,
		FolderDetails:        details,
		Explanation:          &explanation,
		TotalCount:           len(recommended),
	}
}

// resolveDetails fetches and localizes display rows for ids, preserving the
// order of ids. IDs missing from the catalog are skipped.
func (s *Service) resolveDetails(ctx context.Context, ids []int64, loc string) ([]folders.Detail, error) {
	rows, err := s.catalog.GetFolderDisplayFields(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]folders.Folder, len(rows))
	for _, f := range rows {
		byID[f.ID] = f
	}

	details := make([]folders.Detail, 0, len(rows))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			details = append(details, folders.DetailFor(f, loc))
		}
	}
	return details, nil
}

// union merges two ID lists into a sorted deduplicated set.
func union(a, b []int64) []int64 {
	seen := make(map[int64]bool, len(a)+len(b))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		seen[id] = true
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func completionFailure() CompletionResult {
	return CompletionResult{
		Success: false,
		Message: "Failed to process onboarding recommendations",
	}
}
