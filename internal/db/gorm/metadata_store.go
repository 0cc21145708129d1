package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetadataStore provides access to per-user metadata: the pinned-folder set
// and stored onboarding answers.
type MetadataStore struct {
	store *Store
}

// NewMetadataStore creates a new MetadataStore.
func NewMetadataStore(store *Store) *MetadataStore {
	return &MetadataStore{store: store}
}

// GetPinnedFolderIDs returns the user's pinned folder IDs. A missing
// metadata row is not an error; it means the user has no pins yet.
func (s *MetadataStore) GetPinnedFolderIDs(ctx context.Context, userID string) ([]int64, error) {
	var meta UserMetadata
	err := s.store.DB.WithContext(ctx).
		Select("user_id", "pinned_folder_ids").
		Where("user_id = ?", userID).
		First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pinned folders: %w", err)
	}

	if meta.PinnedFolderIDs == nil {
		return []int64{}, nil
	}
	return meta.PinnedFolderIDs, nil
}

// MergePinnedFolderIDs unions ids into the user's pinned set in a single
// statement. Unlike read-then-write, concurrent merges cannot clobber each
// other's contributions.
func (s *MetadataStore) MergePinnedFolderIDs(ctx context.Context, userID string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	incoming, err := Int64Array(ids).Value()
	if err != nil {
		return fmt.Errorf("merge pinned folders: %w", err)
	}

	err = s.store.DB.WithContext(ctx).Exec(`
		INSERT INTO users_metadata (user_id, pinned_folder_ids, updated_at_epoch)
		VALUES (?, ?::jsonb, (EXTRACT(EPOCH FROM now()) * 1000)::bigint)
		ON CONFLICT (user_id) DO UPDATE SET
			pinned_folder_ids = (
				SELECT COALESCE(jsonb_agg(DISTINCT elem ORDER BY elem), '[]'::jsonb)
				FROM (
					SELECT jsonb_array_elements(COALESCE(users_metadata.pinned_folder_ids, '[]'::jsonb)) AS elem
					UNION ALL
					SELECT jsonb_array_elements(excluded.pinned_folder_ids)
				) merged
			),
			updated_at_epoch = (EXTRACT(EPOCH FROM now()) * 1000)::bigint
	`, userID, incoming).Error
	if err != nil {
		return fmt.Errorf("merge pinned folders: %w", err)
	}
	return nil
}

// RemovePinnedFolderID removes a single folder from the user's pinned set in
// a single statement, so a merge landing concurrently keeps its other
// elements. Removing an ID that isn't pinned, or unpinning for a user with
// no metadata row, is a no-op.
func (s *MetadataStore) RemovePinnedFolderID(ctx context.Context, userID string, folderID int64) error {
	err := s.store.DB.WithContext(ctx).Exec(`
		UPDATE users_metadata SET
			pinned_folder_ids = (
				SELECT COALESCE(jsonb_agg(elem ORDER BY elem), '[]'::jsonb)
				FROM jsonb_array_elements(COALESCE(users_metadata.pinned_folder_ids, '[]'::jsonb)) AS elem
				WHERE elem <> to_jsonb(?::bigint)
			),
			updated_at_epoch = (EXTRACT(EPOCH FROM now()) * 1000)::bigint
		WHERE user_id = ?
	`, folderID, userID).Error
	if err != nil {
		return fmt.Errorf("remove pinned folder: %w", err)
	}
	return nil
}

// OnboardingAnswers are the cleaned profile fields persisted after
// onboarding completes. Empty fields are left untouched.
type OnboardingAnswers struct {
	JobType      string   `json:"job_type,omitempty"`
	JobIndustry  string   `json:"job_industry,omitempty"`
	JobSeniority string   `json:"job_seniority,omitempty"`
	SignupSource string   `json:"signup_source,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}

// SaveOnboardingAnswers upserts the user's onboarding answers.
func (s *MetadataStore) SaveOnboardingAnswers(ctx context.Context, userID string, a OnboardingAnswers) error {
	meta := UserMetadata{
		UserID:       userID,
		JobType:      sqlNullString(a.JobType),
		JobIndustry:  sqlNullString(a.JobIndustry),
		JobSeniority: sqlNullString(a.JobSeniority),
		SignupSource: sqlNullString(a.SignupSource),
		Interests:    StringArray(a.Interests),
	}

	columns := []string{"updated_at_epoch"}
	if a.JobType != "" {
		columns = append(columns, "job_type")
	}
	if a.JobIndustry != "" {
		columns = append(columns, "job_industry")
	}
	if a.JobSeniority != "" {
		columns = append(columns, "job_seniority")
	}
	if a.SignupSource != "" {
		columns = append(columns, "signup_source")
	}
	if a.Interests != nil {
		columns = append(columns, "interests")
	}

	err := s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&meta).Error
	if err != nil {
		return fmt.Errorf("save onboarding answers: %w", err)
	}
	return nil
}
