package gorm

import (
	"context"
	"fmt"

	"github.com/thebtf/promptdock/internal/folders"
)

// FolderStore provides read access to the folder catalog.
type FolderStore struct {
	store *Store
}

// NewFolderStore creates a new FolderStore.
func NewFolderStore(store *Store) *FolderStore {
	return &FolderStore{store: store}
}

// GetFolderDisplayFields fetches the display rows for the given folder IDs.
// IDs that no longer exist in the catalog are silently omitted; callers must
// not treat a short result as an error.
func (s *FolderStore) GetFolderDisplayFields(ctx context.Context, ids []int64) ([]folders.Folder, error) {
	if len(ids) == 0 {
		return []folders.Folder{}, nil
	}

	var rows []PromptFolder
	if err := s.store.DB.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get folder display fields: %w", err)
	}

	return toDomain(rows), nil
}

// ListForUser returns the folders visible to a user: official folders plus
// the user's own.
func (s *FolderStore) ListForUser(ctx context.Context, userID string) ([]folders.Folder, error) {
	var rows []PromptFolder
	if err := s.store.DB.WithContext(ctx).
		Where("(user_id IS NULL AND company_id IS NULL) OR user_id = ?", userID).
		Order("priority DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	return toDomain(rows), nil
}

// ExistingIDs filters ids down to those present in the catalog, preserving
// the input order.
func (s *FolderStore) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	var found []int64
	if err := s.store.DB.WithContext(ctx).
		Model(&PromptFolder{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("check folder ids: %w", err)
	}

	exists := make(map[int64]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}

	out := make([]int64, 0, len(found))
	for _, id := range ids {
		if exists[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func toDomain(rows []PromptFolder) []folders.Folder {
	out := make([]folders.Folder, 0, len(rows))
	for _, r := range rows {
		f := folders.Folder{
			ID:          r.ID,
			Priority:    r.Priority,
			Title:       r.Title,
			Description: r.Description,
		}
		if r.UserID.Valid {
			f.UserID = r.UserID.String
		}
		if r.CompanyID.Valid {
			f.CompanyID = r.CompanyID.String
		}
		if r.ParentID.Valid {
			f.ParentID = r.ParentID.Int64
		}
		out = append(out, f)
	}
	return out
}
