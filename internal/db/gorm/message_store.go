package gorm

import (
	"context"
	"fmt"
	"time"

	"github.com/thebtf/promptdock/internal/stats"
)

// MessageStore provides read access to captured chats and messages for the
// statistics endpoint.
type MessageStore struct {
	store *Store
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(store *Store) *MessageStore {
	return &MessageStore{store: store}
}

// UsageData is the raw material for the usage-statistics aggregation.
type UsageData struct {
	TotalChats     int
	ChatCreatedAts []time.Time
	Messages       []stats.Message
}

// GetUsageData loads a user's chats and messages.
func (s *MessageStore) GetUsageData(ctx context.Context, userID string) (*UsageData, error) {
	var chats []ChatLog
	if err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}

	var messages []MessageLog
	if err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_epoch ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	data := &UsageData{TotalChats: len(chats)}
	for _, c := range chats {
		data.ChatCreatedAts = append(data.ChatCreatedAts, time.UnixMilli(c.CreatedAtEpoch))
	}
	for _, m := range messages {
		data.Messages = append(data.Messages, stats.Message{
			ChatID:    m.ChatProviderID,
			Role:      m.Role,
			Content:   m.Content,
			Model:     m.Model,
			CreatedAt: time.UnixMilli(m.CreatedAtEpoch),
		})
	}
	return data, nil
}
