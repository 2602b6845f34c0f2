package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/ringlink/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateConversation creates the conversation unless its id already exists
func (r *ConversationRepo) CreateConversation(ctx context.Context, conv *entity.Conversation) (bool, error) {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetConversation gets a conversation by id
func (r *ConversationRepo) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// SaveConversation writes every column of conv
func (r *ConversationRepo) SaveConversation(ctx context.Context, conv *entity.Conversation) error {
	conv.UpdatedAt = entity.NowUnixMilli()
	return r.db.WithContext(ctx).Save(conv).Error
}
