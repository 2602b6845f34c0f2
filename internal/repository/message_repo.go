package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"gorm.io/gorm"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// live scopes a query to the visible messages of a conversation
func (r *MessageRepo) live(ctx context.Context, conversationId string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND is_del = ?", conversationId, false)
}

func first(query *gorm.DB) (*entity.Message, error) {
	var msg entity.Message
	if err := query.First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// CreateMessage creates a new message
func (r *MessageRepo) CreateMessage(ctx context.Context, msg *entity.Message) error {
	now := entity.NowUnixMilli()
	if msg.CreatedAt == 0 {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	return r.db.WithContext(ctx).Create(msg).Error
}

// SaveMessage writes every column of msg
func (r *MessageRepo) SaveMessage(ctx context.Context, msg *entity.Message) error {
	msg.UpdatedAt = entity.NowUnixMilli()
	return r.db.WithContext(ctx).Save(msg).Error
}

// GetMessage gets a message by id, deleted or not
func (r *MessageRepo) GetMessage(ctx context.Context, id int64) (*entity.Message, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id))
}

// LastMessage gets the newest visible message
func (r *MessageRepo) LastMessage(ctx context.Context, conversationId string) (*entity.Message, error) {
	return first(r.live(ctx, conversationId).Order("id DESC"))
}

// LastMessageBy gets the newest visible message of a sender
func (r *MessageRepo) LastMessageBy(ctx context.Context, conversationId, senderId string) (*entity.Message, error) {
	return first(r.live(ctx, conversationId).Where("sender_id = ?", senderId).Order("id DESC"))
}

// LastTimedSince gets the newest timed message created at or after since
func (r *MessageRepo) LastTimedSince(ctx context.Context, conversationId string, since int64) (*entity.Message, error) {
	return first(r.live(ctx, conversationId).
		Where("is_timed = ? AND created_at >= ?", true, since).
		Order("id DESC"))
}

// RecentByType lists the newest visible messages of a type
func (r *MessageRepo) RecentByType(ctx context.Context, conversationId string, msgType int32, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.live(ctx, conversationId).
		Where("msg_type = ?", msgType).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// HasSuccessCallBetween reports a successful call message with id in [fromId, toId]
func (r *MessageRepo) HasSuccessCallBetween(ctx context.Context, conversationId string, fromId, toId int64) (bool, error) {
	var count int64
	err := r.live(ctx, conversationId).
		Where("msg_type = ? AND reach = ? AND id >= ? AND id <= ?",
			constant.MsgTypeCall, constant.CallStatusEndOk, fromId, toId).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// CountMessages counts visible messages
func (r *MessageRepo) CountMessages(ctx context.Context, conversationId string) (int64, error) {
	var count int64
	err := r.live(ctx, conversationId).Count(&count).Error
	return count, err
}

// CountSuccessCalls counts visible successful call messages
func (r *MessageRepo) CountSuccessCalls(ctx context.Context, conversationId string) (int64, error) {
	var count int64
	err := r.live(ctx, conversationId).
		Where("msg_type = ? AND reach = ?", constant.MsgTypeCall, constant.CallStatusEndOk).
		Count(&count).Error
	return count, err
}

// ListUnread lists visible messages received by recvId and not read yet
func (r *MessageRepo) ListUnread(ctx context.Context, conversationId, recvId string) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.live(ctx, conversationId).
		Where("recv_id = ? AND read_at = 0", recvId).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListMessagesBefore lists visible messages older than beforeId, newest first
func (r *MessageRepo) ListMessagesBefore(ctx context.Context, conversationId string, beforeId int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := r.live(ctx, conversationId)
	if beforeId > 0 {
		query = query.Where("id < ?", beforeId)
	}

	var messages []*entity.Message
	err := query.Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListMessagesAfter lists visible messages newer than afterId, oldest first
func (r *MessageRepo) ListMessagesAfter(ctx context.Context, conversationId string, afterId int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var messages []*entity.Message
	err := r.live(ctx, conversationId).
		Where("id > ?", afterId).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CountMessagesBefore counts visible messages older than beforeId
func (r *MessageRepo) CountMessagesBefore(ctx context.Context, conversationId string, beforeId int64) (int64, error) {
	var count int64
	err := r.live(ctx, conversationId).Where("id < ?", beforeId).Count(&count).Error
	return count, err
}

// ListPendingCalls lists visible call messages whose outcome is not final
func (r *MessageRepo) ListPendingCalls(ctx context.Context, conversationId string) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.live(ctx, conversationId).
		Where("msg_type = ? AND reach NOT IN ?", constant.MsgTypeCall, constant.TerminalCallStatuses).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
