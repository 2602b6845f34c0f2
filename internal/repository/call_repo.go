package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"gorm.io/gorm"
)

// callStateColumns are the columns written by a reconciliation
var callStateColumns = []string{
	"status", "status_at",
	"caller_answer_at", "caller_hangup_at", "called_answer_at", "called_hangup_at",
	"duration", "call_state", "cost", "fee", "extra", "version", "updated_at",
}

// CallRepo is the repository for call session operations
type CallRepo struct {
	db *gorm.DB
}

// NewCallRepo creates a new CallRepo
func NewCallRepo(db *gorm.DB) *CallRepo {
	return &CallRepo{db: db}
}

// CreateCall creates a new call session
func (r *CallRepo) CreateCall(ctx context.Context, call *entity.CallSession) error {
	now := entity.NowUnixMilli()
	if call.CreatedAt == 0 {
		call.CreatedAt = now
	}
	call.UpdatedAt = now
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *CallRepo) getCall(ctx context.Context, query string, arg any) (*entity.CallSession, error) {
	var call entity.CallSession
	err := r.db.WithContext(ctx).Where(query, arg).First(&call).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

// GetCallById gets a call session by primary key
func (r *CallRepo) GetCallById(ctx context.Context, id int64) (*entity.CallSession, error) {
	return r.getCall(ctx, "id = ?", id)
}

// GetCallByCallId gets a call session by its correlation id
func (r *CallRepo) GetCallByCallId(ctx context.Context, callId string) (*entity.CallSession, error) {
	return r.getCall(ctx, "call_id = ?", callId)
}

// GetCallByReqId gets a call session by provider request id
func (r *CallRepo) GetCallByReqId(ctx context.Context, reqId string) (*entity.CallSession, error) {
	return r.getCall(ctx, "req_id = ?", reqId)
}

// GetCallByMsgId gets the call session attached to a message
func (r *CallRepo) GetCallByMsgId(ctx context.Context, msgId int64) (*entity.CallSession, error) {
	return r.getCall(ctx, "msg_id = ?", msgId)
}

// ListCallsCreatedBetween lists sessions created in [from, to)
func (r *CallRepo) ListCallsCreatedBetween(ctx context.Context, from, to int64) ([]*entity.CallSession, error) {
	var calls []*entity.CallSession
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("id ASC").
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// CountSuccessCallsBefore counts successful calls of a caller hung up in [from, before)
func (r *CallRepo) CountSuccessCallsBefore(ctx context.Context, callerId string, from, before int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.CallSession{}).
		Where("caller_id = ? AND status = ? AND called_hangup_at >= ? AND called_hangup_at < ?",
			callerId, constant.CallStatusEndOk, from, before).
		Count(&count).Error
	return count, err
}

// BindReqId sets the provider request id when none is bound yet
func (r *CallRepo) BindReqId(ctx context.Context, id int64, reqId, provider string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.CallSession{}).
		Where("id = ? AND req_id IS NULL", id).
		Updates(map[string]interface{}{
			"req_id":     reqId,
			"provider":   provider,
			"updated_at": entity.NowUnixMilli(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompareAndSwapCall writes the reconciled state of call if nobody wrote
// the row since it was read at prevVersion
func (r *CallRepo) CompareAndSwapCall(ctx context.Context, call *entity.CallSession, prevVersion int64) (bool, error) {
	call.UpdatedAt = entity.NowUnixMilli()
	call.Version = prevVersion + 1
	res := r.db.WithContext(ctx).
		Model(call).
		Where("version = ?", prevVersion).
		Select(callStateColumns).
		Updates(call)
	if res.Error != nil || res.RowsAffected != 1 {
		call.Version = prevVersion
		return false, res.Error
	}
	return true, nil
}
