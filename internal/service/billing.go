package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/errcode"
)

// BillRequest is one successful call to bill
type BillRequest struct {
	CallId         string
	MsgId          int64
	ConversationId string
	UserId         string
	Duration       int64
	Fee            int32
	Summary        string
	BillAt         int64
}

// BillingService stores one bill per successful call and hands it to the
// broker. Every bill is currently free; DayIndex is kept for reporting.
type BillingService struct {
	store     repository.Store
	publisher EventPublisher
	notifier  Notifier
}

var _ BillingHook = (*BillingService)(nil)

// NewBillingService creates a new BillingService
func NewBillingService(store repository.Store) *BillingService {
	return &BillingService{store: store}
}

// SetPublisher sets the broker publisher
func (s *BillingService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// SetNotifier sets the client notifier
func (s *BillingService) SetNotifier(n Notifier) {
	s.notifier = n
}

// RecordSuccessfulCall creates the bill of a call unless it exists, and
// returns the stored bill either way
func (s *BillingService) RecordSuccessfulCall(ctx context.Context, req *BillRequest) (*entity.BillDetail, error) {
	if req.CallId == "" || req.UserId == "" {
		return nil, errcode.ErrInvalidParam
	}

	dayIndex, err := s.dayIndex(ctx, req)
	if err != nil {
		return nil, bizErr(ctx, "count day calls", err)
	}
	bill := &entity.BillDetail{
		CallId:   req.CallId,
		UserId:   req.UserId,
		Duration: req.Duration,
		Amount:   req.Fee,
		Summary:  req.Summary,
		BillAt:   req.BillAt,
		IsFree:   true,
		DayIndex: dayIndex,
	}
	created, err := s.store.CreateBillIfAbsent(ctx, bill)
	if err != nil {
		return nil, bizErr(ctx, "create bill", err)
	}
	if !created {
		existing, err := s.store.GetBill(ctx, req.CallId)
		if err != nil {
			return nil, bizErr(ctx, "get bill", err)
		}
		log.CtxDebug(ctx, "bill exists: call_id=%s", req.CallId)
		return existing, nil
	}

	log.CtxInfo(ctx, "bill recorded: call_id=%s, user_id=%s, duration=%d, amount=%d, day_index=%d",
		bill.CallId, bill.UserId, bill.Duration, bill.Amount, bill.DayIndex)
	s.publish(ctx, bill)
	if !bill.IsFree && s.notifier != nil {
		s.notifier.Push(ctx, constant.EventBillPush, &BillEvent{
			Type:           constant.MsgTypeCall,
			Evt:            constant.EventBillPush,
			MsgId:          req.MsgId,
			ConversationId: req.ConversationId,
			Reach:          int32(constant.CallStatusEndOk),
			BillId:         bill.Id,
		}, []string{bill.UserId})
	}
	return bill, nil
}

// dayIndex is the position of this call among the caller's successful calls
// of the same local day, 0 for a call without talk time
func (s *BillingService) dayIndex(ctx context.Context, req *BillRequest) (int32, error) {
	if req.Duration <= 0 {
		return 0, nil
	}
	n, err := s.store.CountSuccessCallsBefore(ctx, req.UserId, entity.DayStartMilli(req.BillAt), req.BillAt)
	if err != nil {
		return 0, err
	}
	return int32(n) + 1, nil
}

func (s *BillingService) publish(ctx context.Context, bill *entity.BillDetail) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, constant.RoutingBillRecorded, &BillRecorded{
		BillId:   bill.Id,
		CallId:   bill.CallId,
		UserId:   bill.UserId,
		Duration: bill.Duration,
		Amount:   bill.Amount,
		DayIndex: bill.DayIndex,
		IsFree:   bill.IsFree,
		BillAt:   bill.BillAt,
	})
	if err != nil {
		log.CtxWarn(ctx, "publish bill failed: call_id=%s, err=%v", bill.CallId, err)
	}
}
