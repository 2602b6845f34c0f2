package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/internal/telephony"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/idgen"
)

// CallService starts double-ring calls between contacts
type CallService struct {
	store      repository.Store
	ledger     *LedgerService
	reconciler *StatusReconciler
	gateway    telephony.CallGateway
	ids        idgen.IDGenerator
}

// NewCallService creates a new CallService
func NewCallService(store repository.Store, ledger *LedgerService, reconciler *StatusReconciler, gateway telephony.CallGateway, ids idgen.IDGenerator) *CallService {
	return &CallService{
		store:      store,
		ledger:     ledger,
		reconciler: reconciler,
		gateway:    gateway,
		ids:        ids,
	}
}

// StartCall appends a call message from callerId to peerId and asks the
// provider to dial. A refused call leaves the message hidden and returns
// ErrCallPlaceFailed; the user retries with a new call.
func (s *CallService) StartCall(ctx context.Context, callerId, peerId string) (*entity.Message, error) {
	if callerId == peerId {
		return nil, errcode.ErrSelfContact
	}
	caller, err := s.store.GetProfile(ctx, callerId)
	if err != nil {
		return nil, bizErr(ctx, "get profile", err)
	}
	called, err := s.store.GetProfile(ctx, peerId)
	if err != nil {
		return nil, bizErr(ctx, "get profile", err)
	}
	if !caller.HasNumber() || !called.HasNumber() {
		return nil, errcode.ErrCallNoPhone
	}

	callId, err := s.ids.NextID()
	if err != nil {
		log.CtxError(ctx, "generate call id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	msg, call, err := s.ledger.AppendCallMessage(ctx, callerId, peerId, callId, caller.Number, called.Number)
	if err != nil {
		return nil, err
	}
	if err := s.PlaceCall(ctx, call); err != nil {
		return nil, err
	}
	return msg, nil
}

// PlaceCall asks the provider to dial a created session. A session that
// already has a request id is left alone.
func (s *CallService) PlaceCall(ctx context.Context, call *entity.CallSession) error {
	if call.RequestId() != "" {
		log.CtxWarn(ctx, "call already placed: call_id=%s, req_id=%s", call.CallId, call.RequestId())
		return nil
	}

	reqId, err := s.gateway.PlaceCall(ctx, call.CallerNumber, call.CalledNumber, call.CallId)
	if err != nil {
		log.CtxWarn(ctx, "place call failed: call_id=%s, err=%v", call.CallId, err)
		if _, ferr := s.reconciler.ApplyPlaceFailure(ctx, call, err.Error()); ferr != nil {
			log.CtxError(ctx, "end refused call failed: call_id=%s, err=%v", call.CallId, ferr)
		}
		return errcode.ErrCallPlaceFailed
	}

	bound, err := s.store.BindReqId(ctx, call.Id, reqId, s.gateway.Name())
	if err != nil {
		return bizErr(ctx, "bind request id", err)
	}
	if !bound {
		log.CtxWarn(ctx, "request id already bound: call_id=%s, req_id=%s", call.CallId, reqId)
		return nil
	}
	call.ReqId, call.Provider = &reqId, s.gateway.Name()
	log.CtxInfo(ctx, "call placed: call_id=%s, req_id=%s, caller=%s, called=%s",
		call.CallId, reqId, call.CallerId, call.CalledId)
	return nil
}

// GetCall returns a session to one of its parties
func (s *CallService) GetCall(ctx context.Context, userId, callId string) (*entity.CallSession, error) {
	call, err := s.store.GetCallByCallId(ctx, callId)
	if err != nil {
		return nil, bizErr(ctx, "get call", err)
	}
	if call == nil {
		return nil, errcode.ErrCallNotFound
	}
	if call.CallerId != userId && call.CalledId != userId {
		return nil, errcode.ErrNoPermission
	}
	return call, nil
}
