package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/ringlink/internal/middleware"
	"github.com/mbeoliero/ringlink/internal/service"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/response"
)

// CallHandler handles call-related requests
type CallHandler struct {
	calls      *service.CallService
	reconciler *service.StatusReconciler
	ledger     *service.LedgerService
}

// NewCallHandler creates a new CallHandler
func NewCallHandler(calls *service.CallService, reconciler *service.StatusReconciler, ledger *service.LedgerService) *CallHandler {
	return &CallHandler{calls: calls, reconciler: reconciler, ledger: ledger}
}

// CallRequest names a call session
type CallRequest struct {
	CallId string `json:"call_id"`
}

// StartCall appends a call message and asks the provider to dial both sides
func (h *CallHandler) StartCall(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req PeerRequest
	if err := c.BindAndValidate(&req); err != nil || req.PeerId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.calls.StartCall(ctx, userId, req.PeerId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo(userId))
}

// GetCall returns a session to one of its parties
func (h *CallHandler) GetCall(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	callId := c.Query("call_id")
	if callId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	call, err := h.calls.GetCall(ctx, userId, callId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, call)
}

// PollCall fetches the provider record of a session now
func (h *CallHandler) PollCall(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req CallRequest
	if err := c.BindAndValidate(&req); err != nil || req.CallId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	outcome, err := h.reconciler.PollCall(ctx, userId, req.CallId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, outcome)
}

// CheckCallMessages settles the unfinished call messages of the
// conversation with a peer
func (h *CallHandler) CheckCallMessages(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req PeerRequest
	if err := c.BindAndValidate(&req); err != nil || req.PeerId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	contact, err := h.ledger.GetContact(ctx, userId, req.PeerId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	if err := h.reconciler.CheckCallMessages(ctx, contact.ConversationId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}
