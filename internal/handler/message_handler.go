package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/ringlink/internal/middleware"
	"github.com/mbeoliero/ringlink/internal/service"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	ledger *service.LedgerService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(ledger *service.LedgerService) *MessageHandler {
	return &MessageHandler{ledger: ledger}
}

// StayRequest carries a free text message
type StayRequest struct {
	PeerId  string `json:"peer_id"`
	Content string `json:"content"`
}

// TriggerResult is returned for a scan, Deduped is set when an earlier
// trigger was reused
type TriggerResult struct {
	MsgId   int64 `json:"msg_id"`
	Deduped bool  `json:"deduped"`
}

// Trigger records a scan of the peer's code
func (h *MessageHandler) Trigger(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.TriggerRequest
	if err := c.BindAndValidate(&req); err != nil || req.PeerId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	req.SenderId = userId

	msg, deduped, err := h.ledger.AppendTrigger(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, &TriggerResult{MsgId: msg.Id, Deduped: deduped})
}

// Stay sends a free text message
func (h *MessageHandler) Stay(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req StayRequest
	if err := c.BindAndValidate(&req); err != nil || req.PeerId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.ledger.AppendStay(ctx, userId, req.PeerId, req.Content)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo(userId))
}

// Latest returns one page of history, before_id pages backwards
func (h *MessageHandler) Latest(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	peerId := c.Query("peer_id")
	if peerId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	beforeId, _ := strconv.ParseInt(c.Query("before_id"), 10, 64)

	page, err := h.ledger.LatestMessages(ctx, userId, peerId, beforeId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, page)
}

// After returns the messages newer than the last one the client has seen
func (h *MessageHandler) After(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	peerId := c.Query("peer_id")
	afterId, err := strconv.ParseInt(c.Query("after_id"), 10, 64)
	if peerId == "" || err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msgs, err := h.ledger.MessagesAfter(ctx, userId, peerId, afterId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msgs)
}

// Reach returns the read state and call outcome of one message
func (h *MessageHandler) Reach(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	msgId, err := strconv.ParseInt(c.Query("msg_id"), 10, 64)
	if err != nil || msgId <= 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	reach, err := h.ledger.MessageReach(ctx, userId, msgId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, reach)
}
