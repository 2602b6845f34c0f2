package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/ringlink/internal/middleware"
	"github.com/mbeoliero/ringlink/internal/service"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/response"
)

// ContactHandler handles contact-related requests
type ContactHandler struct {
	ledger *service.LedgerService
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(ledger *service.LedgerService) *ContactHandler {
	return &ContactHandler{ledger: ledger}
}

// PeerRequest names the other side of a conversation
type PeerRequest struct {
	PeerId string `json:"peer_id"`
	Symbol string `json:"symbol,omitempty"`
}

// BlockRequest toggles the block flag on a contact
type BlockRequest struct {
	PeerId string `json:"peer_id"`
	Block  bool   `json:"block"`
}

// RemarkRequest sets the owner's note on a contact
type RemarkRequest struct {
	PeerId string `json:"peer_id"`
	Remark string `json:"remark"`
}

// ListContacts handles the contact list request
func (h *ContactHandler) ListContacts(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	contacts, err := h.ledger.ListContacts(ctx, userId, c.Query("keyword"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, contacts)
}

// GetContact handles get single contact request
func (h *ContactHandler) GetContact(ctx context.Context, c *app.RequestContext) {
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

	contact, err := h.ledger.GetContact(ctx, userId, peerId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, contact)
}

// LinkContact links the caller and a peer in both directions
func (h *ContactHandler) LinkContact(ctx context.Context, c *app.RequestContext) {
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

	contact, err := h.ledger.LinkContact(ctx, userId, req.PeerId, req.Symbol)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, contact.ToContactInfo())
}

// OpenConversation marks the conversation with a peer as read
func (h *ContactHandler) OpenConversation(ctx context.Context, c *app.RequestContext) {
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

	contact, err := h.ledger.OpenConversation(ctx, userId, req.PeerId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, contact.ToContactInfo())
}

// SetBlock handles block and unblock requests
func (h *ContactHandler) SetBlock(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req BlockRequest
	if err := c.BindAndValidate(&req); err != nil || req.PeerId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	contact, err := h.ledger.SetBlock(ctx, userId, req.PeerId, req.Block)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, contact.ToContactInfo())
}

// SetRemark handles the remark update request
func (h *ContactHandler) SetRemark(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req RemarkRequest
	if err := c.BindAndValidate(&req); err != nil || req.PeerId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	contact, err := h.ledger.SetRemark(ctx, userId, req.PeerId, req.Remark)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, contact.ToContactInfo())
}

// GetUnreadCount returns how many contacts hold unread messages
func (h *ContactHandler) GetUnreadCount(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	count, err := h.ledger.UnreadContactCount(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]int64{"count": count})
}
