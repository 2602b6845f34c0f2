package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/service"
	"github.com/mbeoliero/ringlink/internal/telephony"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/response"
)

// Query keys the provider puts on its callback URL
const (
	callbackRecord = "Call"
	callbackState  = "CallState"
)

// Reconciler is the part of the status reconciler the webhook feeds
type Reconciler interface {
	ApplyPush(ctx context.Context, ev entity.PushEvent) (*service.Outcome, error)
	ApplyRecord(ctx context.Context, cdr entity.CDR) (*service.Outcome, error)
}

// WebhookHandler receives provider callbacks. Both payload kinds arrive on
// one endpoint and are told apart by query key.
type WebhookHandler struct {
	reconciler Reconciler
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(reconciler Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Callback handles a status push or a detail record callback
func (h *WebhookHandler) Callback(ctx context.Context, c *app.RequestContext) {
	body := c.Request.Body()
	args := c.QueryArgs()

	var (
		outcomes []*service.Outcome
		err      error
	)
	switch {
	case args.Has(callbackRecord):
		outcomes, err = h.applyRecords(ctx, body)
	case args.Has(callbackState):
		outcomes, err = h.applyPush(ctx, body)
	default:
		log.CtxWarn(ctx, "unknown callback kind: query=%s", args.String())
		response.Fail(ctx, c, http.StatusBadRequest, errcode.ErrInvalidParam, nil)
		return
	}

	if err != nil {
		if e, ok := errcode.As(err); ok && errors.Is(e, errcode.ErrInvalidParam) {
			response.Fail(ctx, c, http.StatusBadRequest, e, nil)
			return
		}
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, outcomes)
}

func (h *WebhookHandler) applyPush(ctx context.Context, body []byte) ([]*service.Outcome, error) {
	ev, err := telephony.DecodePush(body)
	if err != nil {
		log.CtxWarn(ctx, "decode push failed: error=%v, body=%s", err, body)
		return nil, errcode.ErrInvalidParam.Wrap(err)
	}

	outcome, err := h.reconciler.ApplyPush(ctx, ev)
	if errors.Is(err, errcode.ErrCallNotFound) {
		log.CtxWarn(ctx, "push for unknown call acknowledged: req_id=%s, state=%s", ev.ReqId, ev.State)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []*service.Outcome{outcome}, nil
}

func (h *WebhookHandler) applyRecords(ctx context.Context, body []byte) ([]*service.Outcome, error) {
	cdrs, err := telephony.DecodeCDRCallback(body)
	if err != nil {
		log.CtxWarn(ctx, "decode cdr failed: error=%v, body=%s", err, body)
		return nil, errcode.ErrInvalidParam.Wrap(err)
	}

	outcomes := make([]*service.Outcome, 0, len(cdrs))
	for _, cdr := range cdrs {
		outcome, err := h.reconciler.ApplyRecord(ctx, cdr)
		if errors.Is(err, errcode.ErrCallNotFound) {
			log.CtxWarn(ctx, "record for unknown call acknowledged: req_id=%s", cdr.ReqId)
			continue
		}
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
