package service

import (
	"context"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/internal/telephony"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/metrics"
	"github.com/mbeoliero/ringlink/pkg/phone"
)

// Outcome reports what one event did to a call session.
// Stale, ignored, pending and superseded events are not errors.
type Outcome struct {
	CallId     string              `json:"call_id"`
	Status     constant.CallStatus `json:"status"`
	Changed    bool                `json:"changed"`
	Stale      bool                `json:"stale,omitempty"`
	Ignored    string              `json:"ignored,omitempty"`
	Pending    bool                `json:"pending,omitempty"`
	TooEarly   bool                `json:"too_early,omitempty"`
	Superseded bool                `json:"superseded,omitempty"`
}

func (o *Outcome) label() string {
	switch {
	case o.Superseded:
		return "superseded"
	case o.TooEarly:
		return "too_early"
	case o.Pending:
		return "pending"
	case o.Ignored != "":
		return "ignored"
	case o.Stale:
		return "stale"
	case o.Changed:
		return "changed"
	default:
		return "unchanged"
	}
}

// StatusReconciler applies provider pushes and detail records to call
// sessions. Writes are compare-and-swap on the row version, so concurrent
// events for one session need no in-process lock. The loser of a race
// reloads the session and judges its event again: an event a later one
// overtook only keeps its leg facts and is reported as superseded.
type StatusReconciler struct {
	store     repository.Store
	gateway   telephony.CallGateway
	ledger    *LedgerService
	billing   BillingHook
	publisher EventPublisher
	rules     config.CallConfig
	region    string
	now       func() time.Time
}

// NewStatusReconciler creates a new StatusReconciler
func NewStatusReconciler(store repository.Store, gateway telephony.CallGateway, ledger *LedgerService, billing BillingHook, rules config.CallConfig, region string) *StatusReconciler {
	return &StatusReconciler{
		store:   store,
		gateway: gateway,
		ledger:  ledger,
		billing: billing,
		rules:   rules,
		region:  region,
		now:     time.Now,
	}
}

// SetPublisher sets the broker publisher
func (r *StatusReconciler) SetPublisher(p EventPublisher) {
	r.publisher = p
}

// ApplyPush applies one per-leg status push
func (r *StatusReconciler) ApplyPush(ctx context.Context, ev entity.PushEvent) (*Outcome, error) {
	call, err := r.callByReqId(ctx, "push", ev.ReqId)
	if err != nil {
		return nil, err
	}

	return r.commit(ctx, "push", call, func(call *entity.CallSession) (entity.Transition, bool) {
		leg := call.MatchLeg(ev.Phone, r.region)
		tr := call.ApplyPush(ev, leg)
		if tr.Ignored != "" {
			log.CtxWarn(ctx, "push dropped: call_id=%s, status=%d, reason=%s, phone=%s, state=%s, at=%d",
				call.CallId, call.Status, tr.Ignored, phone.Mask(ev.Phone), ev.State, ev.At)
			return tr, false
		}
		call.Audit("push", map[string]any{
			"leg":   leg.String(),
			"state": string(ev.State),
			"at":    ev.At,
			"stale": tr.Stale,
		})
		return tr, true
	})
}

// ApplyRecord applies a detail record delivered by the provider callback
func (r *StatusReconciler) ApplyRecord(ctx context.Context, cdr entity.CDR) (*Outcome, error) {
	call, err := r.callByReqId(ctx, "cdr", cdr.ReqId)
	if err != nil {
		return nil, err
	}
	return r.applyRecord(ctx, "cdr", call, cdr)
}

// ApplyPoll fetches the detail record of a session and applies it.
// Terminal sessions are skipped. Sessions younger than the poll grace
// period, not placed yet, or unknown to the provider come back pending.
func (r *StatusReconciler) ApplyPoll(ctx context.Context, call *entity.CallSession) (*Outcome, error) {
	out := &Outcome{CallId: call.CallId, Status: call.Status}
	switch {
	case call.IsEnd():
		out.Ignored = entity.IgnoreTerminal
	case r.now().Sub(time.UnixMilli(call.CreatedAt)) < r.rules.PollGrace:
		out.TooEarly, out.Pending = true, true
	case call.RequestId() == "":
		out.Pending = true
	}
	if out.Ignored != "" || out.Pending {
		metrics.RecordCallEvent("poll", out.label())
		return out, nil
	}

	cdr, ok, err := r.gateway.FetchCDR(ctx, call.RequestId())
	if err != nil {
		log.CtxWarn(ctx, "fetch cdr failed: call_id=%s, req_id=%s, err=%v", call.CallId, call.RequestId(), err)
		metrics.RecordCallEvent("poll", "error")
		return nil, errcode.ErrCallGateway.Wrap(err)
	}
	if !ok {
		out.Pending = true
		metrics.RecordCallEvent("poll", out.label())
		return out, nil
	}
	if cdr.CustomParm != "" && cdr.CustomParm != call.CallId {
		log.CtxWarn(ctx, "cdr correlation mismatch: call_id=%s, custom=%s", call.CallId, cdr.CustomParm)
	}
	return r.applyRecord(ctx, "poll", call, *cdr)
}

// PollCall polls the session of callId on behalf of one of its parties
func (r *StatusReconciler) PollCall(ctx context.Context, userId, callId string) (*Outcome, error) {
	call, err := r.store.GetCallByCallId(ctx, callId)
	if err != nil {
		return nil, bizErr(ctx, "get call", err)
	}
	if call == nil {
		return nil, errcode.ErrCallNotFound
	}
	if call.CallerId != userId && call.CalledId != userId {
		return nil, errcode.ErrNoPermission
	}
	return r.ApplyPoll(ctx, call)
}

// ApplyPlaceFailure ends a session the provider refused to dial
func (r *StatusReconciler) ApplyPlaceFailure(ctx context.Context, call *entity.CallSession, reason string) (*Outcome, error) {
	now := r.now().UnixMilli()
	return r.commit(ctx, "place", call, func(call *entity.CallSession) (entity.Transition, bool) {
		tr := call.ApplyPlaceFailure(reason, now)
		call.Audit("place_failed", map[string]any{"reason": reason})
		return tr, true
	})
}

// CheckCallMessages polls every unfinished call message of a conversation.
// A call message without a session is hidden. The conversation is
// recomputed afterwards.
func (r *StatusReconciler) CheckCallMessages(ctx context.Context, convId string) error {
	pending, err := r.store.ListPendingCalls(ctx, convId)
	if err != nil {
		return bizErr(ctx, "list pending calls", err)
	}
	for _, msg := range pending {
		call, err := r.store.GetCallByMsgId(ctx, msg.Id)
		if err != nil {
			return bizErr(ctx, "get call", err)
		}
		if call == nil {
			if err := r.ledger.MarkDeleted(ctx, msg.Id, "no call record"); err != nil {
				return err
			}
			continue
		}
		if _, err := r.ApplyPoll(ctx, call); err != nil {
			log.CtxWarn(ctx, "check call message: poll failed, msg_id=%d, err=%v", msg.Id, err)
		}
	}
	return r.ledger.Recompute(ctx, convId)
}

func (r *StatusReconciler) callByReqId(ctx context.Context, source, reqId string) (*entity.CallSession, error) {
	if reqId == "" {
		return nil, errcode.ErrInvalidParam
	}
	call, err := r.store.GetCallByReqId(ctx, reqId)
	if err != nil {
		return nil, bizErr(ctx, "get call", err)
	}
	if call == nil {
		log.CtxWarn(ctx, "%s for unknown request: req_id=%s", source, reqId)
		metrics.RecordCallEvent(source, "unknown")
		return nil, errcode.ErrCallNotFound
	}
	return call, nil
}

func (r *StatusReconciler) applyRecord(ctx context.Context, source string, call *entity.CallSession, cdr entity.CDR) (*Outcome, error) {
	now := r.now().UnixMilli()
	return r.commit(ctx, source, call, func(call *entity.CallSession) (entity.Transition, bool) {
		tr := call.ApplyRecord(cdr, now)
		call.Audit(source, map[string]any{
			"legs":     cdr.Legs,
			"duration": cdr.Duration,
			"cost":     cdr.CostCents,
			"stale":    tr.Stale,
			"ignored":  tr.Ignored,
		})
		return tr, true
	})
}

// maxCommitAttempts bounds how often an event is judged again after losing
// a write race
const maxCommitAttempts = 3

// commit applies one event to call and saves it if nobody wrote the row
// since it was read. apply reports the transition and whether there is
// anything to save. A lost race reloads the session and applies the event
// again, so facts of concurrent events are never overwritten.
func (r *StatusReconciler) commit(ctx context.Context, source string, call *entity.CallSession, apply func(*entity.CallSession) (entity.Transition, bool)) (*Outcome, error) {
	raced := false
	for attempt := 1; ; attempt++ {
		prevVersion := call.Version
		tr, save := apply(call)
		out := &Outcome{
			CallId:  call.CallId,
			Status:  call.Status,
			Changed: tr.Changed(),
			Stale:   tr.Stale,
			Ignored: tr.Ignored,
			// a race that left the event stale was won by a later event
			Superseded: raced && tr.Stale,
		}
		if !save {
			metrics.RecordCallEvent(source, out.label())
			return out, nil
		}
		if call.IsEnd() {
			call.Fee = call.ComputeFee(r.rules.FeePerMinute)
		}

		ok, err := r.store.CompareAndSwapCall(ctx, call, prevVersion)
		if err != nil {
			return nil, bizErr(ctx, "save call", err)
		}
		if ok {
			metrics.RecordCallEvent(source, out.label())
			r.afterCommit(ctx, source, call, tr)
			return out, nil
		}

		log.CtxWarn(ctx, "call update raced: call_id=%s, source=%s, attempt=%d, wanted=%d",
			call.CallId, source, attempt, tr.To)
		fresh, err := r.store.GetCallById(ctx, call.Id)
		if err != nil {
			return nil, bizErr(ctx, "get call", err)
		}
		if fresh == nil || attempt == maxCommitAttempts {
			out.Changed, out.Superseded = false, true
			if fresh != nil {
				out.Status = fresh.Status
			}
			log.CtxWarn(ctx, "call update superseded: call_id=%s, source=%s, wanted=%d", call.CallId, source, tr.To)
			metrics.RecordCallEvent(source, out.label())
			return out, nil
		}
		call, raced = fresh, true
	}
}

func (r *StatusReconciler) afterCommit(ctx context.Context, source string, call *entity.CallSession, tr entity.Transition) {
	if !tr.Changed() {
		if tr.Stale || tr.Ignored != "" {
			log.CtxWarn(ctx, "call event kept for audit only: call_id=%s, source=%s, status=%d, status_at=%d, stale=%v, ignored=%s",
				call.CallId, source, call.Status, call.StatusAt, tr.Stale, tr.Ignored)
		}
		return
	}
	log.CtxInfo(ctx, "call status changed: call_id=%s, source=%s, from=%d, to=%d, status_at=%d",
		call.CallId, source, tr.From, tr.To, tr.StatusAt)
	r.afterTransition(ctx, call, tr)
}

// afterTransition mirrors the new status into the ledger. Entering END_OK
// bills the caller and entering END_CALLED asks for a missed call reminder.
// Failures are logged; the session itself is already saved.
func (r *StatusReconciler) afterTransition(ctx context.Context, call *entity.CallSession, tr entity.Transition) {
	msg, err := r.ledger.MirrorCallOutcome(ctx, call)
	if err != nil {
		log.CtxWarn(ctx, "mirror call outcome failed: call_id=%s, err=%v", call.CallId, err)
	}
	if !tr.EnteredEnd() {
		return
	}
	metrics.RecordTerminal(int32(call.Status))

	switch call.Status {
	case constant.CallStatusEndOk:
		r.bill(ctx, call, msg)
	case constant.CallStatusEndCalled:
		r.remindMissed(ctx, call, msg)
	}
}

func (r *StatusReconciler) bill(ctx context.Context, call *entity.CallSession, msg *entity.Message) {
	if r.billing == nil {
		return
	}
	req := &BillRequest{
		CallId:   call.CallId,
		MsgId:    call.MsgId,
		UserId:   call.CallerId,
		Duration: call.CallSeconds(),
		Fee:      call.Fee,
		Summary:  call.Summary(),
		BillAt:   call.CalledHangupAt,
	}
	if msg != nil {
		req.ConversationId = msg.ConversationId
	}
	if _, err := r.billing.RecordSuccessfulCall(ctx, req); err != nil {
		log.CtxError(ctx, "record bill failed: call_id=%s, err=%v", call.CallId, err)
	}
}

func (r *StatusReconciler) remindMissed(ctx context.Context, call *entity.CallSession, msg *entity.Message) {
	if r.publisher == nil || msg == nil || msg.IsDel || msg.IsRead() {
		return
	}
	touchAt := call.CallerAnswerAt
	if touchAt == 0 {
		touchAt = call.CreatedAt
	}
	err := r.publisher.Publish(ctx, constant.RoutingCallMissed, &MissedCallEvent{
		CallId:         call.CallId,
		MsgId:          call.MsgId,
		ConversationId: msg.ConversationId,
		CallerId:       call.CallerId,
		CalledId:       call.CalledId,
		TouchAt:        touchAt,
	})
	if err != nil {
		log.CtxWarn(ctx, "publish missed call failed: call_id=%s, err=%v", call.CallId, err)
	}
}
