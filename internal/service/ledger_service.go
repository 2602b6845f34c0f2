package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/metrics"
	"gorm.io/datatypes"
)

// LedgerService keeps conversations, contacts and messages consistent.
// Every write that touches a conversation runs under that conversation's
// lock and ends in recompute, so the two contact rows and the conversation
// pointer always agree with the message log.
type LedgerService struct {
	store    repository.Store
	unread   repository.UnreadCache
	notifier Notifier
	rules    config.CallConfig
	now      func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(store repository.Store, unread repository.UnreadCache, rules config.CallConfig) *LedgerService {
	return &LedgerService{
		store:  store,
		unread: unread,
		rules:  rules,
		now:    time.Now,
	}
}

// SetNotifier sets the client notifier
func (s *LedgerService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *LedgerService) nowMilli() int64 {
	return s.now().UnixMilli()
}

func (s *LedgerService) notify(ctx context.Context, event int, payload any, userIds ...string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Push(ctx, event, payload, userIds)
}

// bizErr passes business errors through and hides everything else
func bizErr(ctx context.Context, op string, err error) error {
	if e, ok := errcode.As(err); ok {
		return e
	}
	log.CtxError(ctx, "%s failed: %v", op, err)
	return errcode.ErrInternalServer
}

// GetOrCreateConversation returns the conversation of the pair, creating it
// and both contact rows when missing. A non-empty symbol different from the
// stored one replaces it.
func (s *LedgerService) GetOrCreateConversation(ctx context.Context, userId, peerId, symbol string) (*entity.Conversation, error) {
	conv, _, err := s.link(ctx, userId, peerId, symbol)
	return conv, err
}

// LinkContact pairs userId with peerId and returns userId's contact. Each
// side's keyword index gets the other side's nickname.
func (s *LedgerService) LinkContact(ctx context.Context, userId, peerId, symbol string) (*entity.Contact, error) {
	_, contact, err := s.link(ctx, userId, peerId, symbol)
	return contact, err
}

func (s *LedgerService) link(ctx context.Context, userId, peerId, symbol string) (*entity.Conversation, *entity.Contact, error) {
	if userId == "" || peerId == "" {
		return nil, nil, errcode.ErrInvalidParam
	}
	if userId == peerId {
		return nil, nil, errcode.ErrSelfContact
	}

	names, err := s.nicknames(ctx, userId, peerId)
	if err != nil {
		return nil, nil, bizErr(ctx, "load profiles", err)
	}

	conv := entity.NewConversation(userId, peerId, userId, symbol)
	if _, err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, bizErr(ctx, "create conversation", err)
	}

	var owned *entity.Contact
	err = s.store.WithConversationLock(ctx, conv.Id, func(st repository.Store) error {
		cur, err := st.GetConversation(ctx, conv.Id)
		if err != nil {
			return err
		}
		if cur == nil {
			return errcode.ErrConvNotFound
		}
		if symbol != "" && symbol != cur.Symbol {
			cur.Audit("symbol", map[string]any{"old": cur.Symbol, "new": symbol})
			cur.Symbol = symbol
			if err := st.SaveConversation(ctx, cur); err != nil {
				return err
			}
		}
		conv = cur

		for _, owner := range conv.Members() {
			peer := conv.Peer(owner)
			contact, err := s.ensureContact(ctx, st, owner, peer, conv.Id, names[peer])
			if err != nil {
				return err
			}
			if owner == userId {
				owned = contact
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, bizErr(ctx, "link contact", err)
	}
	return conv, owned, nil
}

func (s *LedgerService) nicknames(ctx context.Context, userIds ...string) (map[string]string, error) {
	profiles, err := s.store.GetProfiles(ctx, userIds)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.UserId] = p.Nickname
	}
	return names, nil
}

func (s *LedgerService) ensureContact(ctx context.Context, st repository.Store, owner, peer, convId, peerName string) (*entity.Contact, error) {
	created, err := st.CreateContact(ctx, entity.NewContact(owner, peer, convId))
	if err != nil {
		return nil, err
	}
	contact, err := st.GetContact(ctx, owner, peer)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, errcode.ErrContactNotFound
	}
	if contact.AddKeyword(peerName) {
		if err := st.SaveContact(ctx, contact); err != nil {
			return nil, err
		}
	}
	if created {
		log.CtxInfo(ctx, "contact linked: owner=%s, peer=%s, conv=%s", owner, peer, convId)
	}
	return contact, nil
}

// TriggerRequest describes a scan that opens or continues a conversation
type TriggerRequest struct {
	SenderId string `json:"-"`
	PeerId   string `json:"peer_id"`
	Trigger  int    `json:"trigger"`
	Content  string `json:"content"`
	Symbol   string `json:"symbol"`
}

// AppendTrigger records a scan. When the sender's own newest message is a
// trigger that is still the conversation's newest and younger than the
// dedup window, that message is returned instead and nothing is written.
func (s *LedgerService) AppendTrigger(ctx context.Context, req *TriggerRequest) (*entity.Message, bool, error) {
	if !constant.IsTriggerKind(req.Trigger) {
		return nil, false, errcode.ErrInvalidTrigger
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, false, errcode.ErrInvalidParam
	}

	conv, _, err := s.link(ctx, req.SenderId, req.PeerId, req.Symbol)
	if err != nil {
		return nil, false, err
	}

	var (
		msg     *entity.Message
		deduped bool
	)
	err = s.store.WithConversationLock(ctx, conv.Id, func(st repository.Store) error {
		cur, err := st.GetConversation(ctx, conv.Id)
		if err != nil {
			return err
		}
		last, err := st.LastMessageBy(ctx, conv.Id, req.SenderId)
		if err != nil {
			return err
		}
		now := s.nowMilli()
		if last != nil && last.IsTrigger() && cur.LastId == last.Id &&
			now-last.CreatedAt < s.rules.TriggerDedup.Milliseconds() {
			msg, deduped = last, true
			return nil
		}

		msg = entity.NewMessage(cur, req.SenderId, constant.MsgTypeTrigger, req.Content)
		msg.ReadAt = now
		if err := msg.SetBody(entity.TriggerBody{Trigger: req.Trigger, Symbol: req.Symbol}); err != nil {
			return err
		}
		return s.appendLocked(ctx, st, msg)
	})
	if err != nil {
		return nil, false, bizErr(ctx, "append trigger", err)
	}

	if deduped {
		log.CtxDebug(ctx, "trigger deduplicated: conv=%s, msg_id=%d", conv.Id, msg.Id)
		return msg, true, nil
	}
	s.afterAppend(ctx, msg)
	return msg, false, nil
}

// AppendStay records a free text message. A blocked sender and a sender who
// wrote the last stay messages alone, with no completed call since, are
// rejected.
func (s *LedgerService) AppendStay(ctx context.Context, senderId, peerId, content string) (*entity.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errcode.ErrInvalidParam
	}
	contact, err := s.writableContact(ctx, senderId, peerId)
	if err != nil {
		return nil, err
	}

	var msg *entity.Message
	err = s.store.WithConversationLock(ctx, contact.ConversationId, func(st repository.Store) error {
		conv, err := st.GetConversation(ctx, contact.ConversationId)
		if err != nil {
			return err
		}
		if conv == nil || !conv.IsMember(senderId) {
			return errcode.ErrNotMember
		}
		limited, err := s.pingPongLimited(ctx, st, conv.Id)
		if err != nil {
			return err
		}
		if limited == senderId {
			metrics.RecordLedgerReject("ping_pong")
			return errcode.ErrPingPongLimit
		}

		msg = entity.NewMessage(conv, senderId, constant.MsgTypeStay, content)
		return s.appendLocked(ctx, st, msg)
	})
	if err != nil {
		return nil, bizErr(ctx, "append stay", err)
	}

	s.afterAppend(ctx, msg)
	return msg, nil
}

// pingPongLimited returns the user who may not send another stay message,
// or "". That is the author of all of the latest stay messages when no
// completed call happened after the oldest of them.
func (s *LedgerService) pingPongLimited(ctx context.Context, st repository.Store, convId string) (string, error) {
	n := s.rules.StayLimit
	if n <= 0 {
		return "", nil
	}
	recent, err := st.RecentByType(ctx, convId, constant.MsgTypeStay, n)
	if err != nil {
		return "", err
	}
	if len(recent) < n {
		return "", nil
	}
	sender := recent[0].SenderId
	for _, m := range recent[1:] {
		if m.SenderId != sender {
			return "", nil
		}
	}
	called, err := st.HasSuccessCallBetween(ctx, convId, recent[len(recent)-1].Id, math.MaxInt64)
	if err != nil {
		return "", err
	}
	if called {
		return "", nil
	}
	return sender, nil
}

// AppendCallMessage creates a call message and its session in one locked
// unit. Placing the call is left to the caller.
func (s *LedgerService) AppendCallMessage(ctx context.Context, senderId, peerId, callId, callerNumber, calledNumber string) (*entity.Message, *entity.CallSession, error) {
	contact, err := s.writableContact(ctx, senderId, peerId)
	if err != nil {
		return nil, nil, err
	}

	var (
		msg  *entity.Message
		call *entity.CallSession
	)
	err = s.store.WithConversationLock(ctx, contact.ConversationId, func(st repository.Store) error {
		conv, err := st.GetConversation(ctx, contact.ConversationId)
		if err != nil {
			return err
		}
		if conv == nil || !conv.IsMember(senderId) {
			return errcode.ErrNotMember
		}

		msg = entity.NewMessage(conv, senderId, constant.MsgTypeCall, constant.CallingContent)
		msg.Reach = constant.CallStatusOutCaller
		if err := msg.SetBody(entity.CallBody{CallId: callId}); err != nil {
			return err
		}
		if err := s.appendLocked(ctx, st, msg); err != nil {
			return err
		}

		call = entity.NewCallSession(callId, msg.Id, senderId, peerId, callerNumber, calledNumber)
		call.CreatedAt = msg.CreatedAt
		return st.CreateCall(ctx, call)
	})
	if err != nil {
		return nil, nil, bizErr(ctx, "append call", err)
	}

	s.afterAppend(ctx, msg)
	return msg, call, nil
}

// writableContact loads the sender's contact and rejects senders the peer
// has blocked
func (s *LedgerService) writableContact(ctx context.Context, senderId, peerId string) (*entity.Contact, error) {
	contact, err := s.store.GetContact(ctx, senderId, peerId)
	if err != nil {
		return nil, bizErr(ctx, "get contact", err)
	}
	if contact == nil {
		return nil, errcode.ErrContactNotFound
	}
	back, err := s.store.GetContact(ctx, peerId, senderId)
	if err != nil {
		return nil, bizErr(ctx, "get contact", err)
	}
	if back != nil && back.IsBlock {
		metrics.RecordLedgerReject("blocked")
		return nil, errcode.ErrBlocked
	}
	return contact, nil
}

// appendLocked stores msg and recomputes its conversation. The caller holds
// the conversation lock.
func (s *LedgerService) appendLocked(ctx context.Context, st repository.Store, msg *entity.Message) error {
	msg.CreatedAt = s.nowMilli()
	msg.UpdatedAt = msg.CreatedAt
	timed, err := st.LastTimedSince(ctx, msg.ConversationId, msg.CreatedAt-s.rules.TimedGap.Milliseconds())
	if err != nil {
		return err
	}
	msg.IsTimed = timed == nil
	if err := st.CreateMessage(ctx, msg); err != nil {
		return err
	}
	_, err = s.recompute(ctx, st, msg.ConversationId)
	return err
}

func (s *LedgerService) afterAppend(ctx context.Context, msg *entity.Message) {
	s.syncUnread(ctx, msg.SenderId, msg.RecvId)
	s.notify(ctx, constant.EventNewMessage, &MessageEvent{
		Type:           msg.MsgType,
		Evt:            constant.EventNewMessage,
		MsgId:          msg.Id,
		ConversationId: msg.ConversationId,
	}, msg.RecvId)
	log.CtxInfo(ctx, "message appended: conv=%s, msg_id=%d, type=%d, sender=%s",
		msg.ConversationId, msg.Id, msg.MsgType, msg.SenderId)
}

// recompute rebuilds the conversation pointer and counters and both
// contacts' unread count and snapshot from the message log. The caller
// holds the conversation lock.
func (s *LedgerService) recompute(ctx context.Context, st repository.Store, convId string) (*entity.Conversation, error) {
	conv, err := st.GetConversation(ctx, convId)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	last, err := st.LastMessage(ctx, convId)
	if err != nil {
		return nil, err
	}
	count, err := st.CountMessages(ctx, convId)
	if err != nil {
		return nil, err
	}
	called, err := st.CountSuccessCalls(ctx, convId)
	if err != nil {
		return nil, err
	}

	conv.LastId, conv.LastBy, conv.LastAt = 0, "", 0
	if last != nil {
		conv.LastId, conv.LastBy, conv.LastAt = last.Id, last.SenderId, last.CreatedAt
	}
	conv.Count, conv.Called = int32(count), int32(called)
	if err := st.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}

	for _, owner := range conv.Members() {
		contact, err := st.GetContact(ctx, owner, conv.Peer(owner))
		if err != nil {
			return nil, err
		}
		if contact == nil {
			continue
		}
		unread, err := st.ListUnread(ctx, convId, owner)
		if err != nil {
			return nil, err
		}
		contact.Unread = int32(len(unread))
		if last != nil {
			contact.LastMsg = datatypes.NewJSONType(last.SnapshotFor(owner))
			contact.LastAt = last.CreatedAt
		} else {
			contact.LastMsg = datatypes.NewJSONType(entity.LastMsgSnapshot{})
		}
		if err := st.SaveContact(ctx, contact); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// Recompute rebuilds a conversation's derived state
func (s *LedgerService) Recompute(ctx context.Context, convId string) error {
	var conv *entity.Conversation
	err := s.store.WithConversationLock(ctx, convId, func(st repository.Store) error {
		var err error
		conv, err = s.recompute(ctx, st, convId)
		return err
	})
	if err != nil {
		return bizErr(ctx, "recompute conversation", err)
	}
	s.syncUnread(ctx, conv.Members()...)
	return nil
}

// syncUnread refreshes the cached unread contact count of each user
func (s *LedgerService) syncUnread(ctx context.Context, userIds ...string) {
	if s.unread == nil {
		return
	}
	for _, userId := range userIds {
		n, err := s.store.CountUnreadContacts(ctx, userId)
		if err != nil {
			log.CtxWarn(ctx, "count unread contacts failed: user_id=%s, err=%v", userId, err)
			continue
		}
		if err := s.unread.SetUnreadContacts(ctx, userId, n); err != nil {
			log.CtxWarn(ctx, "cache unread contacts failed: user_id=%s, err=%v", userId, err)
		}
	}
}

// OpenConversation marks every message the owner received from peer as
// read and zeroes the owner's unread counter. The open event goes out on
// every call so the owner's other devices stay in step.
func (s *LedgerService) OpenConversation(ctx context.Context, ownerId, peerId string) (*entity.Contact, error) {
	contact, err := s.store.GetContact(ctx, ownerId, peerId)
	if err != nil {
		return nil, bizErr(ctx, "get contact", err)
	}
	if contact == nil {
		return nil, errcode.ErrContactNotFound
	}
	read := 0
	if contact.Unread > 0 {
		contact, read, err = s.markRead(ctx, contact.ConversationId, ownerId, peerId)
		if err != nil {
			return nil, bizErr(ctx, "open conversation", err)
		}
		s.syncUnread(ctx, ownerId)
	}

	s.notify(ctx, constant.EventOpenConv, &ConvEvent{
		Evt:            constant.EventOpenConv,
		ConversationId: contact.ConversationId,
		UserId:         ownerId,
	}, ownerId, peerId)
	log.CtxDebug(ctx, "conversation opened: owner=%s, conv=%s, read=%d", ownerId, contact.ConversationId, read)
	return contact, nil
}

func (s *LedgerService) markRead(ctx context.Context, convId, ownerId, peerId string) (*entity.Contact, int, error) {
	var contact *entity.Contact
	read := 0
	err := s.store.WithConversationLock(ctx, convId, func(st repository.Store) error {
		cur, err := st.GetContact(ctx, ownerId, peerId)
		if err != nil {
			return err
		}
		if cur == nil {
			return errcode.ErrContactNotFound
		}
		msgs, err := st.ListUnread(ctx, cur.ConversationId, ownerId)
		if err != nil {
			return err
		}
		now := s.nowMilli()
		for _, m := range msgs {
			if m.SenderId == ownerId || m.IsRead() {
				continue
			}
			m.ReadAt = now
			if err := st.SaveMessage(ctx, m); err != nil {
				return err
			}
			read++
		}
		cur.Unread = 0
		cur.ReadAt = now
		if err := st.SaveContact(ctx, cur); err != nil {
			return err
		}
		contact = cur
		return nil
	})
	return contact, read, err
}

// MirrorCallOutcome copies a session's status and summary onto its call
// message. END_CALLER hides the message, END_OK marks it read for the
// called user at the called leg's hangup time.
func (s *LedgerService) MirrorCallOutcome(ctx context.Context, call *entity.CallSession) (*entity.Message, error) {
	msg, err := s.store.GetMessage(ctx, call.MsgId)
	if err != nil {
		return nil, bizErr(ctx, "get call message", err)
	}
	if msg == nil || !msg.IsCall() {
		log.CtxWarn(ctx, "mirror call outcome: message missing, call_id=%s, msg_id=%d", call.CallId, call.MsgId)
		return nil, errcode.ErrMessageNotFound
	}

	err = s.store.WithConversationLock(ctx, msg.ConversationId, func(st repository.Store) error {
		cur, err := st.GetMessage(ctx, call.MsgId)
		if err != nil {
			return err
		}
		cur.Reach = call.Status
		cur.Content = call.Summary()
		cur.IsDel = call.Status == constant.CallStatusEndCaller
		if call.Status == constant.CallStatusEndOk && !cur.IsRead() {
			cur.ReadAt = call.CalledHangupAt
			if cur.ReadAt == 0 {
				cur.ReadAt = s.nowMilli()
			}
		}
		cur.Audit("reach", map[string]any{"reach": int32(call.Status)})
		if err := st.SaveMessage(ctx, cur); err != nil {
			return err
		}
		msg = cur
		_, err = s.recompute(ctx, st, cur.ConversationId)
		return err
	})
	if err != nil {
		return nil, bizErr(ctx, "mirror call outcome", err)
	}

	s.syncUnread(ctx, msg.SenderId, msg.RecvId)
	s.notify(ctx, constant.EventReachCall, &ReachEvent{
		Type:           msg.MsgType,
		Evt:            constant.EventReachCall,
		MsgId:          msg.Id,
		ConversationId: msg.ConversationId,
		ReachDesc:      msg.Reach.Label(),
		Reach:          int32(msg.Reach),
		Summary:        msg.Content,
	}, msg.SenderId, msg.RecvId)
	return msg, nil
}

// MarkDeleted hides a message from the conversation
func (s *LedgerService) MarkDeleted(ctx context.Context, msgId int64, memo string) error {
	msg, err := s.store.GetMessage(ctx, msgId)
	if err != nil {
		return bizErr(ctx, "get message", err)
	}
	if msg == nil {
		return errcode.ErrMessageNotFound
	}
	if msg.IsDel {
		return nil
	}

	err = s.store.WithConversationLock(ctx, msg.ConversationId, func(st repository.Store) error {
		cur, err := st.GetMessage(ctx, msgId)
		if err != nil {
			return err
		}
		if cur.IsDel {
			return nil
		}
		cur.IsDel = true
		cur.Audit("del", map[string]any{"memo": memo})
		if err := st.SaveMessage(ctx, cur); err != nil {
			return err
		}
		_, err = s.recompute(ctx, st, cur.ConversationId)
		return err
	})
	if err != nil {
		return bizErr(ctx, "mark deleted", err)
	}
	s.syncUnread(ctx, msg.SenderId, msg.RecvId)
	log.CtxInfo(ctx, "message deleted: msg_id=%d, memo=%s", msgId, memo)
	return nil
}

// SetBlock blocks or unblocks peer for owner
func (s *LedgerService) SetBlock(ctx context.Context, ownerId, peerId string, block bool) (*entity.Contact, error) {
	contact, err := s.updateContact(ctx, ownerId, peerId, func(c *entity.Contact) bool {
		if c.IsBlock == block {
			return false
		}
		c.IsBlock = block
		c.Audit("block", map[string]any{"block": block})
		return true
	})
	if err != nil {
		return nil, err
	}
	s.syncUnread(ctx, ownerId)
	return contact, nil
}

// SetRemark sets owner's note on peer and indexes it for search
func (s *LedgerService) SetRemark(ctx context.Context, ownerId, peerId, remark string) (*entity.Contact, error) {
	remark = strings.TrimSpace(remark)
	return s.updateContact(ctx, ownerId, peerId, func(c *entity.Contact) bool {
		if c.Remark == remark {
			return false
		}
		c.Remark = remark
		c.AddKeyword(remark)
		return true
	})
}

func (s *LedgerService) updateContact(ctx context.Context, ownerId, peerId string, fn func(*entity.Contact) bool) (*entity.Contact, error) {
	contact, err := s.store.GetContact(ctx, ownerId, peerId)
	if err != nil {
		return nil, bizErr(ctx, "get contact", err)
	}
	if contact == nil {
		return nil, errcode.ErrContactNotFound
	}
	err = s.store.WithConversationLock(ctx, contact.ConversationId, func(st repository.Store) error {
		cur, err := st.GetContact(ctx, ownerId, peerId)
		if err != nil {
			return err
		}
		if cur == nil {
			return errcode.ErrContactNotFound
		}
		contact = cur
		if !fn(cur) {
			return nil
		}
		return st.SaveContact(ctx, cur)
	})
	if err != nil {
		return nil, bizErr(ctx, "update contact", err)
	}
	return contact, nil
}
