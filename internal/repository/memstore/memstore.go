// Package memstore is an in-process implementation of the repository
// interfaces. Rows are copied in and out so callers never share state with
// the store. WithConversationLock serializes per conversation but does not
// roll back on error.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/pkg/constant"
)

// Store keeps every entity in maps guarded by one mutex
type Store struct {
	mu sync.RWMutex

	nextId        int64
	calls         map[int64]*entity.CallSession
	conversations map[string]*entity.Conversation
	contacts      map[int64]*entity.Contact
	messages      map[int64]*entity.Message
	bills         map[string]*entity.BillDetail
	profiles      map[string]*entity.Profile
	unread        map[string]int64

	lockMu    sync.Mutex
	convLocks map[string]*sync.Mutex
}

var (
	_ repository.Store       = (*Store)(nil)
	_ repository.UnreadCache = (*Store)(nil)
)

// New creates an empty Store
func New() *Store {
	return &Store{
		calls:         make(map[int64]*entity.CallSession),
		conversations: make(map[string]*entity.Conversation),
		contacts:      make(map[int64]*entity.Contact),
		messages:      make(map[int64]*entity.Message),
		bills:         make(map[string]*entity.BillDetail),
		profiles:      make(map[string]*entity.Profile),
		unread:        make(map[string]int64),
		convLocks:     make(map[string]*sync.Mutex),
	}
}

func (s *Store) newId() int64 {
	s.nextId++
	return s.nextId
}

// WithConversationLock runs fn while holding the conversation's mutex
func (s *Store) WithConversationLock(ctx context.Context, conversationId string, fn func(repository.Store) error) error {
	s.lockMu.Lock()
	l, ok := s.convLocks[conversationId]
	if !ok {
		l = &sync.Mutex{}
		s.convLocks[conversationId] = l
	}
	s.lockMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(s)
}

// Calls

func cloneCall(c *entity.CallSession) *entity.CallSession {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ReqId != nil {
		id := *c.ReqId
		cp.ReqId = &id
	}
	return &cp
}

func (s *Store) CreateCall(ctx context.Context, call *entity.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := entity.NowUnixMilli()
	call.Id = s.newId()
	if call.CreatedAt == 0 {
		call.CreatedAt = now
	}
	call.UpdatedAt = now
	s.calls[call.Id] = cloneCall(call)
	return nil
}

func (s *Store) findCall(match func(*entity.CallSession) bool) *entity.CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.calls {
		if match(c) {
			return cloneCall(c)
		}
	}
	return nil
}

func (s *Store) GetCallById(ctx context.Context, id int64) (*entity.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCall(s.calls[id]), nil
}

func (s *Store) GetCallByCallId(ctx context.Context, callId string) (*entity.CallSession, error) {
	return s.findCall(func(c *entity.CallSession) bool { return c.CallId == callId }), nil
}

func (s *Store) GetCallByReqId(ctx context.Context, reqId string) (*entity.CallSession, error) {
	return s.findCall(func(c *entity.CallSession) bool { return c.ReqId != nil && *c.ReqId == reqId }), nil
}

func (s *Store) GetCallByMsgId(ctx context.Context, msgId int64) (*entity.CallSession, error) {
	return s.findCall(func(c *entity.CallSession) bool { return c.MsgId == msgId }), nil
}

func (s *Store) ListCallsCreatedBetween(ctx context.Context, from, to int64) ([]*entity.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.CallSession
	for _, c := range s.calls {
		if c.CreatedAt >= from && c.CreatedAt < to {
			out = append(out, cloneCall(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *Store) CountSuccessCallsBefore(ctx context.Context, callerId string, from, before int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.calls {
		if c.CallerId == callerId && c.Status == constant.CallStatusEndOk &&
			c.CalledHangupAt >= from && c.CalledHangupAt < before {
			n++
		}
	}
	return n, nil
}

func (s *Store) BindReqId(ctx context.Context, id int64, reqId, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok || c.ReqId != nil {
		return false, nil
	}
	c.ReqId = &reqId
	c.Provider = provider
	c.UpdatedAt = entity.NowUnixMilli()
	return true, nil
}

func (s *Store) CompareAndSwapCall(ctx context.Context, call *entity.CallSession, prevVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.calls[call.Id]
	if !ok || cur.Version != prevVersion {
		return false, nil
	}
	call.UpdatedAt = entity.NowUnixMilli()
	call.Version = prevVersion + 1
	next := cloneCall(cur)
	next.Status = call.Status
	next.StatusAt = call.StatusAt
	next.CallerAnswerAt = call.CallerAnswerAt
	next.CallerHangupAt = call.CallerHangupAt
	next.CalledAnswerAt = call.CalledAnswerAt
	next.CalledHangupAt = call.CalledHangupAt
	next.Duration = call.Duration
	next.CallState = call.CallState
	next.Cost = call.Cost
	next.Fee = call.Fee
	next.Extra = call.Extra
	next.Version = call.Version
	next.UpdatedAt = call.UpdatedAt
	s.calls[call.Id] = next
	return true, nil
}

// Conversations

func cloneConversation(c *entity.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (s *Store) CreateConversation(ctx context.Context, conv *entity.Conversation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.Id]; ok {
		return false, nil
	}
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	s.conversations[conv.Id] = cloneConversation(conv)
	return true, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConversation(s.conversations[id]), nil
}

func (s *Store) SaveConversation(ctx context.Context, conv *entity.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.UpdatedAt = entity.NowUnixMilli()
	s.conversations[conv.Id] = cloneConversation(conv)
	return nil
}

// Contacts

func cloneContact(c *entity.Contact) *entity.Contact {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (s *Store) CreateContact(ctx context.Context, contact *entity.Contact) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.OwnerId == contact.OwnerId && c.PeerId == contact.PeerId {
			return false, nil
		}
	}
	now := entity.NowUnixMilli()
	contact.Id = s.newId()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	s.contacts[contact.Id] = cloneContact(contact)
	return true, nil
}

func (s *Store) GetContact(ctx context.Context, ownerId, peerId string) (*entity.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contacts {
		if c.OwnerId == ownerId && c.PeerId == peerId {
			return cloneContact(c), nil
		}
	}
	return nil, nil
}

func (s *Store) ListContacts(ctx context.Context, ownerId, keyword string, limit int) ([]*entity.Contact, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Contact
	for _, c := range s.contacts {
		if c.OwnerId == ownerId && c.MatchKeyword(keyword) {
			out = append(out, cloneContact(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unread != out[j].Unread {
			return out[i].Unread > out[j].Unread
		}
		if out[i].LastAt != out[j].LastAt {
			return out[i].LastAt > out[j].LastAt
		}
		return out[i].Id < out[j].Id
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountUnreadContacts(ctx context.Context, ownerId string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.contacts {
		if c.OwnerId == ownerId && c.Unread > 0 && !c.IsBlock {
			n++
		}
	}
	return n, nil
}

func (s *Store) SaveContact(ctx context.Context, contact *entity.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact.UpdatedAt = entity.NowUnixMilli()
	s.contacts[contact.Id] = cloneContact(contact)
	return nil
}

// Messages

func cloneMessage(m *entity.Message) *entity.Message {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func (s *Store) CreateMessage(ctx context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := entity.NowUnixMilli()
	msg.Id = s.newId()
	if msg.CreatedAt == 0 {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	s.messages[msg.Id] = cloneMessage(msg)
	return nil
}

func (s *Store) SaveMessage(ctx context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.UpdatedAt = entity.NowUnixMilli()
	s.messages[msg.Id] = cloneMessage(msg)
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (*entity.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessage(s.messages[id]), nil
}

// live returns the visible messages of a conversation, newest first
func (s *Store) live(conversationId string, match func(*entity.Message) bool) []*entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Message
	for _, m := range s.messages {
		if m.ConversationId == conversationId && !m.IsDel && (match == nil || match(m)) {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id > out[j].Id })
	return out
}

func head(msgs []*entity.Message) *entity.Message {
	if len(msgs) == 0 {
		return nil
	}
	return msgs[0]
}

func limited(msgs []*entity.Message, limit int) []*entity.Message {
	if limit > 0 && len(msgs) > limit {
		return msgs[:limit]
	}
	return msgs
}

func (s *Store) LastMessage(ctx context.Context, conversationId string) (*entity.Message, error) {
	return head(s.live(conversationId, nil)), nil
}

func (s *Store) LastMessageBy(ctx context.Context, conversationId, senderId string) (*entity.Message, error) {
	return head(s.live(conversationId, func(m *entity.Message) bool { return m.SenderId == senderId })), nil
}

func (s *Store) LastTimedSince(ctx context.Context, conversationId string, since int64) (*entity.Message, error) {
	return head(s.live(conversationId, func(m *entity.Message) bool {
		return m.IsTimed && m.CreatedAt >= since
	})), nil
}

func (s *Store) RecentByType(ctx context.Context, conversationId string, msgType int32, limit int) ([]*entity.Message, error) {
	return limited(s.live(conversationId, func(m *entity.Message) bool { return m.MsgType == msgType }), limit), nil
}

func isSuccessCall(m *entity.Message) bool {
	return m.MsgType == constant.MsgTypeCall && m.Reach == constant.CallStatusEndOk
}

func (s *Store) HasSuccessCallBetween(ctx context.Context, conversationId string, fromId, toId int64) (bool, error) {
	return len(s.live(conversationId, func(m *entity.Message) bool {
		return isSuccessCall(m) && m.Id >= fromId && m.Id <= toId
	})) > 0, nil
}

func (s *Store) CountMessages(ctx context.Context, conversationId string) (int64, error) {
	return int64(len(s.live(conversationId, nil))), nil
}

func (s *Store) CountSuccessCalls(ctx context.Context, conversationId string) (int64, error) {
	return int64(len(s.live(conversationId, isSuccessCall))), nil
}

func (s *Store) ListUnread(ctx context.Context, conversationId, recvId string) ([]*entity.Message, error) {
	out := s.live(conversationId, func(m *entity.Message) bool { return m.RecvId == recvId && m.ReadAt == 0 })
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *Store) ListMessagesBefore(ctx context.Context, conversationId string, beforeId int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return limited(s.live(conversationId, func(m *entity.Message) bool {
		return beforeId <= 0 || m.Id < beforeId
	}), limit), nil
}

func (s *Store) ListMessagesAfter(ctx context.Context, conversationId string, afterId int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	out := s.live(conversationId, func(m *entity.Message) bool { return m.Id > afterId })
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return limited(out, limit), nil
}

func (s *Store) CountMessagesBefore(ctx context.Context, conversationId string, beforeId int64) (int64, error) {
	return int64(len(s.live(conversationId, func(m *entity.Message) bool { return m.Id < beforeId }))), nil
}

func (s *Store) ListPendingCalls(ctx context.Context, conversationId string) ([]*entity.Message, error) {
	out := s.live(conversationId, func(m *entity.Message) bool {
		return m.MsgType == constant.MsgTypeCall && !m.Reach.IsEnd()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

// Bills

func (s *Store) CreateBillIfAbsent(ctx context.Context, bill *entity.BillDetail) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[bill.CallId]; ok {
		return false, nil
	}
	bill.Id = s.newId()
	bill.CreatedAt = entity.NowUnixMilli()
	cp := *bill
	s.bills[bill.CallId] = &cp
	return true, nil
}

func (s *Store) GetBill(ctx context.Context, callId string) (*entity.BillDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bills[callId]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

// Profiles

func (s *Store) GetProfile(ctx context.Context, userId string) (*entity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userId]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetProfiles(ctx context.Context, userIds []string) ([]*entity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Profile
	for _, id := range userIds {
		if p, ok := s.profiles[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile *entity.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := entity.NowUnixMilli()
	if profile.CreatedAt == 0 {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	cp := *profile
	s.profiles[profile.UserId] = &cp
	return nil
}

// Unread cache

func (s *Store) SetUnreadContacts(ctx context.Context, userId string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[userId] = n
	return nil
}

func (s *Store) GetUnreadContacts(ctx context.Context, userId string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.unread[userId]
	return n, ok, nil
}

// Messages returns every message of a conversation including deleted ones,
// oldest first
func (s *Store) Messages(conversationId string) []*entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Message
	for _, m := range s.messages {
		if m.ConversationId == conversationId {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}
