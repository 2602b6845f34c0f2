package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/pkg/errcode"
)

// MessagePage is one page of history, newest first
type MessagePage struct {
	Messages []*entity.MessageInfo `json:"messages"`
	More     int64                 `json:"more"`
}

// ListContacts returns owner's contacts, unread first then most recent.
// keyword filters on the contact's search index.
func (s *LedgerService) ListContacts(ctx context.Context, ownerId, keyword string) ([]*entity.ContactInfo, error) {
	contacts, err := s.store.ListContacts(ctx, ownerId, keyword, s.rules.ShowLimit)
	if err != nil {
		return nil, bizErr(ctx, "list contacts", err)
	}
	infos := make([]*entity.ContactInfo, 0, len(contacts))
	for _, c := range contacts {
		infos = append(infos, c.ToContactInfo())
	}
	return infos, nil
}

// GetContact returns owner's contact with peer
func (s *LedgerService) GetContact(ctx context.Context, ownerId, peerId string) (*entity.ContactInfo, error) {
	contact, err := s.contactOf(ctx, ownerId, peerId)
	if err != nil {
		return nil, err
	}
	return contact.ToContactInfo(), nil
}

// UnreadContactCount counts owner's unblocked contacts holding unread
// messages. The cached value is used when present.
func (s *LedgerService) UnreadContactCount(ctx context.Context, ownerId string) (int64, error) {
	if s.unread != nil {
		n, ok, err := s.unread.GetUnreadContacts(ctx, ownerId)
		if err == nil && ok {
			return n, nil
		}
		if err != nil {
			log.CtxWarn(ctx, "read unread cache failed: user_id=%s, err=%v", ownerId, err)
		}
	}
	n, err := s.store.CountUnreadContacts(ctx, ownerId)
	if err != nil {
		return 0, bizErr(ctx, "count unread contacts", err)
	}
	if s.unread != nil {
		if err := s.unread.SetUnreadContacts(ctx, ownerId, n); err != nil {
			log.CtxWarn(ctx, "cache unread contacts failed: user_id=%s, err=%v", ownerId, err)
		}
	}
	return n, nil
}

// LatestMessages returns a page of history older than beforeId (the newest
// page when beforeId is 0) and how many older messages remain
func (s *LedgerService) LatestMessages(ctx context.Context, ownerId, peerId string, beforeId int64) (*MessagePage, error) {
	contact, err := s.contactOf(ctx, ownerId, peerId)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessagesBefore(ctx, contact.ConversationId, beforeId, s.rules.ShowLimit)
	if err != nil {
		return nil, bizErr(ctx, "list messages", err)
	}

	page := &MessagePage{Messages: toMessageInfos(msgs, ownerId)}
	if len(msgs) > 0 {
		oldest := msgs[len(msgs)-1].Id
		if page.More, err = s.store.CountMessagesBefore(ctx, contact.ConversationId, oldest); err != nil {
			return nil, bizErr(ctx, "count messages", err)
		}
	}
	return page, nil
}

// MessagesAfter returns messages newer than afterId, oldest first
func (s *LedgerService) MessagesAfter(ctx context.Context, ownerId, peerId string, afterId int64) ([]*entity.MessageInfo, error) {
	contact, err := s.contactOf(ctx, ownerId, peerId)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessagesAfter(ctx, contact.ConversationId, afterId, 0)
	if err != nil {
		return nil, bizErr(ctx, "list messages", err)
	}
	return toMessageInfos(msgs, ownerId), nil
}

// MessageReach returns the read state and call outcome of a message the
// user sent or received
func (s *LedgerService) MessageReach(ctx context.Context, userId string, msgId int64) (*entity.MessageReach, error) {
	msg, err := s.store.GetMessage(ctx, msgId)
	if err != nil {
		return nil, bizErr(ctx, "get message", err)
	}
	if msg == nil {
		return nil, errcode.ErrMessageNotFound
	}
	if msg.SenderId != userId && msg.RecvId != userId {
		return nil, errcode.ErrNoPermission
	}
	return msg.ToReach(), nil
}

func (s *LedgerService) contactOf(ctx context.Context, ownerId, peerId string) (*entity.Contact, error) {
	contact, err := s.store.GetContact(ctx, ownerId, peerId)
	if err != nil {
		return nil, bizErr(ctx, "get contact", err)
	}
	if contact == nil {
		return nil, errcode.ErrContactNotFound
	}
	return contact, nil
}

func toMessageInfos(msgs []*entity.Message, viewer string) []*entity.MessageInfo {
	infos := make([]*entity.MessageInfo, 0, len(msgs))
	for _, m := range msgs {
		infos = append(infos, m.ToMessageInfo(viewer))
	}
	return infos
}
