package repository

import (
	"context"

	"github.com/mbeoliero/ringlink/internal/entity"
)

// Query helpers return nil, nil when a row does not exist.

// CallQuery reads call sessions
type CallQuery interface {
	GetCallById(ctx context.Context, id int64) (*entity.CallSession, error)
	GetCallByCallId(ctx context.Context, callId string) (*entity.CallSession, error)
	GetCallByReqId(ctx context.Context, reqId string) (*entity.CallSession, error)
	GetCallByMsgId(ctx context.Context, msgId int64) (*entity.CallSession, error)
	// ListCallsCreatedBetween returns sessions created in [from, to)
	ListCallsCreatedBetween(ctx context.Context, from, to int64) ([]*entity.CallSession, error)
	// CountSuccessCallsBefore counts END_OK calls of caller whose called leg
	// hung up in [from, before)
	CountSuccessCallsBefore(ctx context.Context, callerId string, from, before int64) (int64, error)
}

// CallCommand mutates call sessions
type CallCommand interface {
	CreateCall(ctx context.Context, call *entity.CallSession) error
	// BindReqId sets the provider request id unless one is already bound
	BindReqId(ctx context.Context, id int64, reqId, provider string) (bool, error)
	// CompareAndSwapCall saves call only if the stored row is still at
	// prevVersion, and bumps the version on success
	CompareAndSwapCall(ctx context.Context, call *entity.CallSession, prevVersion int64) (bool, error)
}

// ConversationQuery reads conversations
type ConversationQuery interface {
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
}

// ConversationCommand mutates conversations
type ConversationCommand interface {
	// CreateConversation inserts conv unless a row with its id exists
	CreateConversation(ctx context.Context, conv *entity.Conversation) (bool, error)
	SaveConversation(ctx context.Context, conv *entity.Conversation) error
}

// ContactQuery reads contacts
type ContactQuery interface {
	GetContact(ctx context.Context, ownerId, peerId string) (*entity.Contact, error)
	// ListContacts orders by unread desc then last_at desc
	ListContacts(ctx context.Context, ownerId, keyword string, limit int) ([]*entity.Contact, error)
	CountUnreadContacts(ctx context.Context, ownerId string) (int64, error)
}

// ContactCommand mutates contacts
type ContactCommand interface {
	// CreateContact inserts contact unless the (owner, peer) edge exists
	CreateContact(ctx context.Context, contact *entity.Contact) (bool, error)
	SaveContact(ctx context.Context, contact *entity.Contact) error
}

// MessageQuery reads messages. Soft deleted messages are excluded unless
// fetched by id.
type MessageQuery interface {
	GetMessage(ctx context.Context, id int64) (*entity.Message, error)
	LastMessage(ctx context.Context, conversationId string) (*entity.Message, error)
	LastMessageBy(ctx context.Context, conversationId, senderId string) (*entity.Message, error)
	// LastTimedSince returns the newest timed message created at or after since
	LastTimedSince(ctx context.Context, conversationId string, since int64) (*entity.Message, error)
	// RecentByType returns up to limit messages of msgType, newest first
	RecentByType(ctx context.Context, conversationId string, msgType int32, limit int) ([]*entity.Message, error)
	// HasSuccessCallBetween reports an END_OK call message with id in [fromId, toId]
	HasSuccessCallBetween(ctx context.Context, conversationId string, fromId, toId int64) (bool, error)
	CountMessages(ctx context.Context, conversationId string) (int64, error)
	CountSuccessCalls(ctx context.Context, conversationId string) (int64, error)
	// ListUnread returns messages received by recvId not read yet
	ListUnread(ctx context.Context, conversationId, recvId string) ([]*entity.Message, error)
	// ListMessagesBefore returns up to limit messages with id < beforeId
	// (any id when beforeId is 0), newest first
	ListMessagesBefore(ctx context.Context, conversationId string, beforeId int64, limit int) ([]*entity.Message, error)
	// ListMessagesAfter returns up to limit messages with id > afterId, oldest first
	ListMessagesAfter(ctx context.Context, conversationId string, afterId int64, limit int) ([]*entity.Message, error)
	CountMessagesBefore(ctx context.Context, conversationId string, beforeId int64) (int64, error)
	// ListPendingCalls returns call messages whose reach is not terminal
	ListPendingCalls(ctx context.Context, conversationId string) ([]*entity.Message, error)
}

// MessageCommand mutates messages
type MessageCommand interface {
	CreateMessage(ctx context.Context, msg *entity.Message) error
	SaveMessage(ctx context.Context, msg *entity.Message) error
}

// BillQuery reads bills
type BillQuery interface {
	GetBill(ctx context.Context, callId string) (*entity.BillDetail, error)
}

// BillCommand mutates bills
type BillCommand interface {
	// CreateBillIfAbsent inserts bill unless one exists for its call id
	CreateBillIfAbsent(ctx context.Context, bill *entity.BillDetail) (bool, error)
}

// ProfileQuery reads profiles
type ProfileQuery interface {
	GetProfile(ctx context.Context, userId string) (*entity.Profile, error)
	GetProfiles(ctx context.Context, userIds []string) ([]*entity.Profile, error)
}

// ProfileCommand mutates profiles
type ProfileCommand interface {
	SaveProfile(ctx context.Context, profile *entity.Profile) error
}

// Store is the full persistence surface used by the services
type Store interface {
	CallQuery
	CallCommand
	ConversationQuery
	ConversationCommand
	ContactQuery
	ContactCommand
	MessageQuery
	MessageCommand
	BillQuery
	BillCommand
	ProfileQuery
	ProfileCommand

	// WithConversationLock runs fn in one transaction holding the lock of the
	// conversation. fn must use the Store it is given.
	WithConversationLock(ctx context.Context, conversationId string, fn func(Store) error) error
}

// UnreadCache caches the per-user count of contacts with unread messages
type UnreadCache interface {
	SetUnreadContacts(ctx context.Context, userId string, n int64) error
	GetUnreadContacts(ctx context.Context, userId string) (int64, bool, error)
}
