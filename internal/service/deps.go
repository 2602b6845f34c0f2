package service

import (
	"context"

	"github.com/mbeoliero/ringlink/internal/entity"
)

// Notifier fans events out to connected clients. Delivery is best effort:
// implementations log failures and never block the caller on slow clients.
type Notifier interface {
	Push(ctx context.Context, event int, payload any, userIds []string)
}

// EventPublisher hands domain events to the message broker
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// BillingHook is invoked once a call ends successfully. It must be safe to
// call more than once for the same call id.
type BillingHook interface {
	RecordSuccessfulCall(ctx context.Context, req *BillRequest) (*entity.BillDetail, error)
}

// ConvEvent is pushed to both sides when one of them opens the conversation
type ConvEvent struct {
	Evt            int    `json:"evt"`
	ConversationId string `json:"cid"`
	UserId         string `json:"usr_id"`
}

// MessageEvent is pushed to the receiver of a new message
type MessageEvent struct {
	Type           int32  `json:"type"`
	Evt            int    `json:"evt"`
	MsgId          int64  `json:"mid"`
	ConversationId string `json:"cid"`
}

// ReachEvent is pushed to both sides when a call message changes outcome
type ReachEvent struct {
	Type           int32  `json:"type"`
	Evt            int    `json:"evt"`
	MsgId          int64  `json:"mid"`
	ConversationId string `json:"cid"`
	ReachDesc      string `json:"reachd"`
	Reach          int32  `json:"reach"`
	Summary        string `json:"summary"`
}

// BillEvent is pushed to the payer of an unpaid bill
type BillEvent struct {
	Type           int32  `json:"type"`
	Evt            int    `json:"evt"`
	MsgId          int64  `json:"mid"`
	ConversationId string `json:"cid"`
	Reach          int32  `json:"reach"`
	BillId         int64  `json:"hid"`
}

// BillRecorded is published to the broker for every new bill
type BillRecorded struct {
	BillId   int64  `json:"bill_id"`
	CallId   string `json:"call_id"`
	UserId   string `json:"user_id"`
	Duration int64  `json:"duration"`
	Amount   int32  `json:"amount"`
	DayIndex int32  `json:"day_index"`
	IsFree   bool   `json:"is_free"`
	BillAt   int64  `json:"bill_at"`
}

// MissedCallEvent asks the reminder worker to tell the called user about a
// call they did not pick up
type MissedCallEvent struct {
	CallId         string `json:"call_id"`
	MsgId          int64  `json:"mid"`
	ConversationId string `json:"cid"`
	CallerId       string `json:"caller_id"`
	CalledId       string `json:"called_id"`
	TouchAt        int64  `json:"touch_at"`
}
