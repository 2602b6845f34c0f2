package entity

import (
	"encoding/json"
	"strings"

	"github.com/mbeoliero/ringlink/pkg/constant"
	"gorm.io/datatypes"
)

// TriggerBody is the body of a trigger message
type TriggerBody struct {
	Trigger int    `json:"trigger"`
	Symbol  string `json:"symbol,omitempty"`
}

// CallBody is the body of a call message
type CallBody struct {
	CallId string `json:"call_id"`
}

// Message is one entry of a conversation log
type Message struct {
	Id             int64               `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string              `json:"conversation_id" gorm:"column:conversation_id;index:idx_conv_id,priority:1"`
	SenderId       string              `json:"sender_id" gorm:"column:sender_id"`
	RecvId         string              `json:"recv_id" gorm:"column:recv_id"`
	MsgType        int32               `json:"msg_type" gorm:"column:msg_type"`
	Content        string              `json:"content" gorm:"column:content"`
	Body           datatypes.JSON      `json:"body" gorm:"column:body;type:json"`
	Location       datatypes.JSON      `json:"location,omitempty" gorm:"column:location;type:json"`
	Reach          constant.CallStatus `json:"reach" gorm:"column:reach"`
	ReadAt         int64               `json:"read_at" gorm:"column:read_at"`
	IsDel          bool                `json:"is_del" gorm:"column:is_del"`
	IsTimed        bool                `json:"is_timed" gorm:"column:is_timed"`
	Extra          Extra               `json:"-" gorm:"column:extra;type:json"`
	CreatedAt      int64               `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt      int64               `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// NewMessage builds a message sent by senderId to the other member of conv
func NewMessage(conv *Conversation, senderId string, msgType int32, content string) *Message {
	now := NowUnixMilli()
	return &Message{
		ConversationId: conv.Id,
		SenderId:       senderId,
		RecvId:         conv.Peer(senderId),
		MsgType:        msgType,
		Content:        content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetBody encodes v as the message body
func (m *Message) SetBody(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.Body = datatypes.JSON(b)
	return nil
}

// IsRead reports whether the receiver has read the message
func (m *Message) IsRead() bool {
	return m.ReadAt > 0
}

// IsTrigger reports a trigger message
func (m *Message) IsTrigger() bool {
	return m.MsgType == constant.MsgTypeTrigger
}

// IsCall reports a call message
func (m *Message) IsCall() bool {
	return m.MsgType == constant.MsgTypeCall
}

// TriggerBody decodes the body of a trigger message
func (m *Message) TriggerBody() TriggerBody {
	var b TriggerBody
	_ = json.Unmarshal(m.Body, &b)
	return b
}

// CallBody decodes the body of a call message
func (m *Message) CallBody() CallBody {
	var b CallBody
	_ = json.Unmarshal(m.Body, &b)
	return b
}

// MemoFor renders the message preview as seen by viewer. Trigger contents
// get a who prefix and newlines are flattened.
func (m *Message) MemoFor(viewer string) string {
	memo := m.Content
	if m.IsTrigger() {
		who := constant.TriggerOtherWho
		if m.SenderId == viewer {
			who = constant.TriggerSelfWho
		}
		memo = who + memo
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(memo, "\n", " ")), " ")
}

// SnapshotFor builds the contact snapshot of the message for viewer
func (m *Message) SnapshotFor(viewer string) LastMsgSnapshot {
	return LastMsgSnapshot{
		Memo: m.MemoFor(viewer),
		Self: m.SenderId == viewer,
		Id:   m.Id,
		By:   m.SenderId,
	}
}

// Audit appends a diagnostic entry
func (m *Message) Audit(kind string, fields map[string]any) {
	appendExtra(&m.Extra, kind, fields)
}

// MessageInfo is the API view of a message
type MessageInfo struct {
	Id             int64               `json:"id"`
	ConversationId string              `json:"conversation_id"`
	SenderId       string              `json:"sender_id"`
	MsgType        int32               `json:"msg_type"`
	Content        string              `json:"content"`
	Body           datatypes.JSON      `json:"body"`
	Reach          constant.CallStatus `json:"reach,omitempty"`
	ReadAt         int64               `json:"read_at"`
	IsTimed        bool                `json:"is_timed"`
	Self           bool                `json:"self"`
	CreatedAt      int64               `json:"created_at"`
}

// ToMessageInfo converts Message to MessageInfo for viewer
func (m *Message) ToMessageInfo(viewer string) *MessageInfo {
	return &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		MsgType:        m.MsgType,
		Content:        m.MemoFor(viewer),
		Body:           m.Body,
		Reach:          m.Reach,
		ReadAt:         m.ReadAt,
		IsTimed:        m.IsTimed,
		Self:           m.SenderId == viewer,
		CreatedAt:      m.CreatedAt,
	}
}

// MessageReach is the read state and call outcome of one message
type MessageReach struct {
	Id      int64               `json:"id"`
	Reach   constant.CallStatus `json:"reach"`
	Content string              `json:"content"`
	ReadAt  int64               `json:"read_at"`
	IsDel   bool                `json:"is_del"`
}

// ToReach converts Message to MessageReach
func (m *Message) ToReach() *MessageReach {
	return &MessageReach{Id: m.Id, Reach: m.Reach, Content: m.Content, ReadAt: m.ReadAt, IsDel: m.IsDel}
}
