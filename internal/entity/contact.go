package entity

import (
	"strings"

	"gorm.io/datatypes"
)

// LastMsgSnapshot caches the newest message as seen by the owner
type LastMsgSnapshot struct {
	Memo string `json:"memo"`
	Self bool   `json:"self"`
	Id   int64  `json:"id"`
	By   string `json:"by"`
}

// Contact is one directed edge of a conversation, owner -> peer
type Contact struct {
	Id             int64                               `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	OwnerId        string                              `json:"owner_id" gorm:"column:owner_id;uniqueIndex:uk_owner_peer"`
	PeerId         string                              `json:"peer_id" gorm:"column:peer_id;uniqueIndex:uk_owner_peer"`
	ConversationId string                              `json:"conversation_id" gorm:"column:conversation_id;index"`
	Unread         int32                               `json:"unread" gorm:"column:unread"`
	ReadAt         int64                               `json:"read_at" gorm:"column:read_at"`
	LastMsg        datatypes.JSONType[LastMsgSnapshot] `json:"last_msg" gorm:"column:last_msg;type:json"`
	LastAt         int64                               `json:"last_at" gorm:"column:last_at"`
	Keywords       string                              `json:"-" gorm:"column:keywords"`
	IsBlock        bool                                `json:"is_block" gorm:"column:is_block"`
	Remark         string                              `json:"remark" gorm:"column:remark"`
	Extra          Extra                               `json:"-" gorm:"column:extra;type:json"`
	CreatedAt      int64                               `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt      int64                               `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}

// NewContact builds the owner -> peer edge of a conversation
func NewContact(ownerId, peerId, conversationId string) *Contact {
	now := NowUnixMilli()
	return &Contact{
		OwnerId:        ownerId,
		PeerId:         peerId,
		ConversationId: conversationId,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AddKeyword appends a word to the search index. "|" and spaces are
// stripped and a word already present is skipped.
func (c *Contact) AddKeyword(word string) bool {
	word = strings.NewReplacer("|", "", " ", "").Replace(word)
	if word == "" {
		return false
	}
	for _, k := range strings.Split(c.Keywords, "|") {
		if k == word {
			return false
		}
	}
	c.Keywords += "|" + word
	return true
}

// MatchKeyword is a case-insensitive substring match on the index
func (c *Contact) MatchKeyword(kw string) bool {
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Keywords), strings.ToLower(kw))
}

// Audit appends a diagnostic entry
func (c *Contact) Audit(kind string, fields map[string]any) {
	appendExtra(&c.Extra, kind, fields)
}

// ContactInfo is the API view of a contact
type ContactInfo struct {
	PeerId         string          `json:"peer_id"`
	ConversationId string          `json:"conversation_id"`
	Unread         int32           `json:"unread"`
	ReadAt         int64           `json:"read_at"`
	LastMsg        LastMsgSnapshot `json:"last_msg"`
	LastAt         int64           `json:"last_at"`
	IsBlock        bool            `json:"is_block"`
	Remark         string          `json:"remark"`
}

// ToContactInfo converts Contact to ContactInfo
func (c *Contact) ToContactInfo() *ContactInfo {
	return &ContactInfo{
		PeerId:         c.PeerId,
		ConversationId: c.ConversationId,
		Unread:         c.Unread,
		ReadAt:         c.ReadAt,
		LastMsg:        c.LastMsg.Data(),
		LastAt:         c.LastAt,
		IsBlock:        c.IsBlock,
		Remark:         c.Remark,
	}
}
