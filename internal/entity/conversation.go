package entity

import "gorm.io/datatypes"

// ConversationAttrs holds free-form conversation attributes
type ConversationAttrs struct {
	Creator string `json:"creator,omitempty"`
}

// Conversation is the symmetric aggregate of a user pair
type Conversation struct {
	Id        string                                `json:"id" gorm:"column:id;primaryKey;size:36"`
	UserA     string                                `json:"user_a" gorm:"column:user_a;index"`
	UserB     string                                `json:"user_b" gorm:"column:user_b;index"`
	LastId    int64                                 `json:"last_id" gorm:"column:last_id"`
	LastBy    string                                `json:"last_by" gorm:"column:last_by"`
	LastAt    int64                                 `json:"last_at" gorm:"column:last_at"`
	Symbol    string                                `json:"symbol" gorm:"column:symbol"`
	Called    int32                                 `json:"called" gorm:"column:called"`
	Count     int32                                 `json:"count" gorm:"column:count"`
	Attrs     datatypes.JSONType[ConversationAttrs] `json:"attrs" gorm:"column:attrs;type:json"`
	Extra     Extra                                 `json:"-" gorm:"column:extra;type:json"`
	CreatedAt int64                                 `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64                                 `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// NewConversation builds the conversation of a pair, members stored sorted
func NewConversation(userA, userB, creator, symbol string) *Conversation {
	if userB < userA {
		userA, userB = userB, userA
	}
	now := NowUnixMilli()
	return &Conversation{
		Id:        GenConversationId(userA, userB),
		UserA:     userA,
		UserB:     userB,
		Symbol:    symbol,
		Attrs:     datatypes.NewJSONType(ConversationAttrs{Creator: creator}),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Members returns both participants
func (c *Conversation) Members() []string {
	return []string{c.UserA, c.UserB}
}

// IsMember checks whether userId belongs to the conversation
func (c *Conversation) IsMember(userId string) bool {
	return userId != "" && (userId == c.UserA || userId == c.UserB)
}

// Peer returns the other participant
func (c *Conversation) Peer(userId string) string {
	if userId == c.UserA {
		return c.UserB
	}
	return c.UserA
}

// Audit appends a diagnostic entry
func (c *Conversation) Audit(kind string, fields map[string]any) {
	appendExtra(&c.Extra, kind, fields)
}
