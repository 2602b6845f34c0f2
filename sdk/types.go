package sdk

import "encoding/json"

// Response represents the standard API response
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ProfileInfo is the caller's own profile, the number comes back masked
type ProfileInfo struct {
	UserId      string `json:"user_id"`
	Nickname    string `json:"nickname"`
	NumberBound bool   `json:"number_bound"`
	Number      string `json:"number,omitempty"`
}

// UpdateProfileRequest updates nickname and number, empty fields are kept
type UpdateProfileRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Number   string `json:"number,omitempty"`
}

// LastMsgSnapshot is the contact list preview of the newest message
type LastMsgSnapshot struct {
	Memo string `json:"memo"`
	Self bool   `json:"self"`
	Id   int64  `json:"id"`
	By   string `json:"by"`
}

// ContactInfo represents one entry of the contact list
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

// PeerRequest names the other side of a conversation
type PeerRequest struct {
	PeerId string `json:"peer_id"`
	Symbol string `json:"symbol,omitempty"`
}

// BlockRequest toggles the block flag on a contact
type BlockRequest struct {
	PeerId string `json:"peer_id"`
	Block  bool   `json:"block"`
}

// RemarkRequest sets a note on a contact
type RemarkRequest struct {
	PeerId string `json:"peer_id"`
	Remark string `json:"remark"`
}

// UnreadCount is the number of contacts holding unread messages
type UnreadCount struct {
	Count int64 `json:"count"`
}

// MessageInfo represents message info as seen by the caller
type MessageInfo struct {
	Id             int64           `json:"id"`
	ConversationId string          `json:"conversation_id"`
	SenderId       string          `json:"sender_id"`
	MsgType        int32           `json:"msg_type"`
	Content        string          `json:"content"`
	Body           json.RawMessage `json:"body"`
	Reach          int32           `json:"reach,omitempty"`
	ReadAt         int64           `json:"read_at"`
	IsTimed        bool            `json:"is_timed"`
	Self           bool            `json:"self"`
	CreatedAt      int64           `json:"created_at"`
}

// CallBody is the body of a call message
type CallBody struct {
	CallId string `json:"call_id"`
}

// MessagePage is one page of history, More counts older messages
type MessagePage struct {
	Messages []*MessageInfo `json:"messages"`
	More     int64          `json:"more"`
}

// MessageReach is the read state and call outcome of one message
type MessageReach struct {
	Id      int64  `json:"id"`
	Reach   int32  `json:"reach"`
	Content string `json:"content"`
	ReadAt  int64  `json:"read_at"`
	IsDel   bool   `json:"is_del"`
}

// TriggerRequest records a scan of the peer's code
type TriggerRequest struct {
	PeerId  string `json:"peer_id"`
	Trigger int    `json:"trigger"`
	Content string `json:"content"`
	Symbol  string `json:"symbol,omitempty"`
}

// TriggerResult reports the trigger message, Deduped when an earlier one
// was reused
type TriggerResult struct {
	MsgId   int64 `json:"msg_id"`
	Deduped bool  `json:"deduped"`
}

// StayRequest carries a free text message
type StayRequest struct {
	PeerId  string `json:"peer_id"`
	Content string `json:"content"`
}

// CallInfo is a call session as seen by one of its parties
type CallInfo struct {
	CallId         string `json:"call_id"`
	MsgId          int64  `json:"msg_id"`
	CallerId       string `json:"caller_id"`
	CalledId       string `json:"called_id"`
	Status         int32  `json:"status"`
	StatusAt       int64  `json:"status_at"`
	CallerAnswerAt int64  `json:"caller_answer_at"`
	CallerHangupAt int64  `json:"caller_hangup_at"`
	CalledAnswerAt int64  `json:"called_answer_at"`
	CalledHangupAt int64  `json:"called_hangup_at"`
	Duration       int32  `json:"duration"`
	CallState      string `json:"call_state"`
	Fee            int32  `json:"fee"`
	CreatedAt      int64  `json:"created_at"`
}

// CallRequest names a call session
type CallRequest struct {
	CallId string `json:"call_id"`
}

// PollOutcome reports what a poll did to a call session
type PollOutcome struct {
	CallId     string `json:"call_id"`
	Status     int32  `json:"status"`
	Changed    bool   `json:"changed"`
	Stale      bool   `json:"stale,omitempty"`
	Ignored    string `json:"ignored,omitempty"`
	Pending    bool   `json:"pending,omitempty"`
	TooEarly   bool   `json:"too_early,omitempty"`
	Superseded bool   `json:"superseded,omitempty"`
}

// PushEvent is one event received on the push channel
type PushEvent struct {
	Event   int             `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
