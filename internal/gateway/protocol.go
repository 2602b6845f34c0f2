package gateway

import "encoding/json"

// WSRequest represents a WebSocket request message
type WSRequest struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type
	MsgIncr       string          `json:"msg_incr"`       // Client message counter/trace Id
	OperationId   string          `json:"operation_id"`   // Operation Id
	SendId        string          `json:"send_id"`        // Sender user Id
	Data          json.RawMessage `json:"data"`           // Business data
}

// WSResponse represents a WebSocket response message
type WSResponse struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type (echo back)
	MsgIncr       string          `json:"msg_incr"`       // Message counter (echo back)
	OperationId   string          `json:"operation_id"`   // Operation Id (echo back)
	ErrCode       int             `json:"err_code"`       // Error code, 0 = success
	ErrMsg        string          `json:"err_msg"`        // Error message
	Data          json.RawMessage `json:"data,omitempty"` // Response data
}

// PushEventData is the body of a WSPushEvent frame
type PushEventData struct {
	Event   int             `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// OpenConvReq represents open conversation request data
type OpenConvReq struct {
	PeerId string `json:"peer_id"`
}

// OpenConvResp represents open conversation response data
type OpenConvResp struct {
	ConversationId string `json:"conversation_id"`
	Unread         int32  `json:"unread"`
	ReadAt         int64  `json:"read_at"`
}

// UnreadCountResp represents unread contact count response data
type UnreadCountResp struct {
	Count int64 `json:"count"`
}
