package gateway

import "time"

// WebSocket protocol constants
const (
	// Request identifiers
	WSHeartbeat   = 1001 // Keep alive, refreshes presence
	WSUnreadCount = 1002 // Count contacts holding unread messages
	WSOpenConv    = 1003 // Mark a conversation read

	// Response identifiers
	WSPushEvent     = 2001 // Server push event
	WSKickOnlineMsg = 2002 // Kick user offline
)

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// PresenceTTL is how long a user stays online in redis without a refresh
	PresenceTTL = 60 * time.Second
)

// Query parameter keys
const (
	QueryToken      = "token"
	QuerySendId     = "send_id"
	QueryPlatformId = "platform_id"
	QuerySDKType    = "sdk_type"
)
