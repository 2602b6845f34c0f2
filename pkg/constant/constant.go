package constant

// CallStatus is the progress of a double-ring call as shown to users
type CallStatus int32

// Call statuses
const (
	CallStatusNone      CallStatus = 0   // Not a call
	CallStatusOutCaller CallStatus = 210 // Dialing the caller leg
	CallStatusOutCalled CallStatus = 220 // Caller answered, dialing the called leg
	CallStatusOnCalling CallStatus = 300 // Both legs connected
	CallStatusEndCaller CallStatus = 410 // Caller never connected
	CallStatusEndCalled CallStatus = 420 // Called party never connected
	CallStatusEndOk     CallStatus = 500 // Both legs talked
)

var callStatusLabels = map[CallStatus]string{
	CallStatusNone:      "-",
	CallStatusOutCaller: "正在呼叫",
	CallStatusOutCalled: "正在转接",
	CallStatusOnCalling: "正在通话",
	CallStatusEndCaller: "呼叫取消",
	CallStatusEndCalled: "暂未接通",
	CallStatusEndOk:     "通话结束",
}

// Label returns the user facing text of the status
func (s CallStatus) Label() string {
	if l, ok := callStatusLabels[s]; ok {
		return l
	}
	return callStatusLabels[CallStatusNone]
}

// IsEnd reports whether the status is terminal
func (s CallStatus) IsEnd() bool {
	return s == CallStatusEndCaller || s == CallStatusEndCalled || s == CallStatusEndOk
}

// Rank orders statuses along the forward path. Terminal states share the top rank.
func (s CallStatus) Rank() int {
	switch s {
	case CallStatusOutCaller:
		return 1
	case CallStatusOutCalled:
		return 2
	case CallStatusOnCalling:
		return 3
	case CallStatusEndCaller, CallStatusEndCalled, CallStatusEndOk:
		return 4
	default:
		return 0
	}
}

// TerminalCallStatuses lists the terminal statuses
var TerminalCallStatuses = []CallStatus{CallStatusEndCaller, CallStatusEndCalled, CallStatusEndOk}

// Message types
const (
	MsgTypeTrigger = 1 // Generated when a code is scanned
	MsgTypeStay    = 2 // Free text left for the other side
	MsgTypeCall    = 5 // Double-ring call record
)

// Trigger kinds
const (
	TriggerOCR      = 11 // Plate recognition
	TriggerSymbol   = 15 // Scene code scan
	TriggerUserCode = 16 // User code scan
)

// IsTriggerKind checks the trigger kind is known
func IsTriggerKind(kind int) bool {
	return kind == TriggerOCR || kind == TriggerSymbol || kind == TriggerUserCode
}

// Client push events
const (
	EventOpenConv   = 10 // Conversation opened, unread changed
	EventNewMessage = 20 // New message
	EventReachCall  = 52 // Call message reach changed
	EventBillPush   = 88 // Call bill pushed
)

// Call providers
const (
	ProviderYTX = "ytx"
)

// Broker routing keys
const (
	RoutingBillRecorded = "bill.recorded"
	RoutingCallMissed   = "call.missed"
)

// Message contents written by the ledger
const (
	CallingContent  = "正在呼叫..."
	TriggerSelfWho  = "我"
	TriggerOtherWho = "对方"
)

// Online status
const (
	StatusOffline = 0
	StatusOnline  = 1
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWeb     = 5
	PlatformIdMini    = 6
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyOnline        = "online:%s"         // online:{user_id}
	redisKeyContactUnread = "contact:unread:%s" // contact:unread:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "ringlink:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyOnline() string        { return redisKeyPrefix + redisKeyOnline }
func RedisKeyContactUnread() string { return redisKeyPrefix + redisKeyContactUnread }
