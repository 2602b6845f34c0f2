package sdk

// Call statuses, also used as the reach of call messages
const (
	CallStatusInit      = 0
	CallStatusOutCaller = 210 // Dialing the caller
	CallStatusOutCalled = 220 // Caller answered, dialing the called leg
	CallStatusOnCalling = 300 // Both legs talking
	CallStatusEndCaller = 410 // Caller never answered
	CallStatusEndCalled = 420 // Called never answered
	CallStatusEndOk     = 500 // Both legs talked
)

// IsCallEnd reports whether a call status is terminal
func IsCallEnd(status int32) bool {
	return status >= CallStatusEndCaller
}

// Message types
const (
	MsgTypeTrigger = 1
	MsgTypeStay    = 2
	MsgTypeCall    = 5
)

// Trigger kinds
const (
	TriggerOCR       = 11
	TriggerSceneCode = 15
	TriggerUserCode  = 16
)

// Push event codes
const (
	EventOpenConv   = 10
	EventNewMessage = 20
	EventReachCall  = 52
	EventBillPush   = 88
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWeb     = 5
)
