package entity

import (
	"fmt"
	"strings"

	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/phone"
)

// CallSession is one attempted double-ring call
type CallSession struct {
	Id             int64               `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CallId         string              `json:"call_id" gorm:"column:call_id;uniqueIndex"`
	MsgId          int64               `json:"msg_id" gorm:"column:msg_id;uniqueIndex"`
	CallerId       string              `json:"caller_id" gorm:"column:caller_id;index"`
	CalledId       string              `json:"called_id" gorm:"column:called_id;index"`
	ReqId          *string             `json:"req_id" gorm:"column:req_id;uniqueIndex"`
	Provider       string              `json:"provider" gorm:"column:provider"`
	Status         constant.CallStatus `json:"status" gorm:"column:status;index"`
	StatusAt       int64               `json:"status_at" gorm:"column:status_at"`
	CallerNumber   string              `json:"-" gorm:"column:caller;serializer:sealed"`
	CalledNumber   string              `json:"-" gorm:"column:called;serializer:sealed"`
	CallerAnswerAt int64               `json:"caller_answer_at" gorm:"column:caller_answer_at"`
	CallerHangupAt int64               `json:"caller_hangup_at" gorm:"column:caller_hangup_at"`
	CalledAnswerAt int64               `json:"called_answer_at" gorm:"column:called_answer_at"`
	CalledHangupAt int64               `json:"called_hangup_at" gorm:"column:called_hangup_at;index"`
	Duration       int32               `json:"duration" gorm:"column:duration"`
	CallState      string              `json:"call_state" gorm:"column:call_state"`
	Cost           int32               `json:"cost" gorm:"column:cost"`
	Fee            int32               `json:"fee" gorm:"column:fee"`
	Extra          Extra               `json:"-" gorm:"column:extra;type:json"`
	Version        int64               `json:"-" gorm:"column:version;not null;default:0"`
	CreatedAt      int64               `json:"created_at" gorm:"column:created_at;index;autoCreateTime:milli"`
	UpdatedAt      int64               `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for CallSession
func (CallSession) TableName() string {
	return "call_sessions"
}

// Leg identifies one half of a bridged call
type Leg int

const (
	LegUnknown Leg = iota
	LegCaller
	LegCalled
)

func (l Leg) String() string {
	switch l {
	case LegCaller:
		return "caller"
	case LegCalled:
		return "called"
	default:
		return "unknown"
	}
}

// LegState is the per-leg state reported by status pushes
type LegState string

const (
	LegCallout    LegState = "callout"
	LegAlerting   LegState = "alerting"
	LegAnswer     LegState = "answer"
	LegDisconnect LegState = "disconnect"
)

// Valid reports whether s is a known leg state
func (s LegState) Valid() bool {
	switch s {
	case LegCallout, LegAlerting, LegAnswer, LegDisconnect:
		return true
	}
	return false
}

// LegTimes holds the four per-leg timestamps in unix millis, 0 when unknown
type LegTimes struct {
	CallerAnswerAt int64 `json:"caller_answer_at"`
	CallerHangupAt int64 `json:"caller_hangup_at"`
	CalledAnswerAt int64 `json:"called_answer_at"`
	CalledHangupAt int64 `json:"called_hangup_at"`
}

func legSeconds(answer, hangup int64) int64 {
	if answer == 0 || hangup == 0 || hangup <= answer {
		return 0
	}
	return (hangup - answer) / 1000
}

// CallerSeconds is the caller leg connected duration
func (l LegTimes) CallerSeconds() int64 {
	return legSeconds(l.CallerAnswerAt, l.CallerHangupAt)
}

// CalledSeconds is the called leg connected duration
func (l LegTimes) CalledSeconds() int64 {
	return legSeconds(l.CalledAnswerAt, l.CalledHangupAt)
}

// LatestAt returns the newest known timestamp
func (l LegTimes) LatestAt() int64 {
	return max(l.CallerAnswerAt, l.CallerHangupAt, l.CalledAnswerAt, l.CalledHangupAt)
}

// FinalStatus derives the terminal status from connected durations
func (l LegTimes) FinalStatus() constant.CallStatus {
	switch {
	case l.CallerSeconds() > 0 && l.CalledSeconds() > 0:
		return constant.CallStatusEndOk
	case l.CallerSeconds() > 0:
		return constant.CallStatusEndCalled
	default:
		return constant.CallStatusEndCaller
	}
}

// FillsMissing reports whether o knows a timestamp that l lacks
func (l LegTimes) FillsMissing(o LegTimes) bool {
	return (l.CallerAnswerAt == 0 && o.CallerAnswerAt != 0) ||
		(l.CallerHangupAt == 0 && o.CallerHangupAt != 0) ||
		(l.CalledAnswerAt == 0 && o.CalledAnswerAt != 0) ||
		(l.CalledHangupAt == 0 && o.CalledHangupAt != 0)
}

// PushEvent is a per-leg status push from the provider
type PushEvent struct {
	ReqId     string   `json:"req_id"`
	Phone     string   `json:"phone"`
	State     LegState `json:"state"`
	At        int64    `json:"at"`
	StateDesc string   `json:"state_desc"`
}

// CDR is the provider's call detail record
type CDR struct {
	ReqId      string   `json:"req_id"`
	Legs       LegTimes `json:"legs"`
	Duration   int32    `json:"duration"`
	CostCents  int32    `json:"cost_cents"`
	StateDesc  string   `json:"state_desc"`
	CustomParm string   `json:"custom_parm"`
}

// Ignore reasons for events that leave the session untouched
const (
	IgnoreTerminal   = "terminal"
	IgnoreUnknownLeg = "unknown_leg"
)

// Transition describes what an event did to a session
type Transition struct {
	From        constant.CallStatus
	To          constant.CallStatus
	StatusAt    int64
	Stale       bool
	Ignored     string
	LegsChanged bool
}

// Changed reports a status change
func (t Transition) Changed() bool {
	return t.From != t.To
}

// EnteredEnd reports a change into a terminal status
func (t Transition) EnteredEnd() bool {
	return t.Changed() && t.To.IsEnd()
}

// NewCallSession creates a session for a call message, ringing the caller
func NewCallSession(callId string, msgId int64, callerId, calledId, callerNumber, calledNumber string) *CallSession {
	now := NowUnixMilli()
	return &CallSession{
		CallId:       callId,
		MsgId:        msgId,
		CallerId:     callerId,
		CalledId:     calledId,
		Status:       constant.CallStatusOutCaller,
		CallerNumber: callerNumber,
		CalledNumber: calledNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsEnd reports whether the session is terminal
func (c *CallSession) IsEnd() bool {
	return c.Status.IsEnd()
}

// RequestId returns the provider request id or ""
func (c *CallSession) RequestId() string {
	if c.ReqId == nil {
		return ""
	}
	return *c.ReqId
}

// Legs returns the per-leg timestamps
func (c *CallSession) Legs() LegTimes {
	return LegTimes{
		CallerAnswerAt: c.CallerAnswerAt,
		CallerHangupAt: c.CallerHangupAt,
		CalledAnswerAt: c.CalledAnswerAt,
		CalledHangupAt: c.CalledHangupAt,
	}
}

func (c *CallSession) setLegs(l LegTimes) {
	c.CallerAnswerAt = l.CallerAnswerAt
	c.CallerHangupAt = l.CallerHangupAt
	c.CalledAnswerAt = l.CalledAnswerAt
	c.CalledHangupAt = l.CalledHangupAt
}

// MatchLeg finds which leg a pushed phone number belongs to
func (c *CallSession) MatchLeg(number, region string) Leg {
	switch {
	case phone.Same(c.CallerNumber, number, region):
		return LegCaller
	case phone.Same(c.CalledNumber, number, region):
		return LegCalled
	default:
		return LegUnknown
	}
}

// recordLegFact stores an answer or hangup time the session does not know yet
func (c *CallSession) recordLegFact(leg Leg, state LegState, at int64) bool {
	if at == 0 {
		return false
	}
	var slot *int64
	switch {
	case leg == LegCaller && state == LegAnswer:
		slot = &c.CallerAnswerAt
	case leg == LegCaller && state == LegDisconnect:
		slot = &c.CallerHangupAt
	case leg == LegCalled && state == LegAnswer:
		slot = &c.CalledAnswerAt
	case leg == LegCalled && state == LegDisconnect:
		slot = &c.CalledHangupAt
	default:
		return false
	}
	if *slot != 0 {
		return false
	}
	*slot = at
	return true
}

// pushTarget maps a leg event onto the status it asks for
func pushTarget(cur constant.CallStatus, leg Leg, state LegState) constant.CallStatus {
	switch leg {
	case LegCaller:
		switch state {
		case LegCallout, LegAlerting:
			return constant.CallStatusOutCaller
		case LegAnswer:
			return constant.CallStatusOutCalled
		case LegDisconnect:
			if cur == constant.CallStatusOutCaller {
				return constant.CallStatusEndCaller
			}
		}
	case LegCalled:
		switch state {
		case LegCallout, LegAlerting:
			return constant.CallStatusOutCalled
		case LegAnswer:
			return constant.CallStatusOnCalling
		case LegDisconnect:
			if cur == constant.CallStatusOutCalled {
				return constant.CallStatusEndCalled
			}
		}
	}
	return cur
}

// ApplyPush applies a status push for the given leg.
// Terminal sessions ignore pushes. A push older than StatusAt records its
// leg fact without moving StatusAt and does not step the status. Otherwise
// status moves forward only. In both cases the session is finalized from
// the leg durations once both hangups are known.
func (c *CallSession) ApplyPush(ev PushEvent, leg Leg) Transition {
	t := Transition{From: c.Status, To: c.Status, StatusAt: c.StatusAt}
	if c.IsEnd() {
		t.Ignored = IgnoreTerminal
		return t
	}
	if leg == LegUnknown {
		t.Ignored = IgnoreUnknownLeg
		return t
	}

	t.LegsChanged = c.recordLegFact(leg, ev.State, ev.At)
	next := c.Status
	if c.StatusAt > 0 && ev.At > 0 && ev.At < c.StatusAt {
		t.Stale = true
	} else {
		if ev.At > c.StatusAt {
			c.StatusAt = ev.At
		}
		next = pushTarget(c.Status, leg, ev.State)
	}

	if legs := c.Legs(); legs.CallerHangupAt != 0 && legs.CalledHangupAt != 0 {
		next = legs.FinalStatus()
	}
	if next.Rank() > c.Status.Rank() {
		c.Status = next
	}
	if c.IsEnd() && c.CallState == "" {
		c.CallState = ev.StateDesc
	}

	t.To, t.StatusAt = c.Status, c.StatusAt
	return t
}

// ApplyRecord applies a call detail record fetched at now.
// The record's billing fields are always kept. Its leg timestamps replace
// the session's and decide the terminal status, unless the record is older
// than StatusAt, or the session is already terminal and the record adds no
// leg timestamp it was missing.
func (c *CallSession) ApplyRecord(cdr CDR, now int64) Transition {
	t := Transition{From: c.Status, To: c.Status, StatusAt: c.StatusAt}

	c.Duration = cdr.Duration
	c.Cost = cdr.CostCents
	if cdr.StateDesc != "" {
		c.CallState = cdr.StateDesc
	}

	eventAt := cdr.Legs.LatestAt()
	if eventAt == 0 {
		eventAt = now
	}
	if c.StatusAt > 0 && eventAt < c.StatusAt {
		t.Stale = true
		return t
	}
	if c.IsEnd() && !c.Legs().FillsMissing(cdr.Legs) {
		t.Ignored = IgnoreTerminal
		return t
	}

	t.LegsChanged = c.Legs() != cdr.Legs
	c.setLegs(cdr.Legs)
	c.Status = cdr.Legs.FinalStatus()
	if eventAt > c.StatusAt {
		c.StatusAt = eventAt
	}

	t.To, t.StatusAt = c.Status, c.StatusAt
	return t
}

// ApplyPlaceFailure ends the session when the provider refused the call
func (c *CallSession) ApplyPlaceFailure(reason string, now int64) Transition {
	t := Transition{From: c.Status, To: c.Status, StatusAt: c.StatusAt}
	if c.IsEnd() {
		t.Ignored = IgnoreTerminal
		return t
	}
	c.Status = constant.CallStatusEndCaller
	c.CallState = reason
	if now > c.StatusAt {
		c.StatusAt = now
	}
	t.To, t.StatusAt = c.Status, c.StatusAt
	return t
}

// CallSeconds is the billable talk time, the called leg duration of a
// successful call
func (c *CallSession) CallSeconds() int64 {
	if c.Status != constant.CallStatusEndOk {
		return 0
	}
	return c.Legs().CalledSeconds()
}

// ComputeFee prices the call per started minute
func (c *CallSession) ComputeFee(perMinute int32) int32 {
	secs := c.CallSeconds()
	if secs <= 0 {
		return 0
	}
	minutes := (secs + 59) / 60
	return int32(minutes) * perMinute
}

var stateDescNoise = []string{"正常", "应答", "未知"}

// StateDescText extracts the user readable reason from CallState
func (c *CallSession) StateDescText() string {
	parts := strings.Split(c.CallState, "|")
	desc := parts[len(parts)-1]
	for _, noise := range stateDescNoise {
		desc = strings.ReplaceAll(desc, noise, "")
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "请稍后重试"
	}
	return desc
}

// Summary is the text mirrored into the call message
func (c *CallSession) Summary() string {
	label := c.Status.Label()
	switch c.Status {
	case constant.CallStatusEndOk:
		secs := c.CallSeconds()
		return fmt.Sprintf("%s，时长：%d′ %d″", label, secs/60, secs%60)
	case constant.CallStatusEndCalled, constant.CallStatusEndCaller:
		return fmt.Sprintf("%s：%s", label, c.StateDescText())
	default:
		return label + "..."
	}
}

// Audit appends a diagnostic entry to the session's extra log
func (c *CallSession) Audit(kind string, fields map[string]any) {
	appendExtra(&c.Extra, kind, fields)
}
