package entity

import (
	"testing"

	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	callerNum = "+8613800138000"
	calledNum = "+8613900139000"
	t0        = int64(1_700_000_000_000)
	sec       = int64(1000)
)

func newTestSession() *CallSession {
	return NewCallSession("c-1", 1, "u-a", "u-b", callerNum, calledNum)
}

func push(leg Leg, state LegState, at int64) (PushEvent, Leg) {
	num := callerNum
	if leg == LegCalled {
		num = calledNum
	}
	return PushEvent{ReqId: "r-1", Phone: num, State: state, At: at, StateDesc: "正常|正常"}, leg
}

func successCDR() CDR {
	return CDR{
		ReqId: "r-1",
		Legs: LegTimes{
			CallerAnswerAt: t0,
			CallerHangupAt: t0 + 65*sec,
			CalledAnswerAt: t0 + 5*sec,
			CalledHangupAt: t0 + 65*sec,
		},
		Duration:  60,
		CostCents: 12,
		StateDesc: "正常|正常",
	}
}

func TestApplyPushSuccessfulCall(t *testing.T) {
	c := newTestSession()
	assert.Equal(t, constant.CallStatusOutCaller, c.Status)

	tr := c.ApplyPush(push(LegCaller, LegAnswer, t0))
	assert.Equal(t, constant.CallStatusOutCalled, tr.To)
	tr = c.ApplyPush(push(LegCalled, LegAnswer, t0+5*sec))
	assert.Equal(t, constant.CallStatusOnCalling, tr.To)
	tr = c.ApplyPush(push(LegCalled, LegDisconnect, t0+65*sec))
	assert.False(t, tr.Changed())
	tr = c.ApplyPush(push(LegCaller, LegDisconnect, t0+65*sec))

	assert.True(t, tr.EnteredEnd())
	assert.Equal(t, constant.CallStatusEndOk, c.Status)
	assert.Equal(t, int64(60), c.CallSeconds())
	assert.Equal(t, int32(20), c.ComputeFee(20))
	assert.Equal(t, "正常|正常", c.CallState)
	assert.Equal(t, "通话结束，时长：1′ 0″", c.Summary())
}

func TestApplyPushCallerCancelled(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCaller, LegCallout, t0))
	tr := c.ApplyPush(push(LegCaller, LegDisconnect, t0+8*sec))

	assert.True(t, tr.EnteredEnd())
	assert.Equal(t, constant.CallStatusEndCaller, c.Status)
	assert.Equal(t, int32(0), c.ComputeFee(20))
	assert.Equal(t, int64(0), c.CallSeconds())
}

func TestApplyPushCalledNeverAnswered(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCaller, LegAnswer, t0))
	c.ApplyPush(push(LegCalled, LegAlerting, t0+2*sec))
	tr := c.ApplyPush(push(LegCalled, LegDisconnect, t0+40*sec))

	assert.Equal(t, constant.CallStatusEndCalled, tr.To)
	assert.Equal(t, "暂未接通：请稍后重试", c.Summary())
}

func TestApplyPushStaleKeepsStatus(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCaller, LegAnswer, t0+10*sec))
	c.ApplyPush(push(LegCalled, LegAnswer, t0+15*sec))

	tr := c.ApplyPush(push(LegCaller, LegCallout, t0))
	assert.True(t, tr.Stale)
	assert.False(t, tr.Changed())
	assert.Equal(t, constant.CallStatusOnCalling, c.Status)
	assert.Equal(t, t0+15*sec, c.StatusAt)
}

func TestApplyPushStaleStillRecordsFact(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCalled, LegDisconnect, t0+65*sec))

	tr := c.ApplyPush(push(LegCalled, LegAnswer, t0+5*sec))
	assert.True(t, tr.Stale)
	assert.True(t, tr.LegsChanged)
	assert.Equal(t, t0+5*sec, c.CalledAnswerAt)
	assert.Equal(t, constant.CallStatusOutCaller, c.Status)
}

func TestApplyPushTerminalIgnored(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCaller, LegDisconnect, t0))
	require.True(t, c.IsEnd())

	tr := c.ApplyPush(push(LegCaller, LegAnswer, t0+sec))
	assert.Equal(t, IgnoreTerminal, tr.Ignored)
	assert.Zero(t, c.CallerAnswerAt)
}

func TestApplyPushUnknownLeg(t *testing.T) {
	c := newTestSession()
	tr := c.ApplyPush(PushEvent{Phone: "+8613700137000", State: LegAnswer, At: t0}, LegUnknown)
	assert.Equal(t, IgnoreUnknownLeg, tr.Ignored)
	assert.Zero(t, c.StatusAt)
}

func TestApplyPushNeverMovesBackward(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCalled, LegAnswer, t0))
	require.Equal(t, constant.CallStatusOnCalling, c.Status)

	tr := c.ApplyPush(push(LegCaller, LegAlerting, t0+sec))
	assert.False(t, tr.Changed())
	assert.Equal(t, t0+sec, c.StatusAt)
}

func TestApplyRecordCalledNeverAnswered(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCaller, LegAnswer, t0))
	c.ApplyPush(push(LegCalled, LegAnswer, t0+5*sec))

	tr := c.ApplyRecord(CDR{
		Legs:      LegTimes{CallerAnswerAt: t0, CallerHangupAt: t0 + 30*sec},
		StateDesc: "正常|被叫未接听",
	}, t0+90*sec)

	assert.Equal(t, constant.CallStatusEndCalled, tr.To)
	assert.Zero(t, c.CalledAnswerAt)
	assert.Equal(t, "暂未接通：被叫未接听", c.Summary())
}

func TestApplyRecordWithoutLegsUsesNow(t *testing.T) {
	c := newTestSession()
	tr := c.ApplyRecord(CDR{StateDesc: "主叫未接听"}, t0)
	assert.Equal(t, constant.CallStatusEndCaller, tr.To)
	assert.Equal(t, t0, c.StatusAt)
}

func TestApplyRecordStale(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCaller, LegAnswer, t0+100*sec))

	tr := c.ApplyRecord(successCDR(), t0+200*sec)
	assert.True(t, tr.Stale)
	assert.Equal(t, constant.CallStatusOutCalled, c.Status)
	assert.Equal(t, int32(60), c.Duration, "billing fields are kept even when stale")
}

func TestApplyRecordLateOverride(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCaller, LegAnswer, t0))
	c.ApplyPush(push(LegCalled, LegDisconnect, t0+65*sec))
	require.Equal(t, constant.CallStatusEndCalled, c.Status)

	tr := c.ApplyRecord(successCDR(), t0+120*sec)
	assert.True(t, tr.EnteredEnd())
	assert.Equal(t, constant.CallStatusEndOk, c.Status)

	again := c.ApplyRecord(successCDR(), t0+180*sec)
	assert.Equal(t, IgnoreTerminal, again.Ignored)
	assert.False(t, again.Changed())
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := make([]int, 0, n)
			q = append(q, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestFinalStatusIndependentOfOrder(t *testing.T) {
	cdr := successCDR()
	events := []struct {
		leg   Leg
		state LegState
		at    int64
	}{
		{LegCaller, LegAnswer, cdr.Legs.CallerAnswerAt},
		{LegCalled, LegAnswer, cdr.Legs.CalledAnswerAt},
		{LegCalled, LegDisconnect, cdr.Legs.CalledHangupAt},
		{LegCaller, LegDisconnect, cdr.Legs.CallerHangupAt},
	}

	perms := permutations(len(events))
	require.Len(t, perms, 24)
	for _, order := range perms {
		c := newTestSession()
		for _, i := range order {
			ev := events[i]
			c.ApplyPush(push(ev.leg, ev.state, ev.at))
			c.ApplyPush(push(ev.leg, ev.state, ev.at))
		}
		c.ApplyRecord(cdr, cdr.Legs.LatestAt()+sec)

		assert.Equal(t, constant.CallStatusEndOk, c.Status, "order %v", order)
		assert.Equal(t, cdr.Legs, c.Legs(), "order %v", order)
		assert.Equal(t, cdr.Legs.LatestAt(), c.StatusAt, "order %v", order)
	}
}

func TestPushOnlyFinalStatusIndependentOfOrder(t *testing.T) {
	events := []struct {
		leg   Leg
		state LegState
		at    int64
	}{
		{LegCaller, LegAnswer, t0},
		{LegCalled, LegAnswer, t0 + 5*sec},
		{LegCalled, LegDisconnect, t0 + 65*sec},
		{LegCaller, LegDisconnect, t0 + 66*sec},
	}
	// a leg never hangs up before the provider reports its answer
	answerFirst := func(order []int) bool {
		pos := make([]int, len(order))
		for i, e := range order {
			pos[e] = i
		}
		return pos[0] < pos[3] && pos[1] < pos[2]
	}

	tested := 0
	for _, order := range permutations(len(events)) {
		if !answerFirst(order) {
			continue
		}
		tested++
		c := newTestSession()
		for _, i := range order {
			ev := events[i]
			c.ApplyPush(push(ev.leg, ev.state, ev.at))
		}

		assert.Equal(t, constant.CallStatusEndOk, c.Status, "order %v", order)
		assert.Equal(t, int64(60), c.CallSeconds(), "order %v", order)
		assert.Equal(t, t0+66*sec, c.StatusAt, "order %v", order)
	}
	assert.Equal(t, 6, tested)
}

func TestApplyPushStaleHangupFinalizes(t *testing.T) {
	c := newTestSession()
	c.ApplyPush(push(LegCalled, LegAnswer, t0+5*sec))
	c.ApplyPush(push(LegCaller, LegAnswer, t0))
	c.ApplyPush(push(LegCaller, LegDisconnect, t0+66*sec))
	require.Equal(t, constant.CallStatusOnCalling, c.Status)

	tr := c.ApplyPush(push(LegCalled, LegDisconnect, t0+65*sec))
	assert.True(t, tr.Stale)
	assert.True(t, tr.EnteredEnd())
	assert.Equal(t, constant.CallStatusEndOk, c.Status)
	assert.Equal(t, t0+66*sec, c.StatusAt, "a stale push does not move status_at")
}

func TestApplyPlaceFailure(t *testing.T) {
	c := newTestSession()
	tr := c.ApplyPlaceFailure("账户余额不足", t0)
	assert.True(t, tr.EnteredEnd())
	assert.Equal(t, constant.CallStatusEndCaller, c.Status)
	assert.Equal(t, "呼叫取消：账户余额不足", c.Summary())

	tr = c.ApplyPlaceFailure("again", t0+sec)
	assert.Equal(t, IgnoreTerminal, tr.Ignored)
}

func TestLegTimesFinalStatus(t *testing.T) {
	cases := []struct {
		name string
		legs LegTimes
		want constant.CallStatus
	}{
		{"both talked", successCDR().Legs, constant.CallStatusEndOk},
		{"caller only", LegTimes{CallerAnswerAt: t0, CallerHangupAt: t0 + 9*sec}, constant.CallStatusEndCalled},
		{"nobody", LegTimes{}, constant.CallStatusEndCaller},
		{"hangup before answer", LegTimes{CallerAnswerAt: t0, CallerHangupAt: t0 - sec}, constant.CallStatusEndCaller},
		{"sub second", LegTimes{CallerAnswerAt: t0, CallerHangupAt: t0 + 500}, constant.CallStatusEndCaller},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.legs.FinalStatus())
		})
	}
}

func TestComputeFee(t *testing.T) {
	c := newTestSession()
	c.ApplyRecord(CDR{Legs: LegTimes{
		CallerAnswerAt: t0,
		CallerHangupAt: t0 + 200*sec,
		CalledAnswerAt: t0 + 10*sec,
		CalledHangupAt: t0 + 131*sec,
	}}, t0)
	require.Equal(t, constant.CallStatusEndOk, c.Status)
	assert.Equal(t, int64(121), c.CallSeconds())
	assert.Equal(t, int32(60), c.ComputeFee(20))
	assert.Equal(t, "通话结束，时长：2′ 1″", c.Summary())
}

func TestSummaryInProgress(t *testing.T) {
	c := newTestSession()
	assert.Equal(t, "正在呼叫...", c.Summary())
	c.Status = constant.CallStatusOnCalling
	assert.Equal(t, "正在通话...", c.Summary())
}

func TestStateDescText(t *testing.T) {
	c := newTestSession()
	c.CallState = "正常|应答"
	assert.Equal(t, "请稍后重试", c.StateDescText())
	c.CallState = "主叫挂机|被叫忙"
	assert.Equal(t, "被叫忙", c.StateDescText())
}

func TestMatchLeg(t *testing.T) {
	c := newTestSession()
	assert.Equal(t, LegCaller, c.MatchLeg("13800138000", "CN"))
	assert.Equal(t, LegCalled, c.MatchLeg("+86 139 0013 9000", "CN"))
	assert.Equal(t, LegUnknown, c.MatchLeg("13700137000", "CN"))
}

func TestRequestId(t *testing.T) {
	c := newTestSession()
	assert.Empty(t, c.RequestId())
	id := "r-9"
	c.ReqId = &id
	assert.Equal(t, "r-9", c.RequestId())
}

func TestCallSessionAudit(t *testing.T) {
	c := newTestSession()
	c.Audit("status-callback-end", map[string]any{"state": "answer"})
	e, ok := c.Extra.Data().Last("status-callback-end")
	require.True(t, ok)
	assert.Equal(t, "answer", e.Fields["state"])
}
