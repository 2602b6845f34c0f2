package entity

import (
	"fmt"
	"testing"
	"time"

	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenConversationIdSymmetric(t *testing.T) {
	for i := 0; i < 20; i++ {
		a, b := fmt.Sprintf("user-%d", i), fmt.Sprintf("user-%d", i*7+3)
		assert.Equal(t, GenConversationId(a, b), GenConversationId(b, a))
	}
	assert.NotEqual(t, GenConversationId("a", "b"), GenConversationId("a", "c"))
	assert.Len(t, GenConversationId("a", "b"), 36)
}

func TestNewConversationSortsMembers(t *testing.T) {
	c := NewConversation("zed", "amy", "zed", "S1")
	assert.Equal(t, "amy", c.UserA)
	assert.Equal(t, "zed", c.UserB)
	assert.Equal(t, GenConversationId("amy", "zed"), c.Id)
	assert.Equal(t, "zed", c.Attrs.Data().Creator)
	assert.True(t, c.IsMember("amy"))
	assert.False(t, c.IsMember("bob"))
	assert.False(t, c.IsMember(""))
	assert.Equal(t, "zed", c.Peer("amy"))
	assert.Equal(t, "amy", c.Peer("zed"))
}

func TestContactKeywords(t *testing.T) {
	c := NewContact("a", "b", "conv")
	assert.True(t, c.AddKeyword("Big Bird"))
	assert.False(t, c.AddKeyword("BigBird"))
	assert.False(t, c.AddKeyword(" | "))
	assert.True(t, c.AddKeyword("京A12345"))
	assert.Equal(t, "|BigBird|京A12345", c.Keywords)

	assert.True(t, c.MatchKeyword("bigb"))
	assert.True(t, c.MatchKeyword("a123"))
	assert.True(t, c.MatchKeyword(""))
	assert.False(t, c.MatchKeyword("elmo"))
}

func TestMessageMemo(t *testing.T) {
	m := &Message{Id: 9, SenderId: "a", MsgType: constant.MsgTypeTrigger, Content: "扫了挪车码\n请回复"}
	assert.Equal(t, "我扫了挪车码 请回复", m.MemoFor("a"))
	assert.Equal(t, "对方扫了挪车码 请回复", m.MemoFor("b"))

	snap := m.SnapshotFor("b")
	assert.Equal(t, LastMsgSnapshot{Memo: "对方扫了挪车码 请回复", Self: false, Id: 9, By: "a"}, snap)

	stay := &Message{SenderId: "a", MsgType: constant.MsgTypeStay, Content: "马上到"}
	assert.Equal(t, "马上到", stay.MemoFor("b"))
}

func TestMessageBodies(t *testing.T) {
	m := &Message{MsgType: constant.MsgTypeTrigger, Body: []byte(`{"trigger":15,"symbol":"S1"}`)}
	assert.Equal(t, TriggerBody{Trigger: constant.TriggerSymbol, Symbol: "S1"}, m.TriggerBody())

	call := &Message{MsgType: constant.MsgTypeCall, Body: []byte(`{"call_id":"c-7"}`)}
	assert.True(t, call.IsCall())
	assert.Equal(t, "c-7", call.CallBody().CallId)
}

func TestAuditLogBounded(t *testing.T) {
	var l AuditLog
	for i := 0; i < MaxAuditEntries+5; i++ {
		l = l.Append(AuditEntry{At: int64(i), Kind: "k"})
	}
	assert.Len(t, l.Entries, MaxAuditEntries)
	assert.Equal(t, 5, l.Dropped)
	assert.Equal(t, int64(5), l.Entries[0].At)

	last, ok := l.Last("k")
	require.True(t, ok)
	assert.Equal(t, int64(MaxAuditEntries+4), last.At)
	_, ok = l.Last("missing")
	assert.False(t, ok)
}

func TestAuditLogAppendCopies(t *testing.T) {
	base := AuditLog{}.Append(AuditEntry{Kind: "a"})
	next := base.Append(AuditEntry{Kind: "b"})
	assert.Len(t, base.Entries, 1)
	assert.Len(t, next.Entries, 2)
}

func TestParseProviderTime(t *testing.T) {
	ms, err := ParseProviderTime("2024-03-01 08:00:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 5, 0, time.UTC).UnixMilli(), ms)

	ms, err = ParseProviderTime("  ")
	require.NoError(t, err)
	assert.Zero(t, ms)

	_, err = ParseProviderTime("01/03/2024")
	assert.Error(t, err)
}

func TestDayStartMilli(t *testing.T) {
	// 2024-03-01 23:30 UTC is 2024-03-02 07:30 local
	at := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC).UnixMilli()
	want := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, want, DayStartMilli(at))
}
