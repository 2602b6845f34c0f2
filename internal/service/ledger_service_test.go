package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_LinkContact(t *testing.T) {
	f := newFixture(t)

	t.Run("creates both sides", func(t *testing.T) {
		contact, err := f.ledger.LinkContact(f.ctx, alice, bob, "")
		require.NoError(t, err)
		assert.Equal(t, alice, contact.OwnerId)
		assert.Equal(t, bob, contact.PeerId)
		assert.Equal(t, entity.GenConversationId(bob, alice), contact.ConversationId)

		back := f.contact(t, bob, alice)
		assert.Equal(t, contact.ConversationId, back.ConversationId)
		assert.True(t, contact.MatchKeyword("bob"))
		assert.True(t, back.MatchKeyword("ALICE"))
	})

	t.Run("is idempotent", func(t *testing.T) {
		first := f.link(t, alice, bob)
		second := f.link(t, bob, alice)
		assert.Equal(t, first, second)
		contacts, err := f.ledger.ListContacts(f.ctx, alice, "")
		require.NoError(t, err)
		assert.Len(t, contacts, 1)
	})

	t.Run("replaces symbol", func(t *testing.T) {
		conv, err := f.ledger.GetOrCreateConversation(f.ctx, alice, bob, "S1")
		require.NoError(t, err)
		assert.Equal(t, "S1", conv.Symbol)

		conv, err = f.ledger.GetOrCreateConversation(f.ctx, bob, alice, "S2")
		require.NoError(t, err)
		assert.Equal(t, "S2", conv.Symbol)
		entry, ok := conv.Extra.Data().Last("symbol")
		require.True(t, ok)
		assert.Equal(t, "S1", entry.Fields["old"])

		conv, err = f.ledger.GetOrCreateConversation(f.ctx, alice, bob, "")
		require.NoError(t, err)
		assert.Equal(t, "S2", conv.Symbol, "empty symbol keeps the stored one")
	})

	t.Run("rejects self", func(t *testing.T) {
		_, err := f.ledger.LinkContact(f.ctx, alice, alice, "")
		assert.ErrorIs(t, err, errcode.ErrSelfContact)
		_, err = f.ledger.LinkContact(f.ctx, alice, "", "")
		assert.ErrorIs(t, err, errcode.ErrInvalidParam)
	})
}

func TestLedger_AppendTrigger(t *testing.T) {
	f := newFixture(t)
	req := &TriggerRequest{SenderId: alice, PeerId: bob, Trigger: constant.TriggerSymbol, Content: "扫码了你的挪车码", Symbol: "S1"}

	first, deduped, err := f.ledger.AppendTrigger(f.ctx, req)
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.True(t, first.IsRead(), "trigger messages are born read")
	assert.True(t, first.IsTimed)
	assert.Equal(t, constant.TriggerSymbol, first.TriggerBody().Trigger)

	assert.Equal(t, "我扫码了你的挪车码", f.contact(t, alice, bob).LastMsg.Data().Memo)
	assert.Equal(t, "对方扫码了你的挪车码", f.contact(t, bob, alice).LastMsg.Data().Memo)
	assert.Equal(t, int32(0), f.contact(t, bob, alice).Unread)

	t.Run("dedups within window", func(t *testing.T) {
		f.clock.Advance(10 * time.Minute)
		again, deduped, err := f.ledger.AppendTrigger(f.ctx, req)
		require.NoError(t, err)
		assert.True(t, deduped)
		assert.Equal(t, first.Id, again.Id)
		assert.Len(t, f.store.Messages(first.ConversationId), 1)
	})

	t.Run("new trigger after window", func(t *testing.T) {
		f.clock.Advance(21 * time.Minute)
		again, deduped, err := f.ledger.AppendTrigger(f.ctx, req)
		require.NoError(t, err)
		assert.False(t, deduped)
		assert.NotEqual(t, first.Id, again.Id)
		assert.True(t, again.IsTimed, "gap since the last timed message exceeds the timed gap")
	})

	t.Run("new trigger after a reply", func(t *testing.T) {
		f.stay(t, bob, alice, "马上来")
		again, deduped, err := f.ledger.AppendTrigger(f.ctx, req)
		require.NoError(t, err)
		assert.False(t, deduped)
		assert.False(t, again.IsTimed)
	})

	t.Run("rejects unknown trigger", func(t *testing.T) {
		_, _, err := f.ledger.AppendTrigger(f.ctx, &TriggerRequest{SenderId: alice, PeerId: bob, Trigger: 99, Content: "x"})
		assert.ErrorIs(t, err, errcode.ErrInvalidTrigger)
	})
}

func TestLedger_PingPong(t *testing.T) {
	t.Run("fourth stay is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.link(t, alice, bob)
		for i := 0; i < 3; i++ {
			f.stay(t, alice, bob, fmt.Sprintf("m%d", i))
		}
		_, err := f.ledger.AppendStay(f.ctx, alice, bob, "m3")
		assert.ErrorIs(t, err, errcode.ErrPingPongLimit)

		// the silent side is never limited
		f.stay(t, bob, alice, "reply")
		f.stay(t, alice, bob, "m3")
	})

	t.Run("successful call lifts the limit", func(t *testing.T) {
		f := newFixture(t)
		f.link(t, alice, bob)
		for i := 0; i < 3; i++ {
			f.stay(t, alice, bob, fmt.Sprintf("m%d", i))
		}
		f.successfulCall(t, alice, bob, aliceNumber, bobNumber)
		_, err := f.ledger.AppendStay(f.ctx, alice, bob, "after call")
		assert.NoError(t, err)
	})

	t.Run("failed call does not lift the limit", func(t *testing.T) {
		f := newFixture(t)
		f.link(t, alice, bob)
		for i := 0; i < 3; i++ {
			f.stay(t, alice, bob, fmt.Sprintf("m%d", i))
		}
		call := f.startCall(t, alice, bob)
		f.push(t, call, aliceNumber, entity.LegDisconnect, f.clock.Now())
		_, err := f.ledger.AppendStay(f.ctx, alice, bob, "again")
		assert.ErrorIs(t, err, errcode.ErrPingPongLimit)
	})
}

func TestLedger_UnreadAndOpen(t *testing.T) {
	f := newFixture(t)
	convId := f.link(t, alice, bob)

	f.stay(t, bob, alice, "one")
	f.stay(t, bob, alice, "two")
	f.requireUnreadConsistent(t, convId)
	assert.Equal(t, int32(2), f.contact(t, alice, bob).Unread)
	assert.Equal(t, 2, f.notifier.count(constant.EventNewMessage))

	n, err := f.ledger.UnreadContactCount(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	contact, err := f.ledger.OpenConversation(f.ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, int32(0), contact.Unread)
	assert.Equal(t, f.clock.Now().UnixMilli(), contact.ReadAt)
	f.requireUnreadConsistent(t, convId)
	for _, m := range f.store.Messages(convId) {
		assert.True(t, m.IsRead())
	}

	n, err = f.ledger.UnreadContactCount(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	p, ok := f.notifier.last(constant.EventOpenConv)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{alice, bob}, p.userIds)

	t.Run("nothing unread still syncs other devices", func(t *testing.T) {
		before := f.notifier.count(constant.EventOpenConv)
		readAt := f.contact(t, alice, bob).ReadAt
		f.clock.Advance(time.Minute)

		contact, err := f.ledger.OpenConversation(f.ctx, alice, bob)
		require.NoError(t, err)
		assert.Equal(t, int32(0), contact.Unread)
		assert.Equal(t, readAt, f.contact(t, alice, bob).ReadAt)
		assert.Equal(t, before+1, f.notifier.count(constant.EventOpenConv))
		p, ok := f.notifier.last(constant.EventOpenConv)
		require.True(t, ok)
		assert.Equal(t, alice, p.payload.(*ConvEvent).UserId)
		f.requireUnreadConsistent(t, convId)
	})

	t.Run("unknown contact", func(t *testing.T) {
		_, err := f.ledger.OpenConversation(f.ctx, alice, carol)
		assert.ErrorIs(t, err, errcode.ErrContactNotFound)
	})
}

func TestLedger_Block(t *testing.T) {
	f := newFixture(t)
	f.link(t, alice, bob)

	contact, err := f.ledger.SetBlock(f.ctx, alice, bob, true)
	require.NoError(t, err)
	assert.True(t, contact.IsBlock)

	_, err = f.ledger.AppendStay(f.ctx, bob, alice, "hello")
	assert.ErrorIs(t, err, errcode.ErrBlocked)
	_, err = f.calls.StartCall(f.ctx, bob, alice)
	assert.ErrorIs(t, err, errcode.ErrBlocked)
	assert.Equal(t, 0, f.gateway.placed)

	// the blocker can still write
	f.stay(t, alice, bob, "hi")

	_, err = f.ledger.SetBlock(f.ctx, alice, bob, false)
	require.NoError(t, err)
	f.stay(t, bob, alice, "hello")
}

func TestLedger_Remark(t *testing.T) {
	f := newFixture(t)
	f.link(t, alice, bob)
	f.link(t, alice, carol)

	contact, err := f.ledger.SetRemark(f.ctx, alice, bob, "  楼下邻居 ")
	require.NoError(t, err)
	assert.Equal(t, "楼下邻居", contact.Remark)

	found, err := f.ledger.ListContacts(f.ctx, alice, "邻居")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bob, found[0].PeerId)
}

func TestLedger_ListContactsOrder(t *testing.T) {
	f := newFixture(t)
	f.link(t, alice, bob)
	f.link(t, alice, carol)

	f.stay(t, alice, bob, "to bob")
	f.stay(t, alice, carol, "to carol")
	contacts, err := f.ledger.ListContacts(f.ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, carol, contacts[0].PeerId, "most recent first")

	f.stay(t, bob, alice, "from bob")
	f.stay(t, alice, carol, "to carol again")
	contacts, err = f.ledger.ListContacts(f.ctx, alice, "")
	require.NoError(t, err)
	assert.Equal(t, bob, contacts[0].PeerId, "unread first")

	contacts, err = f.ledger.ListContacts(f.ctx, alice, "CAR")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, carol, contacts[0].PeerId)
}

func TestLedger_History(t *testing.T) {
	f := newFixture(t)
	f.link(t, alice, bob)

	var ids []int64
	for i := 0; i < 25; i++ {
		sender, peer := alice, bob
		if i%2 == 1 {
			sender, peer = bob, alice
		}
		ids = append(ids, f.stay(t, sender, peer, fmt.Sprintf("m%d", i)).Id)
	}

	page, err := f.ledger.LatestMessages(f.ctx, alice, bob, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 20)
	assert.Equal(t, ids[24], page.Messages[0].Id)
	assert.Equal(t, ids[5], page.Messages[19].Id)
	assert.Equal(t, int64(5), page.More)
	assert.True(t, page.Messages[0].Self)

	older, err := f.ledger.LatestMessages(f.ctx, alice, bob, ids[5])
	require.NoError(t, err)
	assert.Len(t, older.Messages, 5)
	assert.Equal(t, int64(0), older.More)

	newer, err := f.ledger.MessagesAfter(f.ctx, bob, alice, ids[19])
	require.NoError(t, err)
	require.Len(t, newer, 5)
	assert.Equal(t, ids[20], newer[0].Id)
	assert.False(t, newer[0].Self)

	reach, err := f.ledger.MessageReach(f.ctx, bob, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], reach.Id)
	_, err = f.ledger.MessageReach(f.ctx, carol, ids[0])
	assert.ErrorIs(t, err, errcode.ErrNoPermission)
	_, err = f.ledger.MessageReach(f.ctx, alice, -1)
	assert.ErrorIs(t, err, errcode.ErrMessageNotFound)
}

func TestLedger_MarkDeleted(t *testing.T) {
	f := newFixture(t)
	convId := f.link(t, alice, bob)
	first := f.stay(t, bob, alice, "first")
	second := f.stay(t, bob, alice, "second")

	require.NoError(t, f.ledger.MarkDeleted(f.ctx, second.Id, "test"))
	require.NoError(t, f.ledger.MarkDeleted(f.ctx, second.Id, "again"))

	conv, err := f.store.GetConversation(f.ctx, convId)
	require.NoError(t, err)
	assert.Equal(t, first.Id, conv.LastId)
	assert.Equal(t, int32(1), conv.Count)
	assert.Equal(t, "first", f.contact(t, alice, bob).LastMsg.Data().Memo)
	f.requireUnreadConsistent(t, convId)
}
