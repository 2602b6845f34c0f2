package service

import (
	"testing"

	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBilling_Idempotent(t *testing.T) {
	f := newFixture(t)
	req := &BillRequest{
		CallId:   "call-1",
		UserId:   alice,
		Duration: 61,
		Fee:      40,
		BillAt:   f.clock.Now().UnixMilli(),
	}

	first, err := f.billing.RecordSuccessfulCall(f.ctx, req)
	require.NoError(t, err)
	second, err := f.billing.RecordSuccessfulCall(f.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, int32(40), second.Amount)
	assert.Equal(t, 1, f.publisher.count(constant.RoutingBillRecorded))

	recorded := f.publisher.events[constant.RoutingBillRecorded][0].(*BillRecorded)
	assert.Equal(t, "call-1", recorded.CallId)
	assert.Equal(t, first.Id, recorded.BillId)
	assert.True(t, recorded.IsFree)
}

func TestBilling_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.billing.RecordSuccessfulCall(f.ctx, &BillRequest{UserId: alice})
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
	_, err = f.billing.RecordSuccessfulCall(f.ctx, &BillRequest{CallId: "c"})
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
}

func TestBilling_DayIndex(t *testing.T) {
	f := newFixture(t)
	f.link(t, alice, bob)
	f.link(t, bob, carol)

	first := f.successfulCall(t, alice, bob, aliceNumber, bobNumber)
	second := f.successfulCall(t, alice, bob, aliceNumber, bobNumber)
	other := f.successfulCall(t, bob, carol, bobNumber, carolNumber)

	for call, want := range map[string]int32{first.CallId: 1, second.CallId: 2, other.CallId: 1} {
		bill, err := f.store.GetBill(f.ctx, call)
		require.NoError(t, err)
		require.NotNil(t, bill)
		assert.Equal(t, want, bill.DayIndex, "call %s", call)
	}

	t.Run("zero duration has no index", func(t *testing.T) {
		bill, err := f.billing.RecordSuccessfulCall(f.ctx, &BillRequest{CallId: "empty", UserId: alice, BillAt: f.clock.Now().UnixMilli()})
		require.NoError(t, err)
		assert.Equal(t, int32(0), bill.DayIndex)
	})
}
