package service

import (
	"testing"
	"time"

	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_RunOnce(t *testing.T) {
	f := newFixture(t)
	f.link(t, alice, bob)

	done := f.successfulCall(t, alice, bob, aliceNumber, bobNumber)
	answered := f.startCall(t, alice, bob)
	silent := f.startCall(t, alice, bob)

	created := time.UnixMilli(answered.CreatedAt)
	f.gateway.setCDR(entity.CDR{
		ReqId: answered.RequestId(),
		Legs: entity.LegTimes{
			CallerAnswerAt: created.Add(2 * time.Second).UnixMilli(),
			CalledAnswerAt: created.Add(6 * time.Second).UnixMilli(),
			CalledHangupAt: created.Add(16 * time.Second).UnixMilli(),
			CallerHangupAt: created.Add(17 * time.Second).UnixMilli(),
		},
		Duration: 10,
	})

	t.Run("calls inside the grace period wait", func(t *testing.T) {
		stats, err := f.poller.RunOnce(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.All)
		assert.Equal(t, 1, stats.Terminal)
	})

	f.clock.Advance(30 * time.Second)

	t.Run("finalizes ready records", func(t *testing.T) {
		stats, err := f.poller.RunOnce(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, &PollStats{All: 3, Terminal: 1, Finalized: 1, Pending: 1}, stats)

		assert.Equal(t, constant.CallStatusEndOk, f.reload(t, answered).Status)
		assert.Equal(t, int32(20), f.reload(t, answered).Fee)
		assert.Equal(t, constant.CallStatusOutCaller, f.reload(t, silent).Status)
		assert.Equal(t, constant.CallStatusEndOk, f.reload(t, done).Status)
	})

	f.clock.Advance(15 * time.Minute)

	t.Run("reports overdue sessions", func(t *testing.T) {
		stats, err := f.poller.RunOnce(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Terminal)
		assert.Equal(t, 1, stats.Pending)
		assert.Equal(t, 1, stats.Overdue)
	})

	f.clock.Advance(time.Hour)

	t.Run("old sessions leave the window", func(t *testing.T) {
		stats, err := f.poller.RunOnce(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.All)
	})
}
