package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/repository/memstore"
	"github.com/mbeoliero/ringlink/pkg/constant"
	"github.com/mbeoliero/ringlink/pkg/idgen"
	"github.com/stretchr/testify/require"
)

const (
	alice = "u-alice"
	bob   = "u-bob"
	carol = "u-carol"

	aliceNumber = "+8613800000001"
	bobNumber   = "+8613800000002"
	carolNumber = "+8613800000003"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type pushed struct {
	event   int
	payload any
	userIds []string
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushed []pushed
}

func (n *fakeNotifier) Push(ctx context.Context, event int, payload any, userIds []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushed = append(n.pushed, pushed{event: event, payload: payload, userIds: userIds})
}

func (n *fakeNotifier) count(event int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, p := range n.pushed {
		if p.event == event {
			c++
		}
	}
	return c
}

func (n *fakeNotifier) last(event int) (pushed, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.pushed) - 1; i >= 0; i-- {
		if n.pushed[i].event == event {
			return n.pushed[i], true
		}
	}
	return pushed{}, false
}

type fakePublisher struct {
	mu     sync.Mutex
	events map[string][]any
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]any)
	}
	p.events[routingKey] = append(p.events[routingKey], payload)
	return nil
}

func (p *fakePublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[routingKey])
}

type fakeGateway struct {
	mu       sync.Mutex
	placeErr error
	placed   int
	fetched  int
	cdrs     map[string]*entity.CDR
	fetchErr error
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) PlaceCall(ctx context.Context, callerNumber, calledNumber, correlationId string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return "", g.placeErr
	}
	g.placed++
	return fmt.Sprintf("req-%d", g.placed), nil
}

func (g *fakeGateway) FetchCDR(ctx context.Context, reqId string) (*entity.CDR, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched++
	if g.fetchErr != nil {
		return nil, false, g.fetchErr
	}
	cdr, ok := g.cdrs[reqId]
	if !ok {
		return nil, false, nil
	}
	cp := *cdr
	return &cp, true, nil
}

func (g *fakeGateway) setCDR(cdr entity.CDR) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cdrs == nil {
		g.cdrs = make(map[string]*entity.CDR)
	}
	g.cdrs[cdr.ReqId] = &cdr
}

type fixture struct {
	ctx        context.Context
	clock      *clock
	rules      config.CallConfig
	store      *memstore.Store
	ledger     *LedgerService
	billing    *BillingService
	reconciler *StatusReconciler
	calls      *CallService
	poller     *Poller
	gateway    *fakeGateway
	notifier   *fakeNotifier
	publisher  *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()

	f := &fixture{
		ctx:       context.Background(),
		clock:     &clock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, entity.LocalZone)},
		rules:     cfg.Call,
		store:     memstore.New(),
		gateway:   &fakeGateway{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}

	f.ledger = NewLedgerService(f.store, f.store, f.rules)
	f.ledger.now = f.clock.Now
	f.ledger.SetNotifier(f.notifier)

	f.billing = NewBillingService(f.store)
	f.billing.SetPublisher(f.publisher)
	f.billing.SetNotifier(f.notifier)

	f.reconciler = NewStatusReconciler(f.store, f.gateway, f.ledger, f.billing, f.rules, cfg.Phone.DefaultRegion)
	f.reconciler.now = f.clock.Now
	f.reconciler.SetPublisher(f.publisher)

	f.calls = NewCallService(f.store, f.ledger, f.reconciler, f.gateway, idgen.NewUUIDGenerator())
	f.poller = NewPoller(f.store, f.reconciler, f.rules)
	f.poller.now = f.clock.Now

	for _, p := range []*entity.Profile{
		{UserId: alice, Nickname: "Alice", Number: aliceNumber},
		{UserId: bob, Nickname: "Bob", Number: bobNumber},
		{UserId: carol, Nickname: "Carol", Number: carolNumber},
	} {
		require.NoError(t, f.store.SaveProfile(f.ctx, p))
	}
	return f
}

// link pairs two users and returns the conversation id
func (f *fixture) link(t *testing.T, userId, peerId string) string {
	t.Helper()
	contact, err := f.ledger.LinkContact(f.ctx, userId, peerId, "")
	require.NoError(t, err)
	return contact.ConversationId
}

func (f *fixture) stay(t *testing.T, senderId, peerId, text string) *entity.Message {
	t.Helper()
	msg, err := f.ledger.AppendStay(f.ctx, senderId, peerId, text)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return msg
}

// startCall places a call and returns the stored session
func (f *fixture) startCall(t *testing.T, callerId, calledId string) *entity.CallSession {
	t.Helper()
	msg, err := f.calls.StartCall(f.ctx, callerId, calledId)
	require.NoError(t, err)
	call, err := f.store.GetCallByMsgId(f.ctx, msg.Id)
	require.NoError(t, err)
	require.NotNil(t, call)
	return call
}

func (f *fixture) push(t *testing.T, call *entity.CallSession, number string, state entity.LegState, at time.Time) *Outcome {
	t.Helper()
	out, err := f.reconciler.ApplyPush(f.ctx, entity.PushEvent{
		ReqId: call.RequestId(),
		Phone: number,
		State: state,
		At:    at.UnixMilli(),
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) reload(t *testing.T, call *entity.CallSession) *entity.CallSession {
	t.Helper()
	got, err := f.store.GetCallById(f.ctx, call.Id)
	require.NoError(t, err)
	return got
}

func (f *fixture) message(t *testing.T, id int64) *entity.Message {
	t.Helper()
	msg, err := f.store.GetMessage(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, msg)
	return msg
}

func (f *fixture) contact(t *testing.T, ownerId, peerId string) *entity.Contact {
	t.Helper()
	c, err := f.store.GetContact(f.ctx, ownerId, peerId)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

// requireUnreadConsistent checks each side's cached unread count against
// the message log
func (f *fixture) requireUnreadConsistent(t *testing.T, convId string) {
	t.Helper()
	conv, err := f.store.GetConversation(f.ctx, convId)
	require.NoError(t, err)
	for _, owner := range conv.Members() {
		want := 0
		for _, m := range f.store.Messages(convId) {
			if !m.IsDel && m.SenderId != owner && m.ReadAt == 0 {
				want++
			}
		}
		require.Equal(t, int32(want), f.contact(t, owner, conv.Peer(owner)).Unread, "owner %s", owner)
	}
}

// successfulCall drives a call through the pushes of a one minute talk
func (f *fixture) successfulCall(t *testing.T, callerId, calledId, callerNumber, calledNumber string) *entity.CallSession {
	t.Helper()
	call := f.startCall(t, callerId, calledId)
	t0 := f.clock.Now().Add(time.Second)
	f.push(t, call, callerNumber, entity.LegAnswer, t0)
	f.push(t, call, calledNumber, entity.LegAnswer, t0.Add(5*time.Second))
	f.push(t, call, calledNumber, entity.LegDisconnect, t0.Add(65*time.Second))
	out := f.push(t, call, callerNumber, entity.LegDisconnect, t0.Add(65*time.Second))
	require.Equal(t, constant.CallStatusEndOk, out.Status)
	f.clock.Advance(2 * time.Minute)
	return f.reload(t, call)
}
