package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

// cannedServer answers every path with the envelope registered for it
type cannedServer struct {
	mu       sync.Mutex
	requests []recorded
	replies  map[string]string
}

func (s *cannedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, recorded{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		auth:   r.Header.Get("Authorization"),
		body:   string(body),
	})
	reply, ok := s.replies[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		reply = `{"code":1005,"msg":"not found"}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func (s *cannedServer) last() recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newCanned(t *testing.T, replies map[string]string) (*Client, *cannedServer) {
	t.Helper()
	canned := &cannedServer{replies: replies}
	srv := httptest.NewServer(canned)
	t.Cleanup(srv.Close)
	return MustNewClient(srv.URL, WithToken("tok")), canned
}

func TestClient_Contacts(t *testing.T) {
	c, canned := newCanned(t, map[string]string{
		"/contact/list":         `{"code":0,"msg":"success","data":[{"peer_id":"u2","conversation_id":"c1","unread":2,"last_msg":{"memo":"hi","self":false,"id":9,"by":"u2"},"last_at":100}]}`,
		"/contact/block":        `{"code":0,"msg":"success","data":{"peer_id":"u2","is_block":true}}`,
		"/contact/unread_count": `{"code":0,"msg":"success","data":{"count":4}}`,
	})
	ctx := context.Background()

	contacts, err := c.ListContacts(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, int32(2), contacts[0].Unread)
	assert.Equal(t, int64(9), contacts[0].LastMsg.Id)

	req := canned.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "keyword=ali", req.query)
	assert.Equal(t, "Bearer tok", req.auth)

	contact, err := c.SetBlock(ctx, "u2", true)
	require.NoError(t, err)
	assert.True(t, contact.IsBlock)
	req = canned.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.JSONEq(t, `{"peer_id":"u2","block":true}`, req.body)

	count, err := c.GetUnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestClient_MessagesAndCalls(t *testing.T) {
	c, canned := newCanned(t, map[string]string{
		"/msg/trigger": `{"code":0,"msg":"success","data":{"msg_id":11,"deduped":true}}`,
		"/msg/latest":  `{"code":0,"msg":"success","data":{"messages":[{"id":11,"msg_type":1}],"more":3}}`,
		"/call/start":  `{"code":0,"msg":"success","data":{"id":12,"msg_type":5,"body":{"call_id":"call-1"}}}`,
		"/call/poll":   `{"code":0,"msg":"success","data":{"call_id":"call-1","status":500,"changed":true}}`,
		"/call/check":  `{"code":0,"msg":"success"}`,
	})
	ctx := context.Background()

	res, err := c.Trigger(ctx, &TriggerRequest{PeerId: "u2", Trigger: TriggerUserCode, Content: "scan"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.MsgId)
	assert.True(t, res.Deduped)

	page, err := c.LatestMessages(ctx, "u2", 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.More)
	assert.Len(t, page.Messages, 1)
	assert.Contains(t, canned.last().query, "before_id=20")

	msg, err := c.StartCall(ctx, "u2")
	require.NoError(t, err)
	callId, err := CallIdOf(msg)
	require.NoError(t, err)
	assert.Equal(t, "call-1", callId)

	_, err = CallIdOf(page.Messages[0])
	assert.Error(t, err)

	outcome, err := c.PollCall(ctx, callId)
	require.NoError(t, err)
	assert.True(t, IsCallEnd(outcome.Status))
	assert.JSONEq(t, `{"call_id":"call-1"}`, canned.last().body)

	require.NoError(t, c.CheckCallMessages(ctx, "u2"))
}

func TestClient_ErrorCodes(t *testing.T) {
	c, _ := newCanned(t, map[string]string{
		"/msg/stay":   `{"code":4010,"msg":"wait for a reply or call before sending more messages"}`,
		"/call/start": `{"code":6004,"msg":"phone number not bound"}`,
	})
	ctx := context.Background()

	_, err := c.Stay(ctx, "u2", "hello")
	assert.True(t, errors.Is(err, ErrPingPongLimit))

	_, err = c.StartCall(ctx, "u2")
	assert.True(t, errors.Is(err, ErrCallNoPhone))
	assert.False(t, errors.Is(err, ErrPingPongLimit))

	_, err = c.GetProfile(ctx)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeNotFound, apiErr.Code)
}

func TestPushClient(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(wsResponse{ReqIdentifier: wsPushEvent, Data: json.RawMessage(`{"event":20,"payload":{"mid":1}}`)})
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := wsResponse{ReqIdentifier: req.ReqIdentifier, MsgIncr: req.MsgIncr}
			switch req.ReqIdentifier {
			case wsUnreadCount:
				resp.Data = json.RawMessage(`{"count":2}`)
			case wsOpenConv:
				resp.ErrCode, resp.ErrMsg = CodeContactNotFound, "contact not found"
			}
			_ = conn.WriteJSON(resp)
			if req.ReqIdentifier == wsHeartbeat {
				_ = conn.WriteJSON(wsResponse{ReqIdentifier: wsKickOnlineMsg})
				return
			}
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, err := DialPush(ctx, wsURL, "bad", "u1", PlatformIdWeb)
	require.Error(t, err)

	pc, err := DialPush(ctx, wsURL, "tok", "u1", PlatformIdWeb)
	require.NoError(t, err)
	defer pc.Close()

	evt, err := pc.WaitEvent(ctx, EventNewMessage, 3*time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mid":1}`, string(evt.Payload))

	count, err := pc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = pc.OpenConversation(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrContactNotFound))

	require.NoError(t, pc.Heartbeat(ctx))
	assert.ErrorIs(t, pc.Err(), ErrKicked)
}
