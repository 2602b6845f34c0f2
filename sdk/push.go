package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Push channel frame identifiers
const (
	wsHeartbeat     = 1001
	wsUnreadCount   = 1002
	wsOpenConv      = 1003
	wsPushEvent     = 2001
	wsKickOnlineMsg = 2002
)

// ErrKicked is returned by Events consumers once a newer connection on the
// same platform replaced this one
var ErrKicked = errors.New("push connection replaced by a newer one")

type wsRequest struct {
	ReqIdentifier int32           `json:"req_identifier"`
	MsgIncr       string          `json:"msg_incr"`
	SendId        string          `json:"send_id"`
	Data          json.RawMessage `json:"data,omitempty"`
}

type wsResponse struct {
	ReqIdentifier int32           `json:"req_identifier"`
	MsgIncr       string          `json:"msg_incr"`
	ErrCode       int             `json:"err_code"`
	ErrMsg        string          `json:"err_msg"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// PushClient holds one push connection
type PushClient struct {
	conn    *websocket.Conn
	userId  string
	events  chan PushEvent
	done    chan struct{}
	mu      sync.Mutex
	incr    atomic.Int64
	pending sync.Map // msg_incr -> chan wsResponse
	err     error
}

// DialPush opens a push connection. wsURL is the push endpoint base, for
// example ws://localhost:8081.
func DialPush(ctx context.Context, wsURL, token, userId string, platformId int) (*PushClient, error) {
	q := url.Values{}
	q.Set("token", token)
	q.Set("send_id", userId)
	q.Set("platform_id", strconv.Itoa(platformId))
	q.Set("sdk_type", "go")

	u := strings.TrimSuffix(wsURL, "/") + "/ws?" + q.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial push: %w", err)
	}

	c := &PushClient{
		conn:   conn,
		userId: userId,
		events: make(chan PushEvent, 100),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the pushed events. The channel is closed when the
// connection ends, Err tells why.
func (c *PushClient) Events() <-chan PushEvent {
	return c.events
}

// Err returns why the connection ended
func (c *PushClient) Err() error {
	<-c.done
	return c.err
}

func (c *PushClient) readLoop() {
	defer func() {
		close(c.events)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.err == nil {
				c.err = err
			}
			return
		}

		var resp wsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}

		switch resp.ReqIdentifier {
		case wsPushEvent:
			var evt PushEvent
			if err := json.Unmarshal(resp.Data, &evt); err != nil {
				continue
			}
			select {
			case c.events <- evt:
			default:
				// Slow consumer, drop the event
			}
		case wsKickOnlineMsg:
			c.err = ErrKicked
		default:
			if ch, ok := c.pending.LoadAndDelete(resp.MsgIncr); ok {
				ch.(chan wsResponse) <- resp
			}
		}
	}
}

// request sends one request frame and waits for its reply
func (c *PushClient) request(ctx context.Context, identifier int32, body any) (json.RawMessage, error) {
	req := wsRequest{
		ReqIdentifier: identifier,
		MsgIncr:       strconv.FormatInt(c.incr.Add(1), 10),
		SendId:        c.userId,
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req.Data = data
	}

	ch := make(chan wsResponse, 1)
	c.pending.Store(req.MsgIncr, ch)
	defer c.pending.Delete(req.MsgIncr)

	c.mu.Lock()
	err := c.conn.WriteJSON(req)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.ErrCode != 0 {
			return nil, &Error{Code: resp.ErrCode, Msg: resp.ErrMsg}
		}
		return resp.Data, nil
	case <-c.done:
		return nil, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Heartbeat keeps the connection's presence alive
func (c *PushClient) Heartbeat(ctx context.Context) error {
	_, err := c.request(ctx, wsHeartbeat, nil)
	return err
}

// UnreadCount counts contacts holding unread messages
func (c *PushClient) UnreadCount(ctx context.Context) (int64, error) {
	data, err := c.request(ctx, wsUnreadCount, nil)
	if err != nil {
		return 0, err
	}
	var out UnreadCount
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// OpenConversation marks the conversation with peerId read over the socket
func (c *PushClient) OpenConversation(ctx context.Context, peerId string) (*ContactInfo, error) {
	data, err := c.request(ctx, wsOpenConv, &PeerRequest{PeerId: peerId})
	if err != nil {
		return nil, err
	}
	var out ContactInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	out.PeerId = peerId
	return &out, nil
}

// WaitEvent waits for the next event with the given code
func (c *PushClient) WaitEvent(ctx context.Context, event int, timeout time.Duration) (*PushEvent, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case evt, ok := <-c.events:
			if !ok {
				return nil, c.Err()
			}
			if evt.Event == event {
				return &evt, nil
			}
		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for event %d", event)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close closes the connection
func (c *PushClient) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.conn.Close()
}
