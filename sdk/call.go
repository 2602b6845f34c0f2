package sdk

import (
	"context"
	"encoding/json"
	"fmt"
)

// StartCall asks the platform to ring the current user and then peerId.
// The returned message carries the call id in its body.
func (c *Client) StartCall(ctx context.Context, peerId string) (*MessageInfo, error) {
	var result MessageInfo
	if err := c.post(ctx, "/call/start", &PeerRequest{PeerId: peerId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallIdOf extracts the call id from a call message
func CallIdOf(msg *MessageInfo) (string, error) {
	if msg.MsgType != MsgTypeCall {
		return "", fmt.Errorf("message %d is not a call", msg.Id)
	}
	var body CallBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return "", fmt.Errorf("decode call body: %w", err)
	}
	return body.CallId, nil
}

// GetCall gets a call session the current user takes part in
func (c *Client) GetCall(ctx context.Context, callId string) (*CallInfo, error) {
	var result CallInfo
	if err := c.get(ctx, "/call/info", map[string]string{"call_id": callId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PollCall asks the platform to fetch the provider record of a call now
func (c *Client) PollCall(ctx context.Context, callId string) (*PollOutcome, error) {
	var result PollOutcome
	if err := c.post(ctx, "/call/poll", &CallRequest{CallId: callId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckCallMessages settles unfinished call messages with peerId
func (c *Client) CheckCallMessages(ctx context.Context, peerId string) error {
	return c.post(ctx, "/call/check", &PeerRequest{PeerId: peerId}, nil)
}
