package sdk

import (
	"context"
	"strconv"
)

// Trigger records a scan of the peer's code
func (c *Client) Trigger(ctx context.Context, req *TriggerRequest) (*TriggerResult, error) {
	var result TriggerResult
	if err := c.post(ctx, "/msg/trigger", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stay sends a free text message to peerId
func (c *Client) Stay(ctx context.Context, peerId, content string) (*MessageInfo, error) {
	var result MessageInfo
	if err := c.post(ctx, "/msg/stay", &StayRequest{PeerId: peerId, Content: content}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LatestMessages returns the page of history older than beforeId, the newest
// page when beforeId is 0
func (c *Client) LatestMessages(ctx context.Context, peerId string, beforeId int64) (*MessagePage, error) {
	params := map[string]string{"peer_id": peerId}
	if beforeId > 0 {
		params["before_id"] = strconv.FormatInt(beforeId, 10)
	}
	var result MessagePage
	if err := c.get(ctx, "/msg/latest", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MessagesAfter returns messages newer than afterId, oldest first
func (c *Client) MessagesAfter(ctx context.Context, peerId string, afterId int64) ([]*MessageInfo, error) {
	params := map[string]string{
		"peer_id":  peerId,
		"after_id": strconv.FormatInt(afterId, 10),
	}
	var result []*MessageInfo
	if err := c.get(ctx, "/msg/after", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MessageReach returns the read state and call outcome of one message
func (c *Client) MessageReach(ctx context.Context, msgId int64) (*MessageReach, error) {
	var result MessageReach
	if err := c.get(ctx, "/msg/reach", map[string]string{"msg_id": strconv.FormatInt(msgId, 10)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
