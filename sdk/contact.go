package sdk

import "context"

// ListContacts lists the current user's contacts, unread first. keyword may
// be empty.
func (c *Client) ListContacts(ctx context.Context, keyword string) ([]*ContactInfo, error) {
	var params map[string]string
	if keyword != "" {
		params = map[string]string{"keyword": keyword}
	}
	var result []*ContactInfo
	if err := c.get(ctx, "/contact/list", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetContact gets the contact of one peer
func (c *Client) GetContact(ctx context.Context, peerId string) (*ContactInfo, error) {
	var result ContactInfo
	if err := c.get(ctx, "/contact/info", map[string]string{"peer_id": peerId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LinkContact links the current user and peerId in both directions
func (c *Client) LinkContact(ctx context.Context, peerId, symbol string) (*ContactInfo, error) {
	var result ContactInfo
	if err := c.post(ctx, "/contact/link", &PeerRequest{PeerId: peerId, Symbol: symbol}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenConversation marks everything received from peerId as read
func (c *Client) OpenConversation(ctx context.Context, peerId string) (*ContactInfo, error) {
	var result ContactInfo
	if err := c.post(ctx, "/contact/open", &PeerRequest{PeerId: peerId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetBlock blocks or unblocks peerId
func (c *Client) SetBlock(ctx context.Context, peerId string, block bool) (*ContactInfo, error) {
	var result ContactInfo
	if err := c.post(ctx, "/contact/block", &BlockRequest{PeerId: peerId, Block: block}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetRemark sets the note on peerId
func (c *Client) SetRemark(ctx context.Context, peerId, remark string) (*ContactInfo, error) {
	var result ContactInfo
	if err := c.post(ctx, "/contact/remark", &RemarkRequest{PeerId: peerId, Remark: remark}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUnreadCount counts contacts holding unread messages
func (c *Client) GetUnreadCount(ctx context.Context) (int64, error) {
	var result UnreadCount
	if err := c.get(ctx, "/contact/unread_count", nil, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}
