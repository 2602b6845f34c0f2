package sdk

import "context"

// GetProfile gets the current user's profile
func (c *Client) GetProfile(ctx context.Context) (*ProfileInfo, error) {
	var result ProfileInfo
	if err := c.get(ctx, "/profile/info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateProfile updates the current user's nickname or number
func (c *Client) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*ProfileInfo, error) {
	var result ProfileInfo
	if err := c.put(ctx, "/profile/update", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
