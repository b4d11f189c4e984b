package rosbridge

import (
	"context"

	"github.com/open-teleop/scenebridge/pkg/log"
)

// Run connects a client, passes it to fn and closes it when fn returns,
// fails or panics.
func Run(ctx context.Context, opts Options, logger log.Logger, fn func(ctx context.Context, c *Client) error) error {
	c := NewClient(opts, logger)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warnf("Error closing rosbridge connection: %v", err)
		}
	}()
	return fn(ctx, c)
}
