package mqtt

import "fmt"

// systemStatusTopic carries the service's online/offline status,
// including the LWT published by the broker on unexpected disconnect.
const systemStatusTopic = "tuyafusion/system/status"

// SubscribePush subscribes to the source's configured push topic at
// the configured QoS level. This is the standard entry point for
// wiring a push channel into the registry.
//
// Returns ErrInvalidTopic when the source config carries no topic.
func (c *Client) SubscribePush(handler MessageHandler) error {
	if c.cfg.Topic == "" {
		return fmt.Errorf("%w: source has no push topic configured", ErrInvalidTopic)
	}
	// #nosec G115 -- QoS is validated to 0..2 by config.Validate
	return c.Subscribe(c.cfg.Topic, byte(c.cfg.QoS), handler)
}
