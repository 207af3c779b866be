package mqtt

import "fmt"

// Publish sends a message to the specified topic.
//
// The publish is synchronous: it waits for broker acknowledgement (at the
// configured QoS) up to the publish timeout. Varserver requests ride on this
// path, so a timeout here surfaces as a request failure rather than a silent
// drop.
//
// Parameters:
//   - topic: Destination topic
//   - payload: Message body (typically JSON)
//   - retained: Whether the broker should retain the message for new subscribers
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: publish to %s", ErrNotConnected, topic)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}
