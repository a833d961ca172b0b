// Package ws publishes order state updates to Redis and websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/exchange/ordercalc/internal/order"
	"github.com/redis/go-redis/v9"
)

const stateChannelTemplate = "ordercalc:state:{sessionId}"

// Message is the payload sent for every state update.
type Message struct {
	Channel   string     `json:"channel"`
	Event     string     `json:"event"`
	SessionID string     `json:"sessionId"`
	Data      order.View `json:"data"`
}

func newStateMessage(sessionID string, state order.State) Message {
	return Message{
		Channel:   "order",
		Event:     "state",
		SessionID: sessionID,
		Data:      order.NewView(state),
	}
}

// Publisher publishes session state updates.
type Publisher struct {
	client   redis.Cmdable
	template string
}

// NewPublisher creates a publisher.
func NewPublisher(client redis.Cmdable, channel string) *Publisher {
	if channel == "" {
		channel = stateChannelTemplate
	}
	return &Publisher{client: client, template: channel}
}

// Channel returns the pub/sub channel of a session.
func (p *Publisher) Channel(sessionID string) string {
	return strings.ReplaceAll(p.template, "{sessionId}", sessionID)
}

// PublishState publishes the state of a session.
func (p *Publisher) PublishState(ctx context.Context, sessionID string, state order.State) error {
	raw, err := json.Marshal(newStateMessage(sessionID, state))
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Channel(sessionID), raw).Err()
}
