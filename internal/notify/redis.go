package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/timewindow"
)

// DefaultChannel is the pub/sub channel notifications are relayed on
const DefaultChannel = "electvote:notifications"

// Event is the JSON document published for each notification
type Event struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// Connect opens a Redis client from a redis:// URL and checks it answers
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Redis publishes notifications to a pub/sub channel
type Redis struct {
	client  redis.UniversalClient
	channel string
	clock   clock.Clock
}

// NewRedis creates a Redis relay. An empty channel uses DefaultChannel.
func NewRedis(client redis.UniversalClient, channel string, clk clock.Clock) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel, clock: clk}
}

// Channel returns the pub/sub channel name
func (r *Redis) Channel() string {
	return r.channel
}

// Notify publishes the message as an Event
func (r *Redis) Notify(ctx context.Context, userID int64, message string) error {
	payload, err := json.Marshal(Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: timewindow.FormatInstant(r.clock.Now()),
	})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}
