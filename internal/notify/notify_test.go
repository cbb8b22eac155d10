package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/notify"
	"github.com/electvote/electvote/internal/testutil"
	"github.com/electvote/electvote/internal/timewindow"
)

type recordingSink struct {
	calls []string
	err   error
}

func (s *recordingSink) Notify(_ context.Context, _ int64, message string) error {
	s.calls = append(s.calls, message)
	return s.err
}

func TestStore_Notify(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	userID := testutil.CreateUser(t, repo, "alice", models.RoleVoter)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := notify.NewStore(repo, clock.NewFixed(now))

	require.NoError(t, store.Notify(context.Background(), userID, "approved"))

	list, err := repo.ListNotifications(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "approved", list[0].Message)
	assert.False(t, list[0].Read)
	assert.Equal(t, timewindow.FormatInstant(now), list[0].CreatedAt)
}

func TestStore_NotifyUnknownUser(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	store := notify.NewStore(repo, clock.System{})

	assert.Error(t, store.Notify(context.Background(), 999, "hello"))
}

func TestFanout_AttemptsEverySink(t *testing.T) {
	failing := &recordingSink{err: errors.New("relay down")}
	ok := &recordingSink{}
	fanout := notify.Fanout{failing, nil, ok}

	err := fanout.Notify(context.Background(), 1, "msg")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
	assert.Equal(t, []string{"msg"}, failing.calls)
	assert.Equal(t, []string{"msg"}, ok.calls)
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, notify.Fanout{}.Notify(context.Background(), 1, "msg"))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := notify.Connect("not a url")
	assert.Error(t, err)
}

// TestRedis_Publish needs a live server: ELECTVOTE_TEST_REDIS_URL=redis://localhost:6379/0
func TestRedis_Publish(t *testing.T) {
	url := os.Getenv("ELECTVOTE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ELECTVOTE_TEST_REDIS_URL not set")
	}
	client, err := notify.Connect(url)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	relay := notify.NewRedis(client, "electvote:test:notifications", clock.System{})
	sub := client.Subscribe(ctx, relay.Channel())
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, relay.Notify(ctx, 42, "your application was approved"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event notify.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, int64(42), event.UserID)
	assert.Equal(t, "your application was approved", event.Message)
	assert.NotEmpty(t, event.ID)
}

func TestNewRedis_DefaultChannel(t *testing.T) {
	relay := notify.NewRedis(nil, "", clock.System{})
	assert.Equal(t, notify.DefaultChannel, relay.Channel())
}
