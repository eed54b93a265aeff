package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/linktrim/linktrim/rewrite"
	"github.com/linktrim/linktrim/stats"
)

// fakeAPI records send/delete calls instead of talking to Telegram.
type fakeAPI struct {
	sent    []*tgbot.SendMessageParams
	deleted []*tgbot.DeleteMessageParams
	sendErr error
}

func (f *fakeAPI) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, params)
	return &models.Message{ID: 1000}, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, params *tgbot.DeleteMessageParams) (bool, error) {
	f.deleted = append(f.deleted, params)
	return true, nil
}

func testBot(t *testing.T, api telegramAPI, chats ...int64) *Bot {
	t.Helper()

	pipeline, err := rewrite.NewPipeline(nil, rewrite.BuildCatalog([]string{"b23-short", "redirect-short"}, nil))
	require.NoError(t, err)

	enabled := make(map[int64]struct{})
	for _, chatID := range chats {
		enabled[chatID] = struct{}{}
	}

	return &Bot{
		api:       api,
		pipeline:  pipeline,
		store:     stats.NewMemoryStore(),
		limiter:   rate.NewLimiter(rate.Inf, 1),
		enabled:   enabled,
		startedAt: time.Now().Add(-time.Minute),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func message(chatID int64, text string) *models.Message {
	return &models.Message{
		ID:   42,
		Date: int(time.Now().Unix()),
		Chat: models.Chat{ID: chatID},
		From: &models.User{ID: 7, Username: "alice"},
		Text: text,
	}
}

func TestHandleMessage_RewritesAndReplaces(t *testing.T) {
	api := &fakeAPI{}
	b := testBot(t, api, -100123)

	b.handleMessage(context.Background(), message(-100123,
		"check https://www.bilibili.com/video/BV1Hg411T7fT/?spm_id_from=333.788"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, models.ParseModeHTML, api.sent[0].ParseMode)
	assert.Contains(t, api.sent[0].Text, "Sent by @alice")
	assert.Contains(t, api.sent[0].Text, "check https://www.bilibili.com/video/BV1Hg411T7fT/")
	assert.NotContains(t, api.sent[0].Text, "spm_id_from")

	require.Len(t, api.deleted, 1)
	assert.Equal(t, 42, api.deleted[0].MessageID)

	snap, err := b.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.PerChat[-100123])
}

func TestHandleMessage_UnchangedTextIsLeftAlone(t *testing.T) {
	api := &fakeAPI{}
	b := testBot(t, api, -100123)

	b.handleMessage(context.Background(), message(-100123, "no links here"))

	assert.Empty(t, api.sent)
	assert.Empty(t, api.deleted)
}

func TestHandleMessage_IgnoresDisabledChat(t *testing.T) {
	api := &fakeAPI{}
	b := testBot(t, api, -100123)

	b.handleMessage(context.Background(), message(999,
		"https://www.bilibili.com/video/BV1xx?spm_id_from=1"))

	assert.Empty(t, api.sent)
}

func TestHandleMessage_IgnoresBacklog(t *testing.T) {
	api := &fakeAPI{}
	b := testBot(t, api, -100123)
	b.startedAt = time.Now().Add(time.Hour)

	b.handleMessage(context.Background(), message(-100123,
		"https://www.bilibili.com/video/BV1xx?spm_id_from=1"))

	assert.Empty(t, api.sent)
}

func TestHandleMessage_SendFailureKeepsOriginal(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("telegram unavailable")}
	b := testBot(t, api, -100123)

	b.handleMessage(context.Background(), message(-100123,
		"https://www.bilibili.com/video/BV1xx?spm_id_from=1"))

	assert.Empty(t, api.deleted, "original must not be deleted when the replacement failed to send")
}

func TestHandleMessage_ReplyThreadPreserved(t *testing.T) {
	api := &fakeAPI{}
	b := testBot(t, api, -100123)

	msg := message(-100123, "https://www.bilibili.com/video/BV1xx?spm_id_from=1")
	msg.ReplyToMessage = &models.Message{ID: 17}

	b.handleMessage(context.Background(), msg)

	require.Len(t, api.sent, 1)
	require.NotNil(t, api.sent[0].ReplyParameters)
	assert.Equal(t, 17, api.sent[0].ReplyParameters.MessageID)
}

func TestUpdateKind(t *testing.T) {
	tests := []struct {
		name   string
		update *models.Update
		want   string
	}{
		{name: "message", update: &models.Update{Message: &models.Message{}}, want: "message"},
		{name: "edited message", update: &models.Update{EditedMessage: &models.Message{}}, want: "edited_message"},
		{name: "channel post", update: &models.Update{ChannelPost: &models.Message{}}, want: "channel_post"},
		{name: "poll", update: &models.Update{Poll: &models.Poll{}}, want: "poll"},
		{name: "empty", update: &models.Update{}, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, updateKind(tt.update))
		})
	}
}
