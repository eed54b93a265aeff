// Package bot runs the Telegram side of linktrim: it watches configured
// chats, feeds message text through the rewrite pipeline, and swaps messages
// whose links were canonicalized.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"github.com/linktrim/linktrim/rewrite"
	"github.com/linktrim/linktrim/stats"
)

// telegramAPI is the slice of the Telegram client the message handler needs,
// split out so tests can inject a fake.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// Config holds the bot's settings.
type Config struct {
	// Token is the bot token from @BotFather (required).
	Token string

	// EnabledChats lists the chat IDs the bot processes. Messages from any
	// other chat are ignored.
	EnabledChats []int64

	// SendRate and SendBurst bound outbound API calls; Telegram allows
	// roughly 30 messages per second.
	SendRate  float64
	SendBurst int

	// HTTPClient optionally carries Telegram API traffic, e.g. through the
	// same proxy the resolver uses.
	HTTPClient *http.Client

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Bot wires the Telegram long-polling loop to the rewrite pipeline.
type Bot struct {
	tg        *bot.Bot
	api       telegramAPI
	pipeline  *rewrite.Pipeline
	store     stats.Store
	limiter   *rate.Limiter
	enabled   map[int64]struct{}
	startedAt time.Time
	logger    *slog.Logger
}

// New creates a Bot. It does not contact Telegram; Run does.
func New(cfg Config, pipeline *rewrite.Pipeline, store stats.Store) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("rewrite pipeline is required")
	}
	if store == nil {
		store = stats.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = 25
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 5
	}

	enabled := make(map[int64]struct{}, len(cfg.EnabledChats))
	for _, chatID := range cfg.EnabledChats {
		enabled[chatID] = struct{}{}
	}

	b := &Bot{
		pipeline:  pipeline,
		store:     store,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		enabled:   enabled,
		startedAt: time.Now(),
		logger:    cfg.Logger.With("component", "bot"),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.handleUpdate),
		bot.WithSkipGetMe(),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, bot.WithHTTPClient(time.Minute, cfg.HTTPClient))
	}

	tg, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	b.tg = tg
	b.api = tg
	return b, nil
}

// Run authenticates with Telegram and blocks polling for updates until the
// context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up bot identity (is the token valid?): %w", err)
	}
	b.logger.Info("authorized with telegram", "username", me.Username, "id", me.ID)

	b.tg.Start(ctx)
	return nil
}

// handleUpdate dispatches one update. Only regular messages are handled;
// every other update kind is logged and ignored.
func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}
	if update.Message == nil {
		b.logger.Debug("ignoring unsupported update", "kind", updateKind(update), "update_id", update.ID)
		return
	}
	b.handleMessage(ctx, update.Message)
}

// handleMessage runs the pipeline on one message and, when it changed the
// text, reposts the cleaned version with attribution and deletes the
// original. A pipeline error leaves the message alone.
func (b *Bot) handleMessage(ctx context.Context, msg *models.Message) {
	// Backlog delivered by getUpdates from before this process started is
	// stale; replacing it now would be confusing.
	if int64(msg.Date) < b.startedAt.Unix() {
		return
	}
	if !b.chatEnabled(msg.Chat.ID) {
		return
	}
	if msg.Text == "" {
		return
	}

	rewritten, err := b.pipeline.ReplaceAll(ctx, msg.Text)
	if err != nil {
		b.logger.Error("failed to rewrite message, leaving original",
			"chat_id", msg.Chat.ID, "message_id", msg.ID, "error", err)
		return
	}
	if rewritten == msg.Text {
		return
	}

	b.logger.Info("replacing message", "chat_id", msg.Chat.ID, "message_id", msg.ID)

	if err := b.limiter.Wait(ctx); err != nil {
		b.logger.Warn("send cancelled while rate limited", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	params := &bot.SendMessageParams{
		ChatID:    msg.Chat.ID,
		Text:      formatReplacement(msg, rewritten),
		ParseMode: models.ParseModeHTML,
	}
	if msg.ReplyToMessage != nil {
		params.ReplyParameters = &models.ReplyParameters{MessageID: msg.ReplyToMessage.ID}
	}

	if _, err := b.api.SendMessage(ctx, params); err != nil {
		b.logger.Error("failed to send replacement message",
			"chat_id", msg.Chat.ID, "message_id", msg.ID, "error", err)
		return
	}

	// The replacement is posted; only now is the original safe to remove.
	if _, err := b.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	}); err != nil {
		b.logger.Error("failed to delete original message",
			"chat_id", msg.Chat.ID, "message_id", msg.ID, "error", err)
	}

	if err := b.store.Incr(ctx, msg.Chat.ID); err != nil {
		b.logger.Warn("failed to record rewrite counter", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) chatEnabled(chatID int64) bool {
	_, ok := b.enabled[chatID]
	return ok
}

// updateKind names the populated variant of an update for logging. The
// variants form a closed set; anything new reports as "unknown" until it is
// added here.
func updateKind(u *models.Update) string {
	switch {
	case u.Message != nil:
		return "message"
	case u.EditedMessage != nil:
		return "edited_message"
	case u.ChannelPost != nil:
		return "channel_post"
	case u.EditedChannelPost != nil:
		return "edited_channel_post"
	case u.InlineQuery != nil:
		return "inline_query"
	case u.ChosenInlineResult != nil:
		return "chosen_inline_result"
	case u.CallbackQuery != nil:
		return "callback_query"
	case u.ShippingQuery != nil:
		return "shipping_query"
	case u.PreCheckoutQuery != nil:
		return "pre_checkout_query"
	case u.Poll != nil:
		return "poll"
	case u.PollAnswer != nil:
		return "poll_answer"
	case u.MyChatMember != nil:
		return "my_chat_member"
	case u.ChatMember != nil:
		return "chat_member"
	case u.ChatJoinRequest != nil:
		return "chat_join_request"
	}
	return "unknown"
}
