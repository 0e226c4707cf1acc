package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-image-studio/internal/config"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/infra/worker"
)

var _ adapter.ResultNotifier = (*ResultNotifier)(nil)

// Sender is the subset of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Translator interface {
	T(key string, args ...interface{}) string
}

// ResultNotifier delivers finished images as a chat photo, so a user who
// closed the mini-app still receives the result. Delivery runs on the pool.
type ResultNotifier struct {
	bot      Sender
	pool     *worker.Pool
	tr       Translator
	username string
	log      *zerolog.Logger
}

// NewBotSender connects to the Bot API with cfg.Token.
func NewBotSender(cfg *config.BotConfig) (*tgbotapi.BotAPI, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	return tgbotapi.NewBotAPI(cfg.Token)
}

func NewResultNotifier(bot Sender, pool *worker.Pool, tr Translator, username string, log *zerolog.Logger) *ResultNotifier {
	return &ResultNotifier{bot: bot, pool: pool, tr: tr, username: strings.TrimPrefix(username, "@"), log: log}
}

// NotifyResult queues the delivery and returns immediately.
func (n *ResultNotifier) NotifyResult(_ context.Context, userID int64, templateTitle, resultURL string) error {
	if userID == 0 || resultURL == "" {
		return errors.New("nothing to deliver")
	}
	return n.pool.Submit(func(ctx context.Context) error {
		return n.deliver(ctx, userID, templateTitle, resultURL)
	})
}

func (n *ResultNotifier) deliver(ctx context.Context, userID int64, templateTitle, resultURL string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	caption := n.tr.T("result.caption", templateTitle)

	photo := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(resultURL))
	photo.Caption = caption
	photo.ReplyMarkup = n.markup(resultURL)
	_, err := n.bot.Send(photo)
	if err == nil {
		n.log.Info().Int64("user_id", userID).Msg("result delivered to chat")
		return nil
	}
	n.log.Warn().Err(err).Int64("user_id", userID).Msg("photo delivery failed, falling back to link")

	msg := tgbotapi.NewMessage(userID, caption+"\n"+resultURL)
	msg.ReplyMarkup = n.markup(resultURL)
	_, err = n.bot.Send(msg)
	return err
}

func (n *ResultNotifier) markup(resultURL string) tgbotapi.InlineKeyboardMarkup {
	row := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("⬇️", resultURL))
	if n.username != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("🎨", "https://t.me/"+n.username))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// NoopNotifier logs results instead of sending them; used when no bot token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(log *zerolog.Logger) *NoopNotifier { return &NoopNotifier{log: log} }

func (n *NoopNotifier) NotifyResult(_ context.Context, userID int64, templateTitle, resultURL string) error {
	n.log.Debug().Int64("user_id", userID).Str("template", templateTitle).Str("url", resultURL).Msg("[noop-telegram] result")
	return nil
}
