package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/assistant"
	"github.com/velikandr/analyst-bot/internal/models"
	"github.com/velikandr/analyst-bot/internal/news"
	"github.com/velikandr/analyst-bot/internal/report"
	"github.com/velikandr/analyst-bot/internal/storage"
)

// Fixed reply keyboard labels.
const (
	menuReport  = "📊 Отчёт"
	menuPresets = "🧠 Пресеты"
	menuHistory = "📜 История"
	menuProfile = "👤 Профиль"
	menuHelp    = "❓ Помощь"
)

const (
	historyLimit = 10
	newsLimit    = 5
)

type Bot struct {
	api       *tgbotapi.BotAPI
	storage   storage.Storage
	reports   *report.Engine
	assistant *assistant.Client
	news      *news.Client
	logger    *zap.Logger
}

func New(token string, store storage.Storage, reports *report.Engine, assist *assistant.Client, newsClient *news.Client, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:       api,
		storage:   store,
		reports:   reports,
		assistant: assist,
		news:      newsClient,
		logger:    logger,
	}, nil
}

// Start runs the long-polling loop. Messages are handled one at a time;
// each handler finishes its storage writes and at most one outbound HTTP
// call before the next update is taken.
func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	ctx := context.Background()
	logger := b.logger.With(
		zap.String("trace_id", uuid.New().String()),
		zap.Int64("user_id", message.From.ID))

	if message.IsCommand() {
		b.handleCommand(ctx, logger, message)
		return
	}
	b.handleText(ctx, logger, message)
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuReport),
			tgbotapi.NewKeyboardButton(menuPresets),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuHistory),
			tgbotapi.NewKeyboardButton(menuProfile),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuHelp),
		),
	)
}

// registerUser stores the sender if not seen before. Registration is
// idempotent, so calling it on every free-text message is safe.
func (b *Bot) registerUser(ctx context.Context, logger *zap.Logger, from *tgbotapi.User) error {
	user := &models.User{
		UserID:   from.ID,
		Username: from.UserName,
		FullName: fullName(from),
	}
	if err := b.storage.RegisterUser(ctx, user); err != nil {
		logger.Error("Failed to register user", zap.Error(err))
		return err
	}
	return nil
}

// logQuery records the interaction. Failures are logged and swallowed so a
// broken query log never blocks the user-visible response.
func (b *Bot) logQuery(ctx context.Context, logger *zap.Logger, userID int64, text, source string) {
	if _, err := b.storage.LogQuery(ctx, userID, text, source, nil); err != nil {
		logger.Error("Failed to log query",
			zap.Error(err),
			zap.String("source", source))
	}
}

// sendHTML sends rich text with the main keyboard attached. Any user- or
// API-originated substrings must already be HTML-escaped by the caller.
func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// sendPlain sends static text without HTML parsing, for strings with
// literal angle brackets such as the help message.
func (b *Bot) sendPlain(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) replyWithKeyboard(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	msg.ReplyMarkup = mainKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

// displayName is what /start greets the user by.
func displayName(user *tgbotapi.User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.UserName
}

func fullName(user *tgbotapi.User) string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// truncateRunes shortens preset content for list display without splitting
// multi-byte characters.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func presetNotFoundText(name string) string {
	return fmt.Sprintf("Пресет '%s' не найден.", html.EscapeString(name))
}

func formatPresets(presets []models.Preset) string {
	lines := make([]string, 0, len(presets)+1)
	lines = append(lines, "📚 Твои пресеты:")
	for _, p := range presets {
		lines = append(lines, fmt.Sprintf("• %s — %s...",
			html.EscapeString(p.Name),
			html.EscapeString(truncateRunes(p.Content, 60))))
	}
	return strings.Join(lines, "\n")
}

func formatHistory(queries []models.Query) string {
	lines := make([]string, 0, len(queries))
	for _, q := range queries {
		lines = append(lines, fmt.Sprintf("• %s  —  %s",
			html.EscapeString(q.Text),
			html.EscapeString(q.TS)))
	}
	return "📜 Последние запросы:\n\n" + strings.Join(lines, "\n")
}

func formatArticles(articles []models.Article) string {
	lines := make([]string, 0, len(articles))
	for _, a := range articles {
		// Title and URL are escaped by the news adapter.
		lines = append(lines, a.Title+"\n"+a.URL)
	}
	return strings.Join(lines, "\n\n")
}
