package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/models"
	"github.com/velikandr/analyst-bot/internal/storage"
)

const (
	operationFailedText = "⚠️ Ошибка операции. Попробуй позже."
	notRecognizedText   = "Не распознано. Используй меню или /help."
)

func (b *Bot) handleCommand(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, logger, message)
	case "help":
		b.handleHelp(message)
	case "report":
		b.handleReport(ctx, logger, message)
	case "preset_add":
		b.handlePresetAdd(ctx, logger, message)
	case "preset_list":
		b.handlePresetList(ctx, logger, message)
	case "preset_use":
		b.handlePresetUse(ctx, logger, message)
	case "preset_del":
		b.handlePresetDel(ctx, logger, message)
	case "profile":
		b.handleProfile(ctx, logger, message)
	case "history":
		b.handleHistory(ctx, logger, message)
	case "ask":
		b.handleAsk(ctx, logger, message)
	case "news":
		b.handleNews(ctx, logger, message)
	default:
		_ = b.registerUser(ctx, logger, message.From)
		b.logQuery(ctx, logger, message.From.ID, message.Text, models.SourceMessage)
		b.sendPlain(message.Chat.ID, notRecognizedText)
	}
}

func (b *Bot) handleStart(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	if err := b.registerUser(ctx, logger, message.From); err != nil {
		b.reply(message, operationFailedText)
		return
	}

	msg := fmt.Sprintf("👋 Привет, <b>%s</b>!\n\n"+
		"Я — Помощник_Аналитика. Выбери действие:\n\n"+
		"• Используй команду /ask  чтобы задать вопрос нейросети\n"+
		"• Используй команду /news чтобы получить новости по теме\n\n"+
		"Или выбери пункт в меню ниже.",
		html.EscapeString(displayName(message.From)))
	b.sendHTML(message.Chat.ID, msg)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	helpText := "Команды:\n" +
		"/start — показать приветствие\n" +
		"/report — сформировать отчёт по data/demo.csv\n" +
		"/preset_add имя текст — сохранить пресет\n" +
		"/preset_list — список пресетов\n" +
		"/preset_use имя — применить пресет\n" +
		"/preset_del имя — удалить пресет\n" +
		"/profile — показать профиль\n" +
		"/history — история запросов\n" +
		"/ask <вопрос> — задать вопрос нейросети (пиши после команды)\n" +
		"/news <тема> — получить новости по теме (пиши после команды)\n"

	// The command list contains literal < and >, so it goes out without
	// HTML parsing.
	b.sendPlain(message.Chat.ID, helpText)
}

func (b *Bot) handleReport(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	b.logQuery(ctx, logger, message.From.ID, "/report", models.SourceCommand)
	b.sendHTML(message.Chat.ID, b.reports.Generate())
}

func (b *Bot) handlePresetAdd(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())
	parts := strings.SplitN(args, " ", 2)
	if args == "" || len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		b.reply(message, "Использование: /preset_add имя текст")
		return
	}
	name, content := parts[0], strings.TrimSpace(parts[1])

	if err := b.storage.AddPreset(ctx, message.From.ID, name, content); err != nil {
		logger.Error("Failed to add preset", zap.Error(err), zap.String("name", name))
		b.reply(message, "⚠️ Ошибка при сохранении пресета.")
		return
	}
	b.logQuery(ctx, logger, message.From.ID, "/preset_add "+name, models.SourceCommand)
	b.reply(message, fmt.Sprintf("✅ Пресет '%s' сохранён.", html.EscapeString(name)))
}

func (b *Bot) handlePresetList(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	presets, err := b.storage.ListPresets(ctx, message.From.ID)
	if err != nil {
		logger.Error("Failed to list presets", zap.Error(err))
		b.reply(message, operationFailedText)
		return
	}
	if len(presets) == 0 {
		b.reply(message, "У тебя нет пресетов.")
		return
	}
	b.reply(message, formatPresets(presets))
}

func (b *Bot) handlePresetUse(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.reply(message, "Использование: /preset_use имя")
		return
	}

	content, err := b.storage.GetPreset(ctx, message.From.ID, name)
	if errors.Is(err, storage.ErrPresetNotFound) {
		b.reply(message, presetNotFoundText(name))
		return
	}
	if err != nil {
		logger.Error("Failed to get preset", zap.Error(err), zap.String("name", name))
		b.reply(message, operationFailedText)
		return
	}

	b.logQuery(ctx, logger, message.From.ID, "/preset_use "+name, models.SourceCommand)
	b.reply(message, fmt.Sprintf("📋 Пресет '%s':\n\n%s",
		html.EscapeString(name), html.EscapeString(content)))
}

func (b *Bot) handlePresetDel(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.reply(message, "Использование: /preset_del имя")
		return
	}

	if err := b.storage.DeletePreset(ctx, message.From.ID, name); err != nil {
		logger.Error("Failed to delete preset", zap.Error(err), zap.String("name", name))
		b.reply(message, operationFailedText)
		return
	}
	b.logQuery(ctx, logger, message.From.ID, "/preset_del "+name, models.SourceCommand)
	b.reply(message, fmt.Sprintf("🗑 Пресет '%s' удалён.", html.EscapeString(name)))
}

func (b *Bot) handleProfile(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	user, err := b.storage.GetUser(ctx, message.From.ID)
	if errors.Is(err, storage.ErrUserNotFound) {
		b.reply(message, "Профиль не найден. Нажми /start.")
		return
	}
	if err != nil {
		logger.Error("Failed to get user", zap.Error(err))
		b.reply(message, operationFailedText)
		return
	}

	b.reply(message, fmt.Sprintf("👤 Профиль:\nИмя: %s\nUsername: @%s\nРегистрация: %s",
		html.EscapeString(user.FullName),
		html.EscapeString(user.Username),
		html.EscapeString(user.RegDate)))
}

func (b *Bot) handleHistory(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	queries, err := b.storage.ListHistory(ctx, message.From.ID, historyLimit)
	if err != nil {
		logger.Error("Failed to list history", zap.Error(err))
		b.reply(message, operationFailedText)
		return
	}
	if len(queries) == 0 {
		b.replyWithKeyboard(message, "История пуста.")
		return
	}
	b.replyWithKeyboard(message, formatHistory(queries))
}

func (b *Bot) handleAsk(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	question := strings.TrimSpace(message.CommandArguments())
	if question == "" {
		b.reply(message, "Использование: /ask текст_вопроса")
		return
	}

	b.logQuery(ctx, logger, message.From.ID, question, models.SourceAsk)

	answer, err := b.assistant.Ask(ctx, question)
	if err != nil {
		logger.Error("Assistant request failed", zap.Error(err))
		b.reply(message, "⚠️ Ошибка при обращении к нейросети: "+html.EscapeString(err.Error()))
		return
	}

	// The answer may contain anything; escape before sending as HTML.
	b.sendHTML(message.Chat.ID, html.EscapeString(answer))
}

func (b *Bot) handleNews(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	topic := strings.TrimSpace(message.CommandArguments())
	if topic == "" {
		b.reply(message, "Использование: /news тема")
		return
	}

	b.logQuery(ctx, logger, message.From.ID, topic, models.SourceNews)

	articles, err := b.news.Search(ctx, topic, newsLimit)
	if err != nil {
		logger.Error("News request failed", zap.Error(err))
		b.reply(message, "⚠️ Ошибка при получении новостей: "+html.EscapeString(err.Error()))
		return
	}
	if len(articles) == 0 {
		b.replyWithKeyboard(message, "📰 Новостей не найдено или сервис недоступен.")
		return
	}

	// Titles and URLs were escaped by the adapter.
	b.sendHTML(message.Chat.ID, formatArticles(articles))
}

// handleText routes non-command messages: menu labels map to their command
// handlers, anything else is logged and answered with a fallback.
func (b *Bot) handleText(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.Text)

	// Registration and logging failures must not block the reply.
	_ = b.registerUser(ctx, logger, message.From)
	b.logQuery(ctx, logger, message.From.ID, text, models.SourceMessage)

	switch text {
	case menuReport:
		b.handleReport(ctx, logger, message)
	case menuPresets:
		b.sendPlain(message.Chat.ID,
			"Управление пресетами:\n/preset_add имя текст\n/preset_list\n/preset_use имя\n/preset_del имя")
	case menuHistory:
		b.handleHistory(ctx, logger, message)
	case menuProfile:
		b.handleProfile(ctx, logger, message)
	case menuHelp:
		b.handleHelp(message)
	default:
		b.sendPlain(message.Chat.ID, notRecognizedText)
	}
}
