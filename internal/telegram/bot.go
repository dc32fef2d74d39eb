// Package telegram is an optional chat frontend: plain messages are
// answered through the engine, knowledge base management is gated by the
// admin allowlist.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ragchat/ragchat/internal/chat"
	"github.com/ragchat/ragchat/internal/ingest"
	"github.com/ragchat/ragchat/internal/logger"
)

// PolicyService decides who may talk to the bot and who may manage the
// knowledge base.
type PolicyService interface {
	IsAdmin(userID int64) bool
	IsAllowed(userID int64) bool
}

// Bot answers Telegram messages with the chat engine.
type Bot struct {
	bot      *bot.Bot
	engine   *chat.Engine
	pipeline *ingest.Pipeline
	policy   PolicyService
}

// NewBot creates a bot instance for the given token.
func NewBot(token string, engine *chat.Engine, pipeline *ingest.Pipeline, policy PolicyService) (*Bot, error) {
	b := &Bot{
		engine:   engine,
		pipeline: pipeline,
		policy:   policy,
	}

	botAPI, err := bot.New(token, bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	b.bot = botAPI
	return b, nil
}

// Start runs the bot until ctx is canceled.
func (b *Bot) Start(ctx context.Context) {
	logger.TelegramInfo("Bot started")
	b.bot.Start(ctx)
}

// handleUpdate handles a Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	message := update.Message
	userID := message.From.ID

	if !b.policy.IsAllowed(userID) {
		logger.TelegramInfo("Chat[%d] User[%d]: Rejected by policy", message.Chat.ID, userID)
		return
	}

	if message.Text[0] == '/' {
		b.handleCommand(ctx, message)
		return
	}
	b.handleQuestion(ctx, message)
}

func (b *Bot) handleCommand(ctx context.Context, message *models.Message) {
	parts := strings.Fields(message.Text)
	command := strings.TrimPrefix(parts[0], "/")

	switch command {
	case "start", "help":
		b.reply(ctx, message.Chat.ID,
			"Ask me anything about the loaded documents.\n"+
				"/stats shows the knowledge base size.\n"+
				"/add_website <url> [max_pages] adds a website (admins only).")

	case "stats":
		stats, err := b.engine.Stats(ctx)
		if err != nil {
			logger.TelegramError("Failed to get stats: %v", err)
			b.reply(ctx, message.Chat.ID, "Failed to read knowledge base stats.")
			return
		}
		text := fmt.Sprintf("Knowledge base: %d chunks", stats.TotalChunks)
		for sourceType, count := range stats.PerType {
			text += fmt.Sprintf("\n  %s: %d", sourceType, count)
		}
		b.reply(ctx, message.Chat.ID, text)

	case "add_website":
		if !b.policy.IsAdmin(message.From.ID) {
			b.reply(ctx, message.Chat.ID, "Only admins can add websites.")
			return
		}
		if len(parts) < 2 {
			b.reply(ctx, message.Chat.ID, "Usage: /add_website <url> [max_pages]")
			return
		}
		maxPages := 0
		if len(parts) > 2 {
			maxPages, _ = strconv.Atoi(parts[2])
		}

		result, err := b.pipeline.IngestWebsite(ctx, parts[1], maxPages)
		if err != nil {
			logger.TelegramError("Website ingestion failed: %v", err)
			b.reply(ctx, message.Chat.ID, fmt.Sprintf("Failed to add website: %v", err))
			return
		}
		b.reply(ctx, message.Chat.ID,
			fmt.Sprintf("Added %d chunks from %d pages of %s", result.Chunks, result.PagesStored, result.URL))

	default:
		b.reply(ctx, message.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleQuestion(ctx context.Context, message *models.Message) {
	logger.TelegramInfo("Chat[%d] User[%d]: question received", message.Chat.ID, message.From.ID)

	b.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: message.Chat.ID,
		Action: "typing",
	})

	answer, err := b.engine.Answer(ctx, message.Text)
	if err != nil {
		b.reply(ctx, message.Chat.ID, chat.UserMessage(err))
		return
	}
	b.reply(ctx, message.Chat.ID, answer)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	_, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		logger.TelegramError("Failed to send message to chat %d: %v", chatID, err)
	}
}
