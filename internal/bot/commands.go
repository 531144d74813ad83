package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/agents"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "labels":
		b.handleLabels(message)
	case "batches":
		b.handleBatches(ctx, message)
	case "ask":
		question := strings.TrimSpace(message.CommandArguments())
		if question == "" {
			b.sendMessage(message.Chat.ID, "Usage: /ask <question>")
			return
		}
		b.answer(ctx, b.logger.With(zap.Int64("chat_id", message.Chat.ID)), message.Chat.ID, message.MessageID, question)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to the Proposal Assistant! 📝
Ask me anything about your proposal: pricing, corporate data, staffing, technical approach or past performance.

Send a PDF, DOCX or TXT document and I'll index it so answers can quote it.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/ask <question> - Ask a question
/labels - Show the specialist areas
/batches - Show recent indexing batches

You can also just type a question, or send a document to index it.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleLabels(message *tgbotapi.Message) {
	response := "*Specialist areas:*\n"
	for _, p := range agents.Profiles() {
		response += fmt.Sprintf("%s \\- %s\n", escapeMarkdown("#"+p.Label.String()), escapeMarkdown(p.Name))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send labels", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleBatches(ctx context.Context, message *tgbotapi.Message) {
	batches, err := b.ledger.ListBatches(ctx, 5)
	if err != nil {
		b.logger.Error("Failed to list batches",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve the indexing history.")
		return
	}

	if len(batches) == 0 {
		b.sendMessage(message.Chat.ID, "No documents have been indexed yet.")
		return
	}

	response := "*Recent indexing batches:*\n\n"
	for _, batch := range batches {
		response += fmt.Sprintf("*%s* %s\n", escapeMarkdown(batch.BatchID), escapeMarkdown(string(batch.Status)))
		if len(batch.FileNames) > 0 {
			response += fmt.Sprintf("_%s_\n", escapeMarkdown(strings.Join(batch.FileNames, ", ")))
		}
		response += escapeMarkdown(fmt.Sprintf("%d/%d indexed, %d failed", batch.FileCounts.Completed, batch.FileCounts.Total, batch.FileCounts.Failed)) + "\n\n"
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send batches message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}
