package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/pipeline"
	"github.com/xaenox/proposal-assistant/internal/storage"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Asker interface {
	Run(ctx context.Context, input string) (*pipeline.Result, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, items []models.UploadItem) (*models.IndexingBatch, error)
}

type Options struct {
	MaxFileBytes   int64
	RequestTimeout time.Duration
}

type Bot struct {
	api        API
	asker      Asker
	ingestor   Ingestor
	ledger     storage.Storage
	httpClient *http.Client
	opts       Options
	logger     *zap.Logger
	wg         sync.WaitGroup
}

func New(token string, asker Asker, ingestor Ingestor, ledger storage.Storage, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return NewWithAPI(api, asker, ingestor, ledger, opts, logger), nil
}

// NewWithAPI builds a bot around an existing API client. ingestor may be nil
// when no vector store is configured.
func NewWithAPI(api API, asker Asker, ingestor Ingestor, ledger storage.Storage, opts Options, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	return &Bot{
		api:        api,
		asker:      asker,
		ingestor:   ingestor,
		ledger:     ledger,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		opts:       opts,
		logger:     logger.With(zap.String("component", "bot")),
	}
}

// Start handles updates until ctx is cancelled, then waits for in-flight
// messages to finish.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			b.wg.Add(1)
			go func(m *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(ctx, m)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
	defer cancel()

	requestID := uuid.NewString()
	logger := b.logger.With(zap.String("request_id", requestID), zap.Int64("chat_id", message.Chat.ID))

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if message.Document != nil {
		b.handleDocument(ctx, logger, message)
		return
	}

	content := message.Text
	if content == "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		b.sendMessage(message.Chat.ID, "Send me a question or a document to index.")
		return
	}

	b.answer(ctx, logger, message.Chat.ID, message.MessageID, content)
}

func (b *Bot) answer(ctx context.Context, logger *zap.Logger, chatID int64, replyTo int, question string) {
	res, err := b.asker.Run(ctx, question)
	if err != nil {
		logger.Error("Failed to answer question", zap.Error(err))
		b.sendErrorMessage(chatID, describeError(err))
		return
	}

	for _, chunk := range splitMessage(formatAnswer(res), maxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ReplyToMessageID = replyTo
		if _, err := b.api.Send(msg); err != nil {
			logger.Error("Failed to send answer", zap.Error(err))
			return
		}
	}
}

func (b *Bot) handleDocument(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	doc := message.Document
	if b.ingestor == nil {
		b.sendErrorMessage(message.Chat.ID, "Document indexing is not configured (no vector store).")
		return
	}
	if b.opts.MaxFileBytes > 0 && int64(doc.FileSize) > b.opts.MaxFileBytes {
		b.sendErrorMessage(message.Chat.ID, fmt.Sprintf("%s is too large to index.", doc.FileName))
		return
	}

	content, err := b.download(ctx, doc.FileID)
	if err != nil {
		logger.Error("Failed to download document", zap.Error(err), zap.String("file_name", doc.FileName))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't download that file.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("Indexing %s...", doc.FileName))

	batch, err := b.ingestor.Ingest(ctx, []models.UploadItem{{
		Name:     doc.FileName,
		MIMEType: doc.MimeType,
		Size:     int64(len(content)),
		Content:  content,
	}})
	if err != nil {
		logger.Error("Failed to ingest document", zap.Error(err), zap.String("file_name", doc.FileName))
		b.sendErrorMessage(message.Chat.ID, describeError(err))
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("%s is indexed (batch %s, %d/%d files).",
		doc.FileName, batch.BatchID, batch.FileCounts.Completed, batch.FileCounts.Total))
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if b.opts.MaxFileBytes > 0 {
		body = io.LimitReader(resp.Body, b.opts.MaxFileBytes+1)
	}
	return io.ReadAll(body)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
