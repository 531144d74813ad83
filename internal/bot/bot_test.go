package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xaenox/proposal-assistant/internal/models"
	"github.com/xaenox/proposal-assistant/internal/pipeline"
	"github.com/xaenox/proposal-assistant/internal/storage"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	fileURL string
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file")
	}
	return f.fileURL, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type stubAsker struct {
	res   *pipeline.Result
	err   error
	input string
}

func (s *stubAsker) Run(_ context.Context, input string) (*pipeline.Result, error) {
	s.input = input
	return s.res, s.err
}

type stubIngestor struct {
	batch *models.IndexingBatch
	err   error
	items []models.UploadItem
}

func (s *stubIngestor) Ingest(_ context.Context, items []models.UploadItem) (*models.IndexingBatch, error) {
	s.items = items
	return s.batch, s.err
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 42}, Text: text}
}

func commandMessage(text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	m := textMessage(text)
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return m
}

func TestAnswerQuestion(t *testing.T) {
	api := &fakeAPI{}
	asker := &stubAsker{res: &pipeline.Result{
		Label:     models.LabelPricingCost,
		Agent:     "Pricing & Cost",
		Answer:    "Rates are fixed.",
		Citations: []models.Citation{{FileRef: "file-1", SourceLabel: "rates.pdf", Quote: "fixed rates"}},
	}}
	b := NewWithAPI(api, asker, nil, storage.NewMemoryStorage(), Options{}, nil)

	b.handleMessage(context.Background(), textMessage("what are the labor rates?"))

	assert.Equal(t, "what are the labor rates?", asker.input)
	require.Len(t, api.sent, 1)
	assert.Equal(t, 7, api.sent[0].ReplyToMessageID)
	assert.Equal(t, "[Pricing & Cost] Rates are fixed.\n\nSources:\n1. rates.pdf: \"fixed rates\"", api.sent[0].Text)
}

func TestAskCommand(t *testing.T) {
	api := &fakeAPI{}
	asker := &stubAsker{res: &pipeline.Result{Agent: "Corporate & Admin", Answer: "Our UEI is on file."}}
	b := NewWithAPI(api, asker, nil, storage.NewMemoryStorage(), Options{}, nil)

	b.handleMessage(context.Background(), commandMessage("/ask what is our UEI?"))
	assert.Equal(t, "what is our UEI?", asker.input)

	b.handleMessage(context.Background(), commandMessage("/ask"))
	assert.Equal(t, "Usage: /ask <question>", api.texts()[1])
}

func TestAnswerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", models.NewUpstreamError("generation", "create response", context.DeadlineExceeded), "took too long"},
		{"upstream", models.NewUpstreamError("generation", "create response", errors.New("500")), "AI service failed"},
		{"config", &models.ConfigurationError{Key: "openai.api_key"}, "not fully configured"},
		{"other", errors.New("boom"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			b := NewWithAPI(api, &stubAsker{err: tt.err}, nil, storage.NewMemoryStorage(), Options{}, nil)
			b.handleMessage(context.Background(), textMessage("q"))

			texts := api.texts()
			require.Len(t, texts, 1)
			assert.True(t, strings.HasPrefix(texts[0], "⚠️ "))
			assert.Contains(t, texts[0], tt.want)
		})
	}
}

func TestEmptyMessage(t *testing.T) {
	api := &fakeAPI{}
	asker := &stubAsker{}
	b := NewWithAPI(api, asker, nil, storage.NewMemoryStorage(), Options{}, nil)

	b.handleMessage(context.Background(), textMessage("   "))
	assert.Empty(t, asker.input)
	assert.Equal(t, []string{"Send me a question or a document to index."}, api.texts())
}

func TestCommands(t *testing.T) {
	ledger := storage.NewMemoryStorage()
	require.NoError(t, ledger.SaveBatch(context.Background(), &models.IndexingBatch{
		BatchID:    "vsfb_1",
		Status:     models.StatusCompleted,
		FileNames:  []string{"rates.pdf"},
		FileCounts: models.FileCounts{Completed: 1, Total: 1},
	}))

	api := &fakeAPI{}
	b := NewWithAPI(api, &stubAsker{}, nil, ledger, Options{}, nil)

	b.handleMessage(context.Background(), commandMessage("/start"))
	b.handleMessage(context.Background(), commandMessage("/labels"))
	b.handleMessage(context.Background(), commandMessage("/batches"))
	b.handleMessage(context.Background(), commandMessage("/nope"))

	require.Len(t, api.sent, 4)
	assert.Contains(t, api.sent[0].Text, "Welcome")
	assert.Equal(t, tgbotapi.ModeMarkdownV2, api.sent[1].ParseMode)
	assert.Contains(t, api.sent[1].Text, `\#pricing\_cost`)
	assert.Contains(t, api.sent[2].Text, `vsfb\_1`)
	assert.Contains(t, api.sent[2].Text, `rates\.pdf`)
	assert.Contains(t, api.sent[3].Text, "Unknown command")
}

func TestBatchesEmpty(t *testing.T) {
	api := &fakeAPI{}
	b := NewWithAPI(api, &stubAsker{}, nil, storage.NewMemoryStorage(), Options{}, nil)

	b.handleMessage(context.Background(), commandMessage("/batches"))
	assert.Equal(t, []string{"No documents have been indexed yet."}, api.texts())
}

func documentMessage(size int) *tgbotapi.Message {
	m := textMessage("")
	m.Document = &tgbotapi.Document{FileID: "f1", FileName: "rates.txt", MimeType: "text/plain", FileSize: size}
	return m
}

func TestDocumentIngested(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("labor rates"))
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL + "/file/rates.txt"}
	ing := &stubIngestor{batch: &models.IndexingBatch{
		BatchID:    "vsfb_9",
		Status:     models.StatusCompleted,
		FileCounts: models.FileCounts{Completed: 1, Total: 1},
	}}
	b := NewWithAPI(api, &stubAsker{}, ing, storage.NewMemoryStorage(), Options{MaxFileBytes: 1024}, nil)

	b.handleMessage(context.Background(), documentMessage(11))

	require.Len(t, ing.items, 1)
	assert.Equal(t, "rates.txt", ing.items[0].Name)
	assert.Equal(t, "text/plain", ing.items[0].MIMEType)
	assert.Equal(t, []byte("labor rates"), ing.items[0].Content)
	assert.Equal(t, int64(11), ing.items[0].Size)

	texts := api.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Indexing rates.txt...", texts[0])
	assert.Equal(t, "rates.txt is indexed (batch vsfb_9, 1/1 files).", texts[1])
}

func TestDocumentRejected(t *testing.T) {
	t.Run("no vector store", func(t *testing.T) {
		api := &fakeAPI{}
		b := NewWithAPI(api, &stubAsker{}, nil, storage.NewMemoryStorage(), Options{}, nil)
		b.handleMessage(context.Background(), documentMessage(10))
		assert.Contains(t, api.texts()[0], "not configured")
	})

	t.Run("too large", func(t *testing.T) {
		api := &fakeAPI{}
		ing := &stubIngestor{}
		b := NewWithAPI(api, &stubAsker{}, ing, storage.NewMemoryStorage(), Options{MaxFileBytes: 5}, nil)
		b.handleMessage(context.Background(), documentMessage(10))
		assert.Nil(t, ing.items)
		assert.Contains(t, api.texts()[0], "too large")
	})

	t.Run("download fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		api := &fakeAPI{fileURL: srv.URL}
		ing := &stubIngestor{}
		b := NewWithAPI(api, &stubAsker{}, ing, storage.NewMemoryStorage(), Options{}, nil)
		b.handleMessage(context.Background(), documentMessage(10))
		assert.Nil(t, ing.items)
		assert.Contains(t, api.texts()[0], "couldn't download")
	})

	t.Run("ingestion fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("x"))
		}))
		defer srv.Close()

		api := &fakeAPI{fileURL: srv.URL}
		ing := &stubIngestor{err: &models.IngestionError{
			Batch:  models.IndexingBatch{BatchID: "vsfb_2", FileCounts: models.FileCounts{Failed: 1, Total: 1}},
			Reason: "failed",
		}}
		b := NewWithAPI(api, &stubAsker{}, ing, storage.NewMemoryStorage(), Options{}, nil)
		b.handleMessage(context.Background(), documentMessage(1))

		texts := api.texts()
		require.Len(t, texts, 2)
		assert.Equal(t, "⚠️ Indexing failed: 0 of 1 files indexed, 1 failed.", texts[1])
	})
}

func TestStartStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	api := &fakeAPI{updates: make(chan tgbotapi.Update, 1)}
	asker := &stubAsker{res: &pipeline.Result{Agent: "Corporate & Admin", Answer: "ok"}}
	b := NewWithAPI(api, asker, nil, storage.NewMemoryStorage(), Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	api.updates <- tgbotapi.Update{Message: textMessage("hello")}
	require.Eventually(t, func() bool { return len(api.texts()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	api.mu.Lock()
	assert.True(t, api.stopped)
	api.mu.Unlock()
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Nil(t, splitMessage("", 10))

	chunks := splitMessage("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, chunks)

	chunks = splitMessage(strings.Repeat("é", 25), 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[2])
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\.c\!`, escapeMarkdown("a_b.c!"))
	assert.Equal(t, `\\\*`, escapeMarkdown(`\*`))
}

func TestDescribeValidationError(t *testing.T) {
	err := errors.Join(
		&models.ValidationError{Subject: "a.exe", Constraint: models.ConstraintType, Detail: "type not allowed"},
		&models.ValidationError{Subject: "b.pdf", Constraint: models.ConstraintSize, Detail: "too big"},
	)
	assert.Equal(t, "a.exe: type not allowed\nb.pdf: too big", describeError(err))
}
