package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/cassava-api/internal/catalog"
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/Brownie44l1/cassava-api/internal/pipeline"
	"github.com/Brownie44l1/cassava-api/internal/stats"
	"github.com/Brownie44l1/cassava-api/internal/store"
)

func TestFormatVerdictClassified(t *testing.T) {
	v := decision.Verdict{Kind: decision.Classified, Label: "Cassava Green Mottle", LabelIndex: 2, Confidence: 0.934}

	text := formatVerdict(v, catalog.Tip(0))
	require.Contains(t, text, "Cassava Green Mottle - 93% sure")
	require.Contains(t, text, catalog.Remedy("Cassava Green Mottle"))
	require.Contains(t, text, catalog.Tips[0])
}

func TestFormatVerdictUncertain(t *testing.T) {
	v := decision.Verdict{Kind: decision.Uncertain, Message: decision.UncertainMessage}

	text := formatVerdict(v, "")
	require.Contains(t, text, decision.UncertainMessage)
	require.NotContains(t, text, "Remedy")
}

func TestFormatHistory(t *testing.T) {
	require.Equal(t, msgNoHistory, formatHistory(nil))

	recs := []store.Record{
		{Label: "Cassava Mosaic Disease", Confidence: 0.91, CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)},
		{Label: "Healthy", Confidence: 0.85, CreatedAt: time.Date(2024, 4, 30, 9, 30, 0, 0, time.Local)},
	}
	text := formatHistory(recs)
	require.Contains(t, text, "2024-05-01 10:00  CMD  91%")
	require.Contains(t, text, "2024-04-30 09:30  Healthy  85%")
}

func TestFormatSummary(t *testing.T) {
	require.Equal(t, msgNoHistory, formatSummary(stats.Summary{MostCommon: "None"}))

	text := formatSummary(stats.Summary{
		Total:      3,
		MostCommon: "Cassava Mosaic Disease",
		Counts: []stats.LabelCount{
			{Label: "Cassava Mosaic Disease", Abbreviation: "CMD", Count: 2},
			{Label: "Healthy", Abbreviation: "Healthy", Count: 1},
		},
	})
	require.Contains(t, text, "Total scans: 3")
	require.Contains(t, text, "Most common: Cassava Mosaic Disease")
	require.Contains(t, text, "CMD: 2")
}

type sentMessage struct {
	ChatID string
	Text   string
}

// fakeTelegram answers the Bot API methods the bot uses and serves photo files.
type fakeTelegram struct {
	t     *testing.T
	photo []byte

	mu       sync.Mutex
	sent     []sentMessage
	getFiles []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/") {
		w.Write(f.photo)
		return
	}
	require.NoError(f.t, r.ParseForm())

	w.Header().Set("Content-Type", "application/json")
	switch path.Base(r.URL.Path) {
	case "getMe":
		io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Leaf","username":"leafbot"}}`)
	case "getFile":
		fileID := r.PostForm.Get("file_id")
		f.mu.Lock()
		f.getFiles = append(f.getFiles, fileID)
		f.mu.Unlock()
		fmt.Fprintf(w, `{"ok":true,"result":{"file_id":%q,"file_unique_id":"u","file_path":"photos/%s.png"}}`, fileID, fileID)
	case "sendMessage":
		f.mu.Lock()
		f.sent = append(f.sent, sentMessage{ChatID: r.PostForm.Get("chat_id"), Text: r.PostForm.Get("text")})
		f.mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func (f *fakeTelegram) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.sent)
	return f.sent[len(f.sent)-1]
}

type stubRunner struct {
	scores model.ScoreVector
}

func (s *stubRunner) Run(t model.Tensor) (model.ScoreVector, error) { return s.scores, nil }
func (s *stubRunner) Close() error                                 { return nil }

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: uint8(90 + x), B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func readyLoader(t *testing.T, scores model.ScoreVector) *pipeline.Loader {
	t.Helper()
	l := pipeline.Load(func() (model.Runner, model.LabelSet, error) {
		return &stubRunner{scores: scores}, model.Labels, nil
	}, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := l.Wait(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func newTestBot(t *testing.T, loader *pipeline.Loader, st store.Store) (*Bot, *fakeTelegram) {
	t.Helper()
	fake := &fakeTelegram{t: t, photo: leafPNG(t)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint("TOKEN", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	b := New(api, loader, st)
	b.fileEndpoint = srv.URL + "/file/bot%s/%s"
	return b, fake
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func photo(chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: chatID},
		Photo: []tgbotapi.PhotoSize{{FileID: "small", Width: 90}, {FileID: "large", Width: 1280}},
	}
}

func TestHandlePhotoClassifiesAndStoresForChat(t *testing.T) {
	st := store.NewMemoryStore()
	b, fake := newTestBot(t, readyLoader(t, model.ScoreVector{0, 0, 0, 9, 0}), st)

	b.handleMessage(context.Background(), photo(42))

	reply := fake.last()
	require.Equal(t, "42", reply.ChatID)
	require.Contains(t, reply.Text, "Cassava Mosaic Disease - 100% sure")
	require.Contains(t, reply.Text, catalog.Remedy("Cassava Mosaic Disease"))
	require.Equal(t, []string{"large"}, fake.getFiles)

	recs, err := st.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "telegram:42", recs[0].Owner)
}

func TestHandlePhotoUncertainIsNotStored(t *testing.T) {
	st := store.NewMemoryStore()
	b, fake := newTestBot(t, readyLoader(t, model.ScoreVector{1, 1, 1, 1, 1}), st)

	b.handleMessage(context.Background(), photo(42))

	require.Contains(t, fake.last().Text, decision.UncertainMessage)
	recs, err := st.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestHandlePhotoWhileLoading(t *testing.T) {
	release := make(chan struct{})
	l := pipeline.Load(func() (model.Runner, model.LabelSet, error) {
		<-release
		return &stubRunner{scores: model.ScoreVector{0, 0, 0, 0, 0}}, model.Labels, nil
	}, 0)
	t.Cleanup(func() {
		close(release)
		l.Close()
	})
	b, fake := newTestBot(t, l, store.NewMemoryStore())

	b.handleMessage(context.Background(), photo(42))

	require.Equal(t, msgNotReady, fake.last().Text)
	require.Empty(t, fake.getFiles)
}

func TestHistoryAndStatsAreScopedToChat(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, st.Save(ctx, &store.Record{ID: uuid.New(), Owner: "telegram:42", Label: "Cassava Green Mottle", Confidence: 0.9, CreatedAt: now}))
	require.NoError(t, st.Save(ctx, &store.Record{ID: uuid.New(), Owner: "telegram:99", Label: "Cassava Brown Streak Disease", Confidence: 0.9, CreatedAt: now}))

	b, fake := newTestBot(t, readyLoader(t, model.ScoreVector{0, 0, 0, 0, 0}), st)

	b.handleMessage(ctx, command(42, "/history"))
	text := fake.last().Text
	require.Contains(t, text, "CGM")
	require.NotContains(t, text, "CBSD")

	b.handleMessage(ctx, command(42, "/stats"))
	text = fake.last().Text
	require.Contains(t, text, "Total scans: 1")
	require.NotContains(t, text, "CBSD")

	b.handleMessage(ctx, command(7, "/history"))
	require.Equal(t, msgNoHistory, fake.last().Text)
}

func TestHandleOtherMessages(t *testing.T) {
	b, fake := newTestBot(t, readyLoader(t, model.ScoreVector{0, 0, 0, 0, 0}), store.NewMemoryStore())
	ctx := context.Background()

	b.handleMessage(ctx, command(42, "/start"))
	require.Equal(t, msgStart, fake.last().Text)

	b.handleMessage(ctx, command(42, "/help"))
	require.Equal(t, msgHelp, fake.last().Text)

	b.handleMessage(ctx, command(42, "/frobnicate"))
	require.Equal(t, msgUnknownCommand, fake.last().Text)

	b.handleMessage(ctx, &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "hello"})
	require.Equal(t, msgSendPhoto, fake.last().Text)
}
