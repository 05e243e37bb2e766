// Package telegram serves the classifier to farmers over a Telegram bot.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Brownie44l1/cassava-api/internal/capture"
	"github.com/Brownie44l1/cassava-api/internal/catalog"
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/logging"
	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/Brownie44l1/cassava-api/internal/pipeline"
	"github.com/Brownie44l1/cassava-api/internal/stats"
	"github.com/Brownie44l1/cassava-api/internal/store"
)

const (
	msgStart = `🌿 Hi! I check cassava leaves for disease.

📸 Send me a clear photo of a single leaf and I will tell you what I see.

📋 Commands:
/history - your latest scans
/stats - summary of your scans
/help - how to take a good photo`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Photograph one leaf, filling most of the frame
2️⃣ Send the photo here
3️⃣ Get the diagnosis and suggested remedy

💡 Tips:
• Shoot in daylight, avoid strong shadows
• Keep the leaf in focus
• If I am unsure, try another angle`

	msgSendPhoto       = "📸 Please send a photo of a cassava leaf."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
	msgProcessing      = "⏳ Analysing the leaf..."
	msgNotReady        = "⏳ The model is still loading, please try again in a moment."
	msgProcessingError = "⚠️ Could not process the image. Please try another photo."
	msgNoHistory       = "No scans yet. Send a leaf photo to start."

	historyLimit    = 10
	downloadTimeout = 30 * time.Second
)

// Bot answers commands and classifies photos. Each chat only sees its own scans.
type Bot struct {
	api          *tgbotapi.BotAPI
	loader       *pipeline.Loader
	store        store.Store
	client       *http.Client
	fileEndpoint string
	tips         atomic.Uint64
}

// NewBot authorizes against the Bot API with token.
func NewBot(token string, loader *pipeline.Loader, st store.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return New(api, loader, st), nil
}

// New wraps an authorized API client.
func New(api *tgbotapi.BotAPI, loader *pipeline.Loader, st store.Store) *Bot {
	logging.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:          api,
		loader:       loader,
		store:        st,
		client:       &http.Client{Timeout: downloadTimeout},
		fileEndpoint: tgbotapi.FileEndpoint,
	}
}

// ownerOf is the store owner for a chat.
func ownerOf(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "history":
		records, err := b.store.List(ctx, store.Filter{Owner: ownerOf(msg.Chat.ID), Limit: historyLimit})
		if err != nil {
			logging.Errorf("Error listing history: %v", err)
			b.sendMessage(msg.Chat.ID, msgProcessingError)
			return
		}
		b.sendMessage(msg.Chat.ID, formatHistory(records))

	case "stats":
		labels, err := b.store.Labels(ctx, store.Filter{Owner: ownerOf(msg.Chat.ID)})
		if err != nil {
			logging.Errorf("Error listing history: %v", err)
			b.sendMessage(msg.Chat.ID, msgProcessingError)
			return
		}
		b.sendMessage(msg.Chat.ID, formatSummary(stats.Summarize(labels)))

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	queue, err := b.loader.Queue()
	if err != nil {
		if errors.Is(err, model.ErrNotReady) {
			b.sendMessage(msg.Chat.ID, msgNotReady)
		} else {
			b.sendMessage(msg.Chat.ID, msgProcessingError)
		}
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	// largest size is last
	photo := msg.Photo[len(msg.Photo)-1]

	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		logging.Errorf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	img, _, err := capture.Decode(bytes.NewReader(data))
	if err != nil {
		logging.Warnf("Error decoding photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	verdict, err := queue.Submit(ctx, img)
	if err != nil {
		logging.Errorf("Error classifying photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	if verdict.IsClassified() {
		rec, err := store.NewRecord(verdict, img)
		if err == nil {
			rec.Owner = ownerOf(msg.Chat.ID)
			err = b.store.Save(ctx, rec)
		}
		if err != nil {
			logging.Warnf("Error saving scan: %v", err)
		}
	}

	tip := catalog.Tip(int(b.tips.Add(1) - 1))
	b.sendMessage(msg.Chat.ID, formatVerdict(verdict, tip))
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	fileURL := fmt.Sprintf(b.fileEndpoint, b.api.Token, file.FilePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logging.Errorf("Error sending message: %v", err)
	}
}

func formatVerdict(v decision.Verdict, tip string) string {
	var sb strings.Builder
	if !v.IsClassified() {
		sb.WriteString("🤔 ")
		sb.WriteString(v.String())
	} else {
		fmt.Fprintf(&sb, "🔍 %s\n\n💊 Remedy:\n%s", v.String(), catalog.Remedy(v.Label))
	}
	if tip != "" {
		fmt.Fprintf(&sb, "\n\n💡 %s", tip)
	}
	return sb.String()
}

func formatHistory(records []store.Record) string {
	if len(records) == 0 {
		return msgNoHistory
	}
	var sb strings.Builder
	sb.WriteString("📋 Latest scans:\n")
	for _, rec := range records {
		fmt.Fprintf(&sb, "\n%s  %s  %.0f%%", rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			catalog.Abbreviation(rec.Label), rec.Confidence*100)
	}
	return sb.String()
}

func formatSummary(s stats.Summary) string {
	if s.Total == 0 {
		return msgNoHistory
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Total scans: %d\nMost common: %s\n", s.Total, s.MostCommon)
	for _, c := range s.Counts {
		fmt.Fprintf(&sb, "\n%s: %d", c.Abbreviation, c.Count)
	}
	return sb.String()
}
