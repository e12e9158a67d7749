package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zombor/receipt-bot/internal/extraction"
	"github.com/zombor/receipt-bot/internal/receipt"
)

const (
	// maxMessageLength is Telegram's limit for a text message
	maxMessageLength = 4096

	// maxDownloadSize matches the HTTP upload limit
	maxDownloadSize = int64(20 << 20)

	callbackPrefix = "cat:"
)

const (
	msgWelcome      = "👋 Hello! Send me any receipt image (PhonePe, GPay, Paytm, etc). I'll extract and format the details for you."
	msgChooseType   = "🧾 Please choose the type of receipt:"
	msgUnauthorized = "⛔ You are not authorized to use this bot."
	msgUploadFailed = "⚠️ Error processing image. Please try again."
	msgRetry        = "❌ Error occurred. Please retry."
	msgNotImage     = "Please send the receipt as a photo or an image file."
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Receipts is the receipt flow the bot drives
type Receipts interface {
	SubmitImage(userID, filename string, data []byte, contentType string) error
	ClassifyPending(ctx context.Context, userID string, category extraction.Category) (*receipt.Scan, error)
}

// Config holds Telegram bot configuration
type Config struct {
	Token string
	// AllowList restricts the bot to these user IDs. Empty allows everyone.
	AllowList []int64
	// ProcessTimeout bounds OCR and extraction for one receipt
	ProcessTimeout time.Duration
	HTTPClient     *http.Client
}

// Bot turns Telegram messages into receipt scans
type Bot struct {
	api            botAPI
	receipts       Receipts
	allowList      map[int64]bool
	processTimeout time.Duration
	httpClient     *http.Client
}

// NewBot connects to Telegram with cfg.Token
func NewBot(cfg Config, receipts Receipts) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	slog.Info("Authorized on Telegram", "account", api.Self.UserName)
	return newBot(api, receipts, cfg), nil
}

func newBot(api botAPI, receipts Receipts, cfg Config) *Bot {
	allowList := make(map[int64]bool, len(cfg.AllowList))
	for _, id := range cfg.AllowList {
		allowList[id] = true
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Bot{
		api:            api,
		receipts:       receipts,
		allowList:      allowList,
		processTimeout: cfg.ProcessTimeout,
		httpClient:     cfg.HTTPClient,
	}
}

// Run polls for updates and handles them one at a time until ctx is done
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
			if err := b.handleUpdate(ctx, update); err != nil {
				slog.Error("Failed to handle update", "update_id", update.UpdateID, "error", err)
			}
		}
	}
}

func (b *Bot) allowed(userID int64) bool {
	return len(b.allowList) == 0 || b.allowList[userID]
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return b.handleMessage(update.Message)
	default:
		return nil
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID
	if !b.allowed(msg.From.ID) {
		return b.send(chatID, msgUnauthorized)
	}

	switch {
	case len(msg.Photo) > 0:
		// The last size is the largest
		photo := msg.Photo[len(msg.Photo)-1]
		return b.handleImage(msg, photo.FileID, "photo.jpg", "image/jpeg")
	case msg.Document != nil:
		doc := msg.Document
		if !strings.HasPrefix(doc.MimeType, "image/") && doc.MimeType != "application/pdf" {
			return b.send(chatID, msgNotImage)
		}
		if int64(doc.FileSize) > maxDownloadSize {
			return b.send(chatID, "❌ File too large. Maximum size is 20MB.")
		}
		return b.handleImage(msg, doc.FileID, doc.FileName, doc.MimeType)
	default:
		// Commands and plain text both get the welcome
		return b.send(chatID, msgWelcome)
	}
}

// handleImage downloads the file, parks it as pending and asks for a category
func (b *Bot) handleImage(msg *tgbotapi.Message, fileID, filename, contentType string) error {
	chatID := msg.Chat.ID
	userID := strconv.FormatInt(msg.From.ID, 10)

	data, err := b.download(fileID)
	if err != nil {
		slog.Error("Failed to download image", "user", userID, "error", err)
		return b.send(chatID, msgUploadFailed)
	}

	if err := b.receipts.SubmitImage(userID, filename, data, contentType); err != nil {
		slog.Error("Failed to store image", "user", userID, "error", err)
		return b.send(chatID, msgUploadFailed)
	}

	reply := tgbotapi.NewMessage(chatID, msgChooseType)
	reply.ReplyMarkup = categoryKeyboard()
	if _, err := b.api.Send(reply); err != nil {
		return fmt.Errorf("sending category keyboard: %w", err)
	}
	return nil
}

// download fetches a Telegram file by ID
func (b *Bot) download(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("getting file URL: %w", err)
	}

	resp, err := b.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if int64(len(data)) > maxDownloadSize {
		return nil, errors.New("file too large")
	}
	return data, nil
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		slog.Warn("Failed to answer callback", "error", err)
	}
	if query.Message == nil || query.From == nil {
		return nil
	}
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	if !b.allowed(query.From.ID) {
		return b.edit(chatID, messageID, msgUnauthorized)
	}

	data := query.Data
	if !strings.HasPrefix(data, callbackPrefix) {
		return nil
	}
	category := extraction.ParseCategory(strings.TrimPrefix(data, callbackPrefix))
	userID := strconv.FormatInt(query.From.ID, 10)

	ctx, cancel := context.WithTimeout(ctx, b.processTimeout)
	defer cancel()

	scan, err := b.receipts.ClassifyPending(ctx, userID, category)
	if err != nil {
		slog.Error("Failed to process receipt", "user", userID, "category", category, "error", err)
		message := receipt.UserMessage(err)
		if message == "" {
			message = msgRetry
		}
		return b.edit(chatID, messageID, message)
	}

	return b.edit(chatID, messageID, scan.Report)
}

// categoryKeyboard lays the categories out two per row
func categoryKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range extraction.Categories {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.DisplayName(), callbackPrefix+string(c)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) send(chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, truncate(text))); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (b *Bot) edit(chatID int64, messageID int, text string) error {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, truncate(text))); err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

// truncate caps text at Telegram's message length, counted in characters
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLength {
		return text
	}
	return string(runes[:maxMessageLength-3]) + "..."
}
