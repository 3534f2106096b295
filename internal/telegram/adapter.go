// Package telegram delivers inbox notifications to a Telegram chat and
// answers commands about pending threads.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/agentinbox/internal/delivery"
	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/internal/view"
)

const maxTelegramMessage = 4096

// TargetPrefix routes delivery targets to this adapter.
const TargetPrefix = "telegram:"

// PendingFunc lists the threads currently waiting for a response.
type PendingFunc func(ctx context.Context) ([]types.ThreadData, error)

// sender is the part of the bot API the adapter sends through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter bridges a Telegram chat to the inbox.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	send    sender
	chatID  int64
	pending PendingFunc
	baseURL string
	preview *view.Previewer
}

// New creates a Telegram adapter bound to chatID. Commands from other
// chats are ignored.
func New(token string, chatID int64, pending PendingFunc, baseURL string, preview *view.Previewer) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:     bot,
		send:    bot,
		chatID:  chatID,
		pending: pending,
		baseURL: baseURL,
		preview: preview,
	}, nil
}

// Target is the delivery target of the configured chat.
func (a *Adapter) Target() string {
	return TargetPrefix + strconv.FormatInt(a.chatID, 10)
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if chatID != a.chatID {
		slog.Warn("ignoring telegram message from unknown chat", "chat_id", chatID)
		return
	}
	if !msg.IsCommand() {
		a.sendResponse(chatID, "Send /pending to list threads waiting for a response.")
		return
	}
	a.handleCommand(ctx, msg)
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'll let you know when an agent needs your input. Send /pending to see what's waiting.")

	case "pending":
		list, err := a.pending(ctx)
		if err != nil {
			slog.Error("listing pending threads failed", "error", err)
			a.sendResponse(chatID, "Error fetching pending threads.")
			return
		}
		a.sendResponse(chatID, view.PendingText(list, a.baseURL, a.preview))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /pending")
	}
}

// Deliver sends message to a "telegram:<chat_id>" target. It satisfies
// delivery.Handler.
func (a *Adapter) Deliver(target, message string) error {
	chatID, err := parseTarget(target)
	if err != nil {
		return delivery.Permanent(err)
	}
	return a.sendParts(chatID, message)
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	if err := a.sendParts(chatID, text); err != nil {
		slog.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

// sendParts sends text in as many messages as it takes. Once a part has
// gone out, a later failure is permanent so a retry cannot repeat it.
func (a *Adapter) sendParts(chatID int64, text string) error {
	parts := splitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.send.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.send.Send(msg); err != nil {
				err = fmt.Errorf("send message part %d/%d: %w", i+1, len(parts), err)
				if i > 0 {
					return delivery.Permanent(err)
				}
				return err
			}
		}
	}
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		} else if i := strings.LastIndexByte(text[:end], '\n'); i > 0 {
			end = i + 1
		} else {
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func parseTarget(target string) (int64, error) {
	raw, ok := strings.CutPrefix(target, TargetPrefix)
	if !ok {
		return 0, fmt.Errorf("not a telegram target: %s", target)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", raw, err)
	}
	return chatID, nil
}
