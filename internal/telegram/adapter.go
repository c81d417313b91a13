package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/voicebrief/internal/modes"
	"github.com/user/voicebrief/internal/session"
	"github.com/user/voicebrief/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the session state machine. It only
// translates: platform updates become control events, render
// instructions become sendMessage/editMessageText calls. Every invariant
// lives behind the machine.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	machine *session.Machine
	cursors *cursorCache
}

// NewBot connects to the Telegram API. The bot handle is shared between
// the adapter and the audio fetcher.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return bot, nil
}

// New creates a Telegram adapter over an existing bot handle.
func New(bot *tgbotapi.BotAPI, machine *session.Machine) *Adapter {
	return &Adapter{
		bot:     bot,
		machine: machine,
		cursors: newCursorCache(1024),
	}
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			switch {
			case update.CallbackQuery != nil:
				go a.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				a.handleMessage(ctx, update.Message)
			}
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}
	ref, ok := artifactFromMessage(msg)
	if !ok {
		return
	}
	// Each clip gets its own session and its own goroutine; the update
	// loop never waits on transcription.
	go a.processNewArtifact(ctx, msg, ref)
}

// artifactFromMessage extracts an artifact reference from a voice or
// audio message.
func artifactFromMessage(msg *tgbotapi.Message) (types.AudioArtifactRef, bool) {
	owner := types.OwnerKey{UserID: msg.From.ID, ChatID: msg.Chat.ID}
	switch {
	case msg.Voice != nil:
		return types.AudioArtifactRef{
			ID:         types.NewArtifactID(),
			Owner:      owner,
			FileID:     msg.Voice.FileID,
			MimeType:   "audio/ogg",
			Duration:   time.Duration(msg.Voice.Duration) * time.Second,
			Size:       int64(msg.Voice.FileSize),
			UploadedAt: msg.Time(),
		}, true
	case msg.Audio != nil:
		mime := msg.Audio.MimeType
		if mime == "" {
			mime = "audio/mpeg"
		}
		return types.AudioArtifactRef{
			ID:         types.NewArtifactID(),
			Owner:      owner,
			FileID:     msg.Audio.FileID,
			MimeType:   mime,
			Duration:   time.Duration(msg.Audio.Duration) * time.Second,
			Size:       int64(msg.Audio.FileSize),
			UploadedAt: msg.Time(),
		}, true
	}
	return types.AudioArtifactRef{}, false
}

// processNewArtifact posts a placeholder reply, keys the session by that
// message, and runs the first regeneration.
func (a *Adapter) processNewArtifact(ctx context.Context, msg *tgbotapi.Message, ref types.AudioArtifactRef) {
	placeholder := tgbotapi.NewMessage(msg.Chat.ID, "Processing your audio...")
	placeholder.ReplyToMessageID = msg.MessageID
	sent, err := a.bot.Send(placeholder)
	if err != nil {
		slog.Error("send placeholder failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	key := types.NewSessionKey(msg.Chat.ID, int64(sent.MessageID))
	render, err := a.machine.Handle(ctx, types.NewArtifact{Key: key, Artifact: ref})
	if err != nil {
		slog.Error("new artifact failed", "key", string(key), "error", err)
		a.editText(msg.Chat.ID, sent.MessageID, "Something went wrong. Please try again.", nil)
		return
	}
	a.applyRender(msg.Chat.ID, sent.MessageID, render)
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		a.send(msg.Chat.ID, "Hello! Send me a voice message or an audio file and I'll transcribe and summarize it.")
	case "history":
		owner := types.OwnerKey{UserID: msg.From.ID, ChatID: msg.Chat.ID}
		render, err := a.machine.Handle(ctx, types.HistoryRequest{Owner: owner, Direction: types.DirInitial})
		if err != nil {
			slog.Error("history command failed", "chat_id", msg.Chat.ID, "error", err)
			a.send(msg.Chat.ID, "Could not load your history.")
			return
		}
		page, ok := render.(types.RenderHistoryPage)
		if !ok || len(page.Records) == 0 {
			a.send(msg.Chat.ID, "No history yet.")
			return
		}
		out := tgbotapi.NewMessage(msg.Chat.ID, formatHistoryPage(page))
		out.ReplyMarkup = a.pagerKeyboard(page, false)
		if _, err := a.bot.Send(out); err != nil {
			slog.Error("send history failed", "chat_id", msg.Chat.ID, "error", err)
		}
	default:
		a.send(msg.Chat.ID, "Unknown command. Available: /start, /history")
	}
}

func (a *Adapter) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	key := types.NewSessionKey(chatID, int64(messageID))
	owner := types.OwnerKey{UserID: cb.From.ID, ChatID: chatID}

	ev, ok := a.eventFromCallback(cb.Data, key, owner)
	if !ok {
		a.answer(cb.ID, "Unknown action.", false)
		return
	}

	render, err := a.machine.Handle(ctx, ev)
	switch {
	case errors.Is(err, types.ErrBusy):
		a.answer(cb.ID, "Still working on this one. Give it a moment.", true)
		return
	case errors.Is(err, types.ErrExpired):
		a.answer(cb.ID, "These controls have expired. Send the audio again.", true)
		return
	case errors.Is(err, types.ErrInvalidCursor):
		a.answer(cb.ID, "This history view is stale. Use /history to restart.", true)
		return
	case err != nil:
		slog.Error("callback failed", "key", string(key), "data", cb.Data, "error", err)
		a.answer(cb.ID, "Something went wrong.", true)
		return
	}

	a.answer(cb.ID, "", false)
	a.applyRender(chatID, messageID, render)
}

// eventFromCallback parses the compact callback payloads the adapter
// attaches to its keyboards.
func (a *Adapter) eventFromCallback(data string, key types.SessionKey, owner types.OwnerKey) (types.ControlEvent, bool) {
	switch {
	case data == "menu":
		return types.OpenModeMenu{Key: key}, true
	case data == "cancel":
		return types.CancelModeMenu{Key: key}, true
	case data == "redo":
		return types.Redo{Key: key}, true
	case data == "confirm":
		return types.Confirm{Key: key}, true
	case data == "hist":
		return types.HistoryRequest{Owner: owner, Direction: types.DirInitial}, true
	case len(data) > 7 && data[:7] == "hist:n:":
		cursor, ok := a.cursors.get(data[7:])
		if !ok {
			return nil, false
		}
		return types.HistoryRequest{Owner: owner, Cursor: cursor, Direction: types.DirNext}, true
	case len(data) > 7 && data[:7] == "hist:p:":
		cursor, ok := a.cursors.get(data[7:])
		if !ok {
			return nil, false
		}
		return types.HistoryRequest{Owner: owner, Cursor: cursor, Direction: types.DirPrev}, true
	case len(data) > 5 && data[:5] == "mode:":
		return types.SelectMode{Key: key, Mode: types.Mode(data[5:])}, true
	}
	return nil, false
}

// applyRender maps a render instruction onto the control message.
func (a *Adapter) applyRender(chatID int64, messageID int, render types.Render) {
	switch r := render.(type) {
	case types.RenderSummary:
		kb := a.actionsKeyboard()
		a.editText(chatID, messageID, formatSummary(r), &kb)
	case types.RenderModeMenu:
		kb := a.modesKeyboard(r.Current)
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, kb)
		if _, err := a.bot.Request(edit); err != nil {
			slog.Error("edit keyboard failed", "chat_id", chatID, "error", err)
		}
	case types.RenderError:
		if r.Controls == types.ControlsActions {
			kb := a.actionsKeyboard()
			a.editText(chatID, messageID, r.Message, &kb)
		} else {
			a.editText(chatID, messageID, r.Message, nil)
		}
	case types.RenderConfirmed:
		text := r.Text
		if text == "" {
			text = "Done."
		}
		a.editText(chatID, messageID, text, nil)
	case types.RenderHistoryPage:
		if len(r.Records) == 0 {
			a.editText(chatID, messageID, "No history yet.", nil)
			return
		}
		kb := a.pagerKeyboard(r, true)
		a.editText(chatID, messageID, formatHistoryPage(r), &kb)
	default:
		slog.Error("unknown render instruction", "type", fmt.Sprintf("%T", render))
	}
}

func (a *Adapter) actionsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mode", "menu"),
			tgbotapi.NewInlineKeyboardButtonData("Redo", "redo"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("History", "hist"),
			tgbotapi.NewInlineKeyboardButtonData("Done", "confirm"),
		),
	)
}

func (a *Adapter) modesKeyboard(current types.Mode) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, info := range modes.All() {
		label := info.Label
		if info.Mode == current {
			label = "• " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "mode:"+string(info.Mode)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", "cancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// pagerKeyboard builds prev/next controls. Cursors are too long for
// Telegram's 64-byte callback data, so they go through the short-token
// cache. withBack adds a button restoring the summary view.
func (a *Adapter) pagerKeyboard(page types.RenderHistoryPage, withBack bool) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if page.PrevCursor != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Newer", "hist:p:"+a.cursors.put(page.PrevCursor)))
	}
	if page.NextCursor != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Older", "hist:n:"+a.cursors.put(page.NextCursor)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if withBack {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Back", "cancel"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatSummary(r types.RenderSummary) string {
	label := string(r.Mode)
	if info, ok := modes.Lookup(r.Mode); ok {
		label = info.Label
	}
	return fmt.Sprintf("[%s]\n\n%s", label, r.Text)
}

func formatHistoryPage(page types.RenderHistoryPage) string {
	rec := page.Records[0]
	label := string(rec.Mode)
	if info, ok := modes.Lookup(rec.Mode); ok {
		label = info.Label
	}
	return fmt.Sprintf("History (%d total)\n%s — %s\n\n%s",
		page.Total,
		rec.CreatedAt.Format("2006-01-02 15:04"),
		label,
		rec.Summary,
	)
}

func (a *Adapter) answer(callbackID, text string, alert bool) {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := a.bot.Request(cb); err != nil {
		slog.Error("answer callback failed", "error", err)
	}
}

func (a *Adapter) editText(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	text = clampMessage(text)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	edit.ReplyMarkup = kb
	if _, err := a.bot.Request(edit); err != nil {
		// Retry without markdown if it fails
		edit.ParseMode = ""
		if _, err := a.bot.Request(edit); err != nil {
			slog.Error("edit message failed", "chat_id", chatID, "error", err)
		}
	}
}

func (a *Adapter) send(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

// clampMessage truncates edited text to Telegram's message limit; edits
// cannot be split the way fresh sends can.
func clampMessage(text string) string {
	if len(text) <= maxTelegramMessage {
		return text
	}
	return text[:maxTelegramMessage-3] + "..."
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
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
