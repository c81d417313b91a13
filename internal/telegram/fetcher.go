package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/voicebrief/internal/types"
)

// Fetcher implements types.AudioFetcher by re-downloading clips from
// Telegram's file API. Redo always goes back to the platform; audio
// bytes are never cached in session state.
type Fetcher struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
}

// NewFetcher creates a Fetcher over an existing bot handle.
func NewFetcher(bot *tgbotapi.BotAPI) *Fetcher {
	return &Fetcher{
		bot:        bot,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Fetch downloads the clip the artifact reference points at.
func (f *Fetcher) Fetch(ctx context.Context, ref types.AudioArtifactRef) ([]byte, string, error) {
	url, err := f.bot.GetFileDirectURL(ref.FileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download audio: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	return data, ref.MimeType, nil
}
