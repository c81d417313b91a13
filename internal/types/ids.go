// internal/types/ids.go
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type RecordID string
type ArtifactID string
type SessionKey string

func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

// NewSessionKey builds the key identifying one displayed control message.
func NewSessionKey(chatID, messageID int64) SessionKey {
	return SessionKey(strings.Join([]string{
		strconv.FormatInt(chatID, 10),
		strconv.FormatInt(messageID, 10),
	}, ":"))
}

// Split returns the (chatID, messageID) pair the key was built from.
func (k SessionKey) Split() (int64, int64, error) {
	parts := strings.SplitN(string(k), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed session key: %s", k)
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse chat id: %w", err)
	}
	messageID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse message id: %w", err)
	}
	return chatID, messageID, nil
}

// OwnerKey identifies the (user, chat) pair that owns artifacts and records.
type OwnerKey struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}
