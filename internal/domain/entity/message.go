package entity

import "strings"

const updateMarkerPrefix = "update-"

// Message kinds understood by the chat client.
const (
	MessageKindText = "text"
)

// Dialog is a resolved direct conversation between the bot and a user.
type Dialog struct {
	ID            string
	ReceiveIDType string
	UserID        string
}

// ChatMessage is one outbound send-or-update request.
// An empty UpdateMarker creates a new message.
type ChatMessage struct {
	UpdateMarker string
	Dialog       *Dialog
	Kind         string
	Text         string
	FromUserID   string
	Silent       bool
}

// SentMessage is the chat collaborator's acknowledgement.
type SentMessage struct {
	ID      string
	Updated bool
}

// UpdateMarker targets a previously sent message.
func UpdateMarker(msgID string) string {
	return updateMarkerPrefix + msgID
}

// ParseUpdateMarker extracts the message id from a marker built by UpdateMarker.
func ParseUpdateMarker(marker string) (string, bool) {
	id, ok := strings.CutPrefix(marker, updateMarkerPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
