package port

import (
	"context"

	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

// ChatClient is the chat collaborator used for approval notifications.
type ChatClient interface {
	// FindDirectDialog returns nil, nil when the user cannot be reached by the bot.
	FindDirectDialog(ctx context.Context, botUserID, userID string) (*entity.Dialog, error)
	// SendMessage creates a message, or edits one when msg.UpdateMarker is set.
	SendMessage(ctx context.Context, msg *entity.ChatMessage) (*entity.SentMessage, error)
}

// UserDirectory resolves display metadata for identities.
type UserDirectory interface {
	// LookupUser returns nil, nil for unknown identities.
	LookupUser(ctx context.Context, userID string) (*entity.User, error)
}

// BacklogSignal is the best-effort channel telling a client its pending count changed.
type BacklogSignal struct {
	UserID     string `json:"userid"`
	ProcInstID int64  `json:"proc_inst_id"`
	Total      int    `json:"total"`
}

// BacklogPublisher delivers backlog signals.
type BacklogPublisher interface {
	PublishBacklog(ctx context.Context, signal BacklogSignal) error
}
