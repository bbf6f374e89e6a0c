package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

// messageAPI is the slice of the IM API the chat client needs.
type messageAPI interface {
	createMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
	updateMessage(ctx context.Context, messageID, msgType, content string) error
}

// ChatClient implements port.ChatClient with bot-to-user direct messages.
type ChatClient struct {
	api       messageAPI
	directory port.UserDirectory
	logger    *zap.Logger
}

// NewChatClient creates a chat client. A user is reachable when the directory knows them.
func NewChatClient(sdk *SDKClient, directory port.UserDirectory, logger *zap.Logger) *ChatClient {
	return &ChatClient{api: sdk, directory: directory, logger: logger}
}

// FindDirectDialog resolves the bot's direct conversation with a user.
// Lark addresses p2p messages by user id, so the dialog id is the user id.
func (c *ChatClient) FindDirectDialog(ctx context.Context, botUserID, userID string) (*entity.Dialog, error) {
	if userID == "" || userID == botUserID {
		return nil, nil
	}

	u, err := c.directory.LookupUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve dialog for %s: %w", userID, err)
	}
	if u == nil || u.Bot {
		return nil, nil
	}

	return &entity.Dialog{ID: userID, ReceiveIDType: "user_id", UserID: userID}, nil
}

// SendMessage creates a message, or edits the referenced one when the update marker is set.
// Lark has no silent delivery, so msg.Silent is ignored.
func (c *ChatClient) SendMessage(ctx context.Context, msg *entity.ChatMessage) (*entity.SentMessage, error) {
	if msg == nil || msg.Dialog == nil {
		return nil, fmt.Errorf("message has no dialog")
	}
	if msg.Text == "" {
		return nil, fmt.Errorf("message text cannot be empty")
	}

	content, err := textContent(msg.Text)
	if err != nil {
		return nil, err
	}

	if id, ok := entity.ParseUpdateMarker(msg.UpdateMarker); ok {
		if err := c.api.updateMessage(ctx, id, entity.MessageKindText, content); err != nil {
			return nil, err
		}
		c.logger.Debug("Message updated",
			zap.String("message_id", id),
			zap.String("userid", msg.Dialog.UserID))
		return &entity.SentMessage{ID: id, Updated: true}, nil
	}

	receiveIDType := msg.Dialog.ReceiveIDType
	if receiveIDType == "" {
		receiveIDType = "user_id"
	}
	id, err := c.api.createMessage(ctx, receiveIDType, msg.Dialog.ID, entity.MessageKindText, content)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Message sent successfully",
		zap.String("message_id", id),
		zap.String("userid", msg.Dialog.UserID))
	return &entity.SentMessage{ID: id}, nil
}

func textContent(text string) (string, error) {
	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal text content: %w", err)
	}
	return string(b), nil
}
