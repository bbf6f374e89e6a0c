package lark

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

// userRecord is the subset of a contact profile this service reads.
type userRecord struct {
	UserID        string
	Name          string
	Nickname      string
	AvatarURL     string
	DepartmentIDs []string
}

// contactAPI is the slice of the contact API the directory needs.
type contactAPI interface {
	getUser(ctx context.Context, userID string) (*userRecord, error)
	departmentLeader(ctx context.Context, departmentID string) (string, error)
}

// Directory implements port.UserDirectory over the Lark contact API.
type Directory struct {
	api    contactAPI
	bots   map[string]struct{}
	logger *zap.Logger
}

// NewDirectory creates a directory. botUserIDs are reported as bots without a lookup.
func NewDirectory(sdk *SDKClient, botUserIDs []string, logger *zap.Logger) *Directory {
	return newDirectory(sdk, botUserIDs, logger)
}

func newDirectory(api contactAPI, botUserIDs []string, logger *zap.Logger) *Directory {
	bots := make(map[string]struct{}, len(botUserIDs))
	for _, id := range botUserIDs {
		bots[id] = struct{}{}
	}
	return &Directory{api: api, bots: bots, logger: logger}
}

func (d *Directory) LookupUser(ctx context.Context, userID string) (*entity.User, error) {
	if userID == "" {
		return nil, nil
	}
	if _, ok := d.bots[userID]; ok {
		return &entity.User{UserID: userID, Nickname: userID, Bot: true}, nil
	}

	rec, err := d.api.getUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if rec == nil {
		return nil, nil
	}

	nickname := rec.Nickname
	if nickname == "" {
		nickname = rec.Name
	}
	user := &entity.User{
		UserID:    userID,
		Nickname:  nickname,
		AvatarURL: rec.AvatarURL,
	}

	for _, dept := range rec.DepartmentIDs {
		leader, err := d.api.departmentLeader(ctx, dept)
		if err != nil {
			// Owner flag is display-only; a failed department read leaves it false.
			d.logger.Warn("Failed to read department",
				zap.String("department_id", dept),
				zap.String("userid", userID),
				zap.Error(err))
			continue
		}
		if leader == userID {
			user.DepartmentOwner = true
			break
		}
	}
	return user, nil
}
