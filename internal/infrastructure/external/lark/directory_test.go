package lark

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

type fakeContactAPI struct {
	users   map[string]*userRecord
	leaders map[string]string
	calls   int
}

func (f *fakeContactAPI) getUser(ctx context.Context, userID string) (*userRecord, error) {
	f.calls++
	if userID == "broken" {
		return nil, errors.New("API error: code=99991663")
	}
	return f.users[userID], nil
}

func (f *fakeContactAPI) departmentLeader(ctx context.Context, departmentID string) (string, error) {
	if departmentID == "od-broken" {
		return "", errors.New("no permission")
	}
	return f.leaders[departmentID], nil
}

func TestDirectoryLookupUser(t *testing.T) {
	api := &fakeContactAPI{
		users: map[string]*userRecord{
			"alice": {UserID: "alice", Name: "Alice Liu", AvatarURL: "https://a/72", DepartmentIDs: []string{"od-broken", "od-1"}},
			"bob":   {UserID: "bob", Name: "Bob Wang", Nickname: "Bobby", DepartmentIDs: []string{"od-1"}},
		},
		leaders: map[string]string{"od-1": "alice"},
	}
	dir := newDirectory(api, []string{"approval-alert"}, zap.NewNop())
	ctx := context.Background()

	alice, err := dir.LookupUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, &entity.User{UserID: "alice", Nickname: "Alice Liu", AvatarURL: "https://a/72", DepartmentOwner: true}, alice)

	bob, err := dir.LookupUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bobby", bob.Nickname)
	assert.False(t, bob.DepartmentOwner)

	ghost, err := dir.LookupUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, ghost)

	_, err = dir.LookupUser(ctx, "broken")
	assert.Error(t, err)
}

func TestDirectoryBotsSkipLookup(t *testing.T) {
	api := &fakeContactAPI{}
	dir := newDirectory(api, []string{"approval-alert"}, zap.NewNop())

	u, err := dir.LookupUser(context.Background(), "approval-alert")
	require.NoError(t, err)
	assert.True(t, u.Bot)
	assert.Zero(t, api.calls)
}
