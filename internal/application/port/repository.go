package port

import (
	"context"

	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

// ProcMsgRepository persists ProcMsgLink rows.
type ProcMsgRepository interface {
	// Create inserts a link; an existing (proc_inst_id, userid) row is left untouched.
	Create(ctx context.Context, link *entity.ProcMsgLink) error
	ListByProcess(ctx context.Context, procInstID int64) ([]*entity.ProcMsgLink, error)
	GetByProcessAndUser(ctx context.Context, procInstID int64, userID string) (*entity.ProcMsgLink, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
