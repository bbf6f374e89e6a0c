package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/infrastructure/persistence/sqlite"
)

// ProcMsgRepository implements port.ProcMsgRepository
type ProcMsgRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProcMsgRepository creates a new message link repository
func NewProcMsgRepository(db *sql.DB, logger *zap.Logger) port.ProcMsgRepository {
	return &ProcMsgRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a link unless one already exists for (proc_inst_id, userid).
// On conflict link.ID stays zero.
func (r *ProcMsgRepository) Create(ctx context.Context, link *entity.ProcMsgLink) error {
	query := `
		INSERT OR IGNORE INTO workflow_proc_msgs (proc_inst_id, userid, msg_id, created_at)
		VALUES (?, ?, ?, ?)
	`

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		link.ProcInstID,
		link.UserID,
		link.MsgID,
		link.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create message link",
			zap.Int64("proc_inst_id", link.ProcInstID),
			zap.String("userid", link.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create message link: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Debug("Message link already exists",
			zap.Int64("proc_inst_id", link.ProcInstID),
			zap.String("userid", link.UserID))
		return nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	link.ID = id
	return nil
}

// ListByProcess returns every link of a process instance in insertion order.
func (r *ProcMsgRepository) ListByProcess(ctx context.Context, procInstID int64) ([]*entity.ProcMsgLink, error) {
	query := `
		SELECT id, proc_inst_id, userid, msg_id, created_at
		FROM workflow_proc_msgs
		WHERE proc_inst_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, procInstID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message links: %w", err)
	}
	defer rows.Close()

	var links []*entity.ProcMsgLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message links: %w", err)
	}
	return links, nil
}

// GetByProcessAndUser returns nil, nil when no link exists.
func (r *ProcMsgRepository) GetByProcessAndUser(ctx context.Context, procInstID int64, userID string) (*entity.ProcMsgLink, error) {
	query := `
		SELECT id, proc_inst_id, userid, msg_id, created_at
		FROM workflow_proc_msgs
		WHERE proc_inst_id = ? AND userid = ?
	`

	link, err := scanLink(r.getExecutor(ctx).QueryRowContext(ctx, query, procInstID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message link: %w", err)
	}
	return link, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row rowScanner) (*entity.ProcMsgLink, error) {
	var link entity.ProcMsgLink
	if err := row.Scan(&link.ID, &link.ProcInstID, &link.UserID, &link.MsgID, &link.CreatedAt); err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *ProcMsgRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

var _ port.ProcMsgRepository = (*ProcMsgRepository)(nil)
