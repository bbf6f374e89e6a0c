package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-bridge/internal/application/dispatcher"
	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/event"
)

// NewBacklogHandler returns an event handler that recounts a user's pending
// tasks and publishes the total. It is meant for asynchronous dispatch.
func NewBacklogHandler(gateway port.WorkflowGateway, publisher port.BacklogPublisher) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt.UserID == "" {
			return nil
		}

		page, err := gateway.ListProcesses(ctx, port.ListTasks, false, port.ListQuery{
			UserID:    evt.UserID,
			PageIndex: 1,
			PageSize:  1,
		})
		if err != nil {
			return fmt.Errorf("count pending tasks: %w", err)
		}

		signal := port.BacklogSignal{
			UserID:     evt.UserID,
			ProcInstID: evt.ProcInstID,
			Total:      page.Count,
		}
		if err := publisher.PublishBacklog(ctx, signal); err != nil {
			return fmt.Errorf("publish backlog: %w", err)
		}
		return nil
	}
}
