// Command test-notification renders one approval message template with
// sample data and, with --send, delivers it to a single Lark user.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/render"
	"github.com/garyjia/approval-bridge/internal/application/report"
	"github.com/garyjia/approval-bridge/internal/config"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
	"github.com/garyjia/approval-bridge/internal/infrastructure/external/lark"
)

type options struct {
	configPath string
	templates  string
	transition string
	role       string
	userID     string
	send       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "test-notification",
		Short:        "Render an approval message and optionally send it through Lark",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the YAML config file (only read with --send)")
	f.StringVar(&opts.templates, "templates", "", "message template file; defaults to the built-in set")
	f.StringVarP(&opts.transition, "transition", "t", "start", "start, pass, refuse or withdraw")
	f.StringVarP(&opts.role, "role", "r", "reviewer", "reviewer, submitter or notifier")
	f.StringVarP(&opts.userID, "user", "u", "", "recipient user id")
	f.BoolVar(&opts.send, "send", false, "deliver the message instead of only printing it")
	return cmd
}

func run(ctx context.Context, opts options) error {
	transition, err := workflow.ParseTransition(opts.transition)
	if err != nil {
		return err
	}
	role := workflow.Role(opts.role)

	catalog, err := render.LoadCatalog(opts.templates)
	if err != nil {
		return err
	}

	text, err := catalog.Render(role, transition, sampleData())
	if err != nil {
		return err
	}

	fmt.Printf("--- %s.%s ---\n%s\n", role, transition, text)
	if !opts.send {
		return nil
	}
	if opts.userID == "" {
		return fmt.Errorf("--user is required with --send")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sdk := lark.NewSDKClient(lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
	}, logger)
	bots := append([]string{cfg.Lark.BotUserID}, cfg.Lark.BotUserIDs...)
	chat := lark.NewChatClient(sdk, lark.NewDirectory(sdk, bots, logger), logger)

	dialog, err := chat.FindDirectDialog(ctx, cfg.Lark.BotUserID, opts.userID)
	if err != nil {
		return fmt.Errorf("find dialog: %w", err)
	}
	if dialog == nil {
		return fmt.Errorf("user %s cannot be reached by the bot", opts.userID)
	}

	sent, err := chat.SendMessage(ctx, &entity.ChatMessage{
		Dialog:     dialog,
		Kind:       entity.MessageKindText,
		Text:       text,
		FromUserID: cfg.Lark.BotUserID,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	fmt.Printf("sent message %s to %s\n", sent.ID, opts.userID)
	return nil
}

func sampleData() render.MessageData {
	return render.MessageData{
		Nickname:    "Alice",
		ProcDefName: "Leave",
		Department:  "Engineering",
		Type:        "annual",
		StartTime:   "2024-01-08 09:00:00",
		EndTime:     "2024-01-10 18:00:00",
		Description: "family trip",
		StatusLabel: report.StatusLabel(entity.ProcessStatePending),
		Comment:     "looks fine",
	}
}
