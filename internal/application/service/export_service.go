package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/application/report"
	"github.com/garyjia/approval-bridge/internal/domain/audit"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
)

// ExportResult is returned to the caller once an archive is stored.
type ExportResult struct {
	Key       string    `json:"key"`
	FileName  string    `json:"file_name"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Download is an opened export archive.
type Download struct {
	FileName string
	Body     io.ReadCloser
}

// ExportService builds approval report archives and serves them back.
type ExportService interface {
	Export(ctx context.Context, caller entity.Identity, req report.ExportRequest) (*ExportResult, error)
	Open(ctx context.Context, caller entity.Identity, key string) (*Download, error)
}

// ExportConfig tunes export generation.
type ExportConfig struct {
	WorkDir  string
	TokenTTL time.Duration
	Workers  int
}

type exportServiceImpl struct {
	gateway   port.WorkflowGateway
	directory port.UserDirectory
	writer    port.SpreadsheetWriter
	packager  port.ArchivePackager
	store     port.ArchiveStore
	tokens    port.DownloadTokenIssuer
	cfg       ExportConfig
	now       func() time.Time
	logger    Logger
}

// ExportOption configures the export service
type ExportOption func(*exportServiceImpl)

// WithClock overrides the time source used for durations and expiry
func WithClock(now func() time.Time) ExportOption {
	return func(s *exportServiceImpl) {
		s.now = now
	}
}

// NewExportService creates a new ExportService
func NewExportService(
	gateway port.WorkflowGateway,
	directory port.UserDirectory,
	writer port.SpreadsheetWriter,
	packager port.ArchivePackager,
	store port.ArchiveStore,
	tokens port.DownloadTokenIssuer,
	cfg ExportConfig,
	logger Logger,
	opts ...ExportOption,
) ExportService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 10 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	s := &exportServiceImpl{
		gateway:   gateway,
		directory: directory,
		writer:    writer,
		packager:  packager,
		store:     store,
		tokens:    tokens,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *exportServiceImpl) Export(ctx context.Context, caller entity.Identity, req report.ExportRequest) (*ExportResult, error) {
	window, err := report.Validate(req)
	if err != nil {
		return nil, err
	}

	processes, err := s.gateway.FindProcessesInRange(ctx, port.RangeFilter{
		ProcName:   req.ProcName,
		StartTime:  window.Start.Format(entity.EngineTimeLayout),
		EndTime:    window.End.Add(24*time.Hour - time.Second).Format(entity.EngineTimeLayout),
		IsFinished: req.IsFinished,
		State:      req.State,
	})
	if err != nil {
		return nil, fmt.Errorf("find processes: %w", err)
	}
	if len(processes) == 0 {
		return nil, workflow.ErrExportEmpty
	}

	summaries, err := s.summarize(ctx, processes)
	if err != nil {
		return nil, err
	}

	rows := report.BuildRows(processes, summaries, s.resolveUsers(ctx, processes), s.now())
	if len(rows) == 0 {
		return nil, workflow.ErrExportEmpty
	}

	s.logger.Info("Building export",
		"userid", caller.UserID,
		"proc_name", req.ProcName,
		"rows", len(rows),
	)

	location, fileName, err := s.buildArchive(ctx, req, window, rows)
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(s.cfg.TokenTTL)
	key, err := s.tokens.Issue(port.DownloadClaims{
		UserID:    caller.UserID,
		SessionID: caller.SessionID,
		Location:  location,
		FileName:  fileName,
		ExpiresAt: expires,
	})
	if err != nil {
		return nil, fmt.Errorf("issue download key: %w", err)
	}

	return &ExportResult{Key: key, FileName: fileName, Rows: len(rows), ExpiresAt: expires}, nil
}

func (s *exportServiceImpl) Open(ctx context.Context, caller entity.Identity, key string) (*Download, error) {
	claims, err := s.tokens.Verify(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrDownloadKey, err)
	}
	if claims.UserID != caller.UserID || claims.SessionID != caller.SessionID {
		return nil, workflow.ErrDownloadKey
	}

	body, err := s.store.Open(ctx, claims.Location)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Download{FileName: claims.FileName, Body: body}, nil
}

// summarize fetches each participant log on a bounded pool; any upstream failure aborts.
func (s *exportServiceImpl) summarize(ctx context.Context, processes []*entity.ProcessInstance) (map[int64]entity.AuditSummary, error) {
	var (
		mu        sync.Mutex
		summaries = make(map[int64]entity.AuditSummary, len(processes))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, p := range processes {
		if p == nil {
			continue
		}
		p := p
		g.Go(func() error {
			scope := entity.ScopePending
			if p.IsFinished {
				scope = entity.ScopeAll
			}
			entries, err := s.gateway.FetchParticipants(gctx, p.ID, scope)
			if err != nil {
				return fmt.Errorf("fetch participants of %d: %w", p.ID, err)
			}
			summary := audit.Aggregate(entries, p)

			mu.Lock()
			summaries[p.ID] = summary
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// resolveUsers looks up submitters and candidates; failed lookups fall back to ids.
func (s *exportServiceImpl) resolveUsers(ctx context.Context, processes []*entity.ProcessInstance) map[string]*entity.User {
	users := make(map[string]*entity.User)
	for _, p := range processes {
		if p == nil {
			continue
		}
		for _, id := range append([]string{p.StartUserID}, p.CandidateIDs()...) {
			if _, ok := users[id]; ok || id == "" {
				continue
			}
			u, err := s.directory.LookupUser(ctx, id)
			if err != nil {
				s.logger.Error("Failed to look up user", "error", err, "userid", id)
			}
			users[id] = u
		}
	}
	return users
}

func (s *exportServiceImpl) buildArchive(ctx context.Context, req report.ExportRequest, window report.Window, rows []report.Row) (string, string, error) {
	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.cfg.WorkDir, "export-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Values())
	}

	base := fmt.Sprintf("%s_%s_%s", safeName(req.ProcName), window.Start.Format("20060102"), window.End.Format("20060102"))
	sheetPath, err := s.writer.WriteSpreadsheet(ctx, dir, port.Sheet{
		Title:        base,
		Headings:     report.Headings(),
		Rows:         values,
		ColumnWidths: map[int]float64{1: 28, 13: 60, 14: 24, 22: 40},
	})
	if err != nil {
		return "", "", fmt.Errorf("write spreadsheet: %w", err)
	}

	artifact := filepath.Join(dir, base+".zip")
	if err := s.packager.Package(ctx, artifact, sheetPath); err != nil {
		s.logger.Error("Failed to package export, storing spreadsheet as is", "error", err, "file", sheetPath)
		artifact = sheetPath
	}

	f, err := os.Open(artifact)
	if err != nil {
		return "", "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	fileName := filepath.Base(artifact)
	location, err := s.store.Put(ctx, uuid.NewString()+"/"+fileName, f)
	if err != nil {
		return "", "", fmt.Errorf("store artifact: %w", err)
	}
	return location, fileName, nil
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "export"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
