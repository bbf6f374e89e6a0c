package port

import (
	"context"
	"io"
	"time"
)

// Sheet is the tabular content of one export.
type Sheet struct {
	Title    string
	Headings []string
	Rows     [][]interface{}
	// ColumnWidths maps a zero-based column index to a width hint.
	ColumnWidths map[int]float64
}

// SpreadsheetWriter renders a Sheet to a file and returns its path.
type SpreadsheetWriter interface {
	WriteSpreadsheet(ctx context.Context, dir string, sheet Sheet) (string, error)
}

// ArchivePackager compresses files into a single archive at dst.
type ArchivePackager interface {
	Package(ctx context.Context, dst string, files ...string) error
}

// ArchiveStore keeps generated export artifacts until they are downloaded.
type ArchiveStore interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Remove(ctx context.Context, location string) error
}

// DownloadClaims is what a download key resolves to.
type DownloadClaims struct {
	UserID    string
	SessionID string
	Location  string
	FileName  string
	ExpiresAt time.Time
}

// DownloadTokenIssuer signs and verifies session-scoped download keys.
type DownloadTokenIssuer interface {
	Issue(claims DownloadClaims) (string, error)
	Verify(token string) (*DownloadClaims, error)
}
