package api

import (
	"context"
	"time"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Addr            string
	APIKey          string // Required on /api/v1/files routes when set
	AllowedOrigins  []string
	MaxPageSize     int   // Upper bound for the limit query parameter
	MaxBodyBytes    int64 // Upper bound for append request bodies
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

const (
	defaultPageSize     = 100
	defaultMaxPageSize  = 1000
	defaultMaxBodyBytes = 16 << 20
)

// FileInfo describes one record file in the data directory
type FileInfo struct {
	Name        string               `json:"name"`
	Size        int64                `json:"size"`
	Compression recordio.Compression `json:"compression"`
	Indexed     bool                 `json:"indexed"`
	ModTime     time.Time            `json:"mod_time"`
}

// RecordView is one record as returned by the API. Payloads that are not
// feature maps are returned base64 encoded under raw.
type RecordView struct {
	Ordinal  uint64      `json:"ordinal"`
	Offset   int64       `json:"offset"`
	Features feature.Map `json:"features,omitempty"`
	Raw      []byte      `json:"raw,omitempty"`
}

// RecordsPage is a window of records from one file
type RecordsPage struct {
	File    string       `json:"file"`
	Offset  uint64       `json:"offset"`
	Limit   int          `json:"limit"`
	Records []RecordView `json:"records"`
	More    bool         `json:"more"`            // Records remain after this page
	Error   string       `json:"error,omitempty"` // Read failure that ended the page early
}

// AppendResult reports where an appended record landed
type AppendResult struct {
	File   string `json:"file"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// FileStore defines the record file operations the server exposes
type FileStore interface {
	List(ctx context.Context) ([]FileInfo, error)
	Records(ctx context.Context, name string, offset uint64, limit int) (*RecordsPage, error)
	Append(ctx context.Context, name string, m feature.Map) (*AppendResult, error)
	Verify(ctx context.Context, name string) (*recordio.VerifyResult, error)
}
