/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/recordfile/pkg/index"
	"github.com/ssargent/recordfile/pkg/recordio"
)

// Config represents the recordfile configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Writer  Writer  `yaml:"writer"`
	Reader  Reader  `yaml:"reader"`
	Index   Index   `yaml:"index"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Writer contains record writer settings
type Writer struct {
	Compression        string `yaml:"compression"`
	CompressionLevel   int    `yaml:"compression_level"`
	BufferSize         int    `yaml:"buffer_size"`
	SyncOnClose        bool   `yaml:"sync_on_close"`
	MaxRecordsPerShard int64  `yaml:"max_records_per_shard"`
}

// Reader contains record reader settings
type Reader struct {
	BufferSize    int    `yaml:"buffer_size"`
	MaxRecordSize uint64 `yaml:"max_record_size"`
}

// Index contains sidecar index settings
type Index struct {
	KeyFeature string `yaml:"key_feature"`
	BatchSize  int    `yaml:"batch_size"`
}

// Server contains HTTP API settings
type Server struct {
	Port            int           `yaml:"port"`
	Bind            string        `yaml:"bind"`
	APIKey          string        `yaml:"api_key"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxPageSize     int           `yaml:"max_page_size"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Writer: Writer{
			Compression: "none",
			BufferSize:  recordio.DefaultBufferSize,
		},
		Reader: Reader{
			BufferSize:    recordio.DefaultBufferSize,
			MaxRecordSize: recordio.DefaultMaxRecordSize,
		},
		Index: Index{
			BatchSize: index.DefaultBatchSize,
		},
		Server: Server{
			Port:            8080,
			Bind:            "127.0.0.1",
			APIKey:          "",
			AllowedOrigins:  []string{"*"},
			MaxPageSize:     1000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	if _, err := recordio.ParseCompression(c.Writer.Compression); err != nil {
		errs = append(errs, fmt.Errorf("writer.compression: %w", err))
	}
	if c.Writer.BufferSize < 0 || c.Reader.BufferSize < 0 {
		errs = append(errs, errors.New("buffer_size cannot be negative"))
	}
	if c.Reader.MaxRecordSize > recordio.MaxRecordSizeLimit {
		errs = append(errs, fmt.Errorf("reader.max_record_size %d exceeds limit of %d", c.Reader.MaxRecordSize, uint64(recordio.MaxRecordSizeLimit)))
	}
	if c.Writer.MaxRecordsPerShard < 0 {
		errs = append(errs, errors.New("writer.max_records_per_shard cannot be negative"))
	}
	if c.Index.BatchSize < 0 {
		errs = append(errs, errors.New("index.batch_size cannot be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxPageSize < 0 {
		errs = append(errs, errors.New("server.max_page_size cannot be negative"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Compression returns the parsed writer compression
func (c *Config) Compression() recordio.Compression {
	compression, _ := recordio.ParseCompression(c.Writer.Compression)
	return compression
}

// WriterOptions converts the writer section to record writer options.
// Compression is only forced when configured, so file suffixes still apply.
// Writers share the reader's record size limit.
func (c *Config) WriterOptions() []recordio.Option {
	opts := []recordio.Option{
		recordio.WithBufferSize(c.Writer.BufferSize),
		recordio.WithSyncOnClose(c.Writer.SyncOnClose),
		recordio.WithCompressionLevel(c.Writer.CompressionLevel),
		recordio.WithMaxRecordSize(c.Reader.MaxRecordSize),
	}
	if compression := c.Compression(); compression != recordio.CompressionNone {
		opts = append(opts, recordio.WithCompression(compression))
	}
	return opts
}

// ReaderOptions converts the reader section to record reader options
func (c *Config) ReaderOptions() []recordio.Option {
	return []recordio.Option{
		recordio.WithBufferSize(c.Reader.BufferSize),
		recordio.WithMaxRecordSize(c.Reader.MaxRecordSize),
	}
}

// IndexOptions converts the index section to index options
func (c *Config) IndexOptions() index.Options {
	return index.Options{
		KeyFeature:    c.Index.KeyFeature,
		BatchSize:     c.Index.BatchSize,
		MaxRecordSize: c.Reader.MaxRecordSize,
	}
}

// Addr returns the server listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// LoadConfig loads configuration from the specified path. Fields missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600); the file may hold the API key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a default configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./recordfile.yaml"
	}

	// For Linux/macOS, use ~/.config/recordfile/config.yaml
	configDir := filepath.Join(homeDir, ".config", "recordfile")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
