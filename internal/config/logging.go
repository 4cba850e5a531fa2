package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

const redacted = "[redacted]"

// secretAttrs are log attribute keys whose values are never written. They
// match the configuration keys holding credentials.
var secretAttrs = map[string]bool{
	"twilio_auth_token": true,
	"openai_key":        true,
	"anthropic_key":     true,
	"rabbitmq_url":      true,
	"auth_token":        true,
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if secretAttrs[a.Key] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// LogPath resolves log_file. A relative path lives beside the database so
// the log stays with the data it describes.
func (c *Config) LogPath() string {
	if c.LogFile == "" || filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(filepath.Dir(c.DatabasePath), c.LogFile)
}

func (c *Config) handlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: c.Level(), ReplaceAttr: redact}
}

// consoleHandler writes log_format "json" as JSON lines and anything else as text
func (c *Config) consoleHandler(w io.Writer) slog.Handler {
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.NewJSONHandler(w, c.handlerOptions())
	}
	return slog.NewTextHandler(w, c.handlerOptions())
}

// NewLogger builds the service logger: console output in log_format and,
// when log_file is set, JSON lines appended to it. The returned func
// closes the log file.
func (c *Config) NewLogger(console io.Writer) (*slog.Logger, func() error, error) {
	path := c.LogPath()
	if path == "" {
		return slog.New(c.consoleHandler(console)), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return c.NewLoggerWithWriters(console, file), file.Close, nil
}

// NewLoggerWithWriters fans out to console and file writers; the file always gets JSON
func (c *Config) NewLoggerWithWriters(console, file io.Writer) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, c.handlerOptions())
	return slog.New(slogmulti.Fanout(c.consoleHandler(console), fileHandler))
}
