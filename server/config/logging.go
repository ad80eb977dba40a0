package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/rs/zerolog"
)

// LogManager owns the log file and rotates it by size
type LogManager struct {
	config     *LogConfig
	currentLog *os.File
}

// NewLogManager creates a new log manager
func NewLogManager(cfg *LogConfig) *LogManager {
	return &LogManager{
		config: cfg,
	}
}

// CleanupLogFile truncates an existing log file
func CleanupLogFile(filePath string) error {
	if filePath == "" {
		return nil
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return errors.New(ErrLogFileOpenFailed, "failed to open log file for cleanup", err).AddContext("path", filePath)
	}
	return file.Close()
}

// GetWriter opens the log file for appending, rotating it first when it has
// grown past MaxSize.
func (lm *LogManager) GetWriter() (io.Writer, error) {
	if lm.config.FilePath == "" {
		return nil, errors.New(ErrLogFilePathRequired, "no log file path specified", nil)
	}

	logDir := filepath.Dir(lm.config.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, errors.New(ErrLogDirectoryCreationFailed, "failed to create log directory", err).AddContext("dir", logDir)
	}

	if err := lm.checkRotation(); err != nil {
		return nil, errors.New(ErrLogRotationCheckFailed, "failed to check log rotation", err)
	}

	file, err := os.OpenFile(lm.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.New(ErrLogFileOpenFailed, "failed to open log file", err).AddContext("path", lm.config.FilePath)
	}

	lm.currentLog = file
	return file, nil
}

func (lm *LogManager) checkRotation() error {
	if lm.config.MaxSize <= 0 {
		return nil
	}

	info, err := os.Stat(lm.config.FilePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.New(ErrLogFileStatFailed, "failed to stat log file", err)
	}

	if info.Size() < int64(lm.config.MaxSize)*1024*1024 {
		return nil
	}
	return lm.rotateLog()
}

func (lm *LogManager) rotateLog() error {
	if lm.currentLog != nil {
		lm.currentLog.Close()
		lm.currentLog = nil
	}

	backupPath := fmt.Sprintf("%s.%s", lm.config.FilePath, time.Now().Format("2006-01-02-15-04-05"))
	if err := os.Rename(lm.config.FilePath, backupPath); err != nil {
		return errors.New(ErrLogRotationFailed, "failed to rotate log file", err)
	}

	// Rotation already happened; a failed prune only leaves extra backups behind.
	if err := lm.cleanupOldBackups(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to cleanup old log backups: %v\n", err)
	}
	return nil
}

// cleanupOldBackups removes backups beyond MaxBackups or older than MaxAge days
func (lm *LogManager) cleanupOldBackups() error {
	if lm.config.MaxBackups <= 0 && lm.config.MaxAge <= 0 {
		return nil
	}

	logDir := filepath.Dir(lm.config.FilePath)
	logBase := filepath.Base(lm.config.FilePath)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return errors.New(ErrLogBackupReadFailed, "failed to read log directory", err)
	}

	var backups []backupInfo
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name(), logBase) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backupInfo{
			path:    filepath.Join(logDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	// oldest first
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.Before(backups[j].modTime)
	})

	cutoff := time.Now().AddDate(0, 0, -lm.config.MaxAge)
	keepFrom := 0
	if lm.config.MaxBackups > 0 && len(backups) > lm.config.MaxBackups {
		keepFrom = len(backups) - lm.config.MaxBackups
	}

	for i, backup := range backups {
		expired := lm.config.MaxAge > 0 && backup.modTime.Before(cutoff)
		if i >= keepFrom && !expired {
			continue
		}
		if err := os.Remove(backup.path); err != nil {
			return errors.New(ErrLogBackupRemoveFailed, "failed to remove old backup", err).AddContext("backup_path", backup.path)
		}
	}
	return nil
}

// Close closes the log manager and any open files
func (lm *LogManager) Close() error {
	if lm.currentLog != nil {
		return lm.currentLog.Close()
	}
	return nil
}

type backupInfo struct {
	path    string
	modTime time.Time
}

// isBackupFile reports whether name is "<baseName>.<suffix>"
func isBackupFile(name, baseName string) bool {
	return strings.HasPrefix(name, baseName+".") && len(name) > len(baseName)+1
}

// SetupLogger creates the process logger from the configuration. Console
// output is human-readable unless Format is "json"; the file sink is always JSON.
func SetupLogger(cfg *Config) (zerolog.Logger, error) {
	return setupLogger(cfg, os.Stdout)
}

// SetupLoggerTo is SetupLogger with console output sent to w. The CLI uses
// it to keep logs on stderr, away from command output.
func SetupLoggerTo(cfg *Config, w io.Writer) (zerolog.Logger, error) {
	return setupLogger(cfg, w)
}

func setupLogger(cfg *Config, stdout io.Writer) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if cfg.Log.Console {
		if cfg.Log.Format == "json" {
			writers = append(writers, stdout)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        stdout,
				TimeFormat: time.RFC3339,
			})
		}
	}

	if cfg.Log.FilePath != "" {
		if cfg.Log.Cleanup {
			if err := CleanupLogFile(cfg.Log.FilePath); err != nil {
				return zerolog.Logger{}, errors.New(ErrLogCleanupFailed, "failed to cleanup log file", err)
			}
		}

		fileWriter, err := NewLogManager(&cfg.Log).GetWriter()
		if err != nil {
			return zerolog.Logger{}, errors.New(ErrLogFileWriterSetupFailed, "failed to setup file writer", err)
		}
		writers = append(writers, fileWriter)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("component", "dataagent").
		Logger(), nil
}
