package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bucket-list/internal/model"
)

const defaultDSN = "bucket_list.db"

// Several processes may share one file: the bot, the CLI and pollers.
var filePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
}

// NewDB opens the SQLite key-value database and migrates the entry table.
// gorm warnings and slow queries are written to zlog.
func NewDB(dsn string, zlog zerolog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	gormLog := zlog.With().Str("component", "gorm").Logger()
	dbLogger := logger.New(
		log.New(gormLog, "", 0),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if !isMemoryDSN(dsn) {
		for _, pragma := range filePragmas {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("apply %q: %w", pragma, err)
			}
		}
	}

	if err := db.AutoMigrate(&model.Entry{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	zlog.Debug().Str("dsn", dsn).Msg("database ready")
	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ensureDirForSQLite creates the parent directory of a file DSN.
func ensureDirForSQLite(dsn string) error {
	if isMemoryDSN(dsn) {
		return nil
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
