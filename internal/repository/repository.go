// Package repository содержит реализации хранилища истории расчётов.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/fincalc/internal/model"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// ErrInvalidRecord возвращается, если запись истории не прошла ограничения хранилища.
var ErrInvalidRecord = errors.New("invalid history record")

// ErrUnsupportedDSN возвращается для адреса хранилища неизвестного вида.
var ErrUnsupportedDSN = errors.New("unsupported database URI")

// Store описывает хранилище истории: добавление записи и выборку по владельцу.
type Store interface {
	Close() error
	CreateRecord(ctx context.Context, rec model.HistoryRecord) (int64, error)
	GetRecordsByOwner(ctx context.Context, owner string) ([]model.HistoryRecord, error)
}

// Open выбирает хранилище по адресу: postgres:// и postgresql:// открывают PostgreSQL,
// sqlite:// и file: открывают SQLite, пустой адрес даёт хранилище в памяти.
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "":
		return NewMemoryRepository(nil), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresRepository(dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteRepository(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		return NewSQLiteRepository(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
	}
}

// goose хранит диалект и файловую систему глобально.
var migrateMu sync.Mutex

func runMigrations(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func validateRecord(rec model.HistoryRecord) error {
	if rec.OwnerIdentity == "" {
		return fmt.Errorf("%w: empty owner", ErrInvalidRecord)
	}
	return nil
}
