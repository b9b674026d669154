package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/fincalc/internal/model"
)

// SQLiteRepository хранит историю расчётов в файле SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository открывает базу SQLite по пути или DSN и применяет миграции.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	dsn := path
	if !strings.Contains(dsn, "?") && !strings.Contains(dsn, ":memory:") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// одно соединение: :memory: живёт в рамках соединения, а запись в SQLite всё равно последовательна
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := runMigrations(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

// Close закрывает базу.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// CreateRecord сохраняет запись истории.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec model.HistoryRecord) (int64, error) {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return 0, fmt.Errorf("encode input data: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO history (user_email, input_data, result) VALUES (?, ?, ?)`,
		rec.OwnerIdentity, string(input), rec.Result,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck {
			return 0, fmt.Errorf("%w: %v", ErrInvalidRecord, sqliteErr)
		}
		return 0, fmt.Errorf("insert history record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	return id, nil
}

// GetRecordsByOwner возвращает историю пользователя, начиная с последних записей.
func (r *SQLiteRepository) GetRecordsByOwner(ctx context.Context, owner string) ([]model.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_email, input_data, result, created_at
		 FROM history
		 WHERE user_email = ?
		 ORDER BY created_at DESC, id DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var (
			rec       model.HistoryRecord
			input     string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.OwnerIdentity, &input, &rec.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			return nil, fmt.Errorf("decode input data of record %d: %w", rec.ID, err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of record %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}
