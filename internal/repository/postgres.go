package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/fincalc/internal/model"
)

// PostgresRepository предоставляет доступ к истории расчётов в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := runMigrations(ctx, db, goose.DialectPostgres, "migrations/postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateRecord сохраняет запись истории. Идентификатор и время создания назначает БД.
func (r *PostgresRepository) CreateRecord(ctx context.Context, rec model.HistoryRecord) (int64, error) {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return 0, fmt.Errorf("encode input data: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO history (user_email, input_data, result) VALUES ($1, $2::jsonb, $3) RETURNING id`,
		rec.OwnerIdentity, string(input), rec.Result,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return 0, fmt.Errorf("%w: %s", ErrInvalidRecord, pgErr.ConstraintName)
		}
		return 0, fmt.Errorf("insert history record: %w", err)
	}

	return id, nil
}

// GetRecordsByOwner возвращает историю пользователя, начиная с последних записей.
func (r *PostgresRepository) GetRecordsByOwner(ctx context.Context, owner string) ([]model.HistoryRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_email, input_data, result, created_at
		 FROM history
		 WHERE user_email = $1
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
			rec   model.HistoryRecord
			input []byte
		)
		if err := rows.Scan(&rec.ID, &rec.OwnerIdentity, &input, &rec.Result, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if err := json.Unmarshal(input, &rec.Input); err != nil {
			return nil, fmt.Errorf("decode input data of record %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}
