package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/fincalc/internal/model"
)

// MemoryRepository хранит историю в памяти процесса. Используется, когда БД не настроена.
type MemoryRepository struct {
	mu      sync.RWMutex
	now     func() time.Time
	nextID  int64
	records []model.HistoryRecord
}

// NewMemoryRepository создаёт хранилище в памяти. now задаёт часы; nil означает time.Now.
func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{now: now}
}

// Close ничего не освобождает.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateRecord сохраняет копию записи, назначая ей идентификатор и время создания.
func (r *MemoryRepository) CreateRecord(_ context.Context, rec model.HistoryRecord) (int64, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = r.now().UTC()
	r.records = append(r.records, rec)

	return rec.ID, nil
}

// GetRecordsByOwner возвращает историю пользователя, начиная с последних записей.
func (r *MemoryRepository) GetRecordsByOwner(_ context.Context, owner string) ([]model.HistoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.HistoryRecord
	for _, rec := range r.records {
		if rec.OwnerIdentity == owner {
			res = append(res, rec)
		}
	}

	slices.SortStableFunc(res, func(a, b model.HistoryRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return res, nil
}
