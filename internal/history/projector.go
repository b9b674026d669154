// Package history выдаёт историю расчётов пользователя и рассылает её обновления.
package history

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/model"
)

// Reader описывает выборку истории из хранилища.
type Reader interface {
	GetRecordsByOwner(ctx context.Context, owner string) ([]model.HistoryRecord, error)
}

// Projector читает историю из хранилища без кэширования и упорядочивает её:
// сначала последние по CreatedAt, при равенстве по убыванию ID.
type Projector struct {
	reader Reader
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan []model.HistoryRecord
}

// NewProjector создаёт проектор истории поверх хранилища.
func NewProjector(reader Reader, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		reader: reader,
		logger: logger,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Snapshot читает и упорядочивает историю пользователя. Ошибка оборачивает model.ErrHistoryRead.
func (p *Projector) Snapshot(ctx context.Context, identity string) ([]model.HistoryRecord, error) {
	records, err := p.reader.GetRecordsByOwner(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrHistoryRead, err)
	}

	records = slices.Clone(records)
	slices.SortStableFunc(records, func(a, b model.HistoryRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return records, nil
}

// List возвращает ленивую последовательность записей истории. Каждый обход заново
// читает хранилище. Ошибка чтения логируется, последовательность при этом пуста.
func (p *Projector) List(ctx context.Context, identity string) iter.Seq[model.HistoryRecord] {
	return func(yield func(model.HistoryRecord) bool) {
		records, err := p.Snapshot(ctx, identity)
		if err != nil {
			p.logger.Warn("history read failed, showing empty history",
				zap.String("identity", identity), zap.Error(err))
			return
		}
		for _, rec := range records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Subscribe подписывает на обновления истории пользователя. Канал получает снимок
// истории после каждого Refresh; непрочитанный снимок заменяется более свежим.
// Возвращаемая функция отменяет подписку.
func (p *Projector) Subscribe(identity string) (<-chan []model.HistoryRecord, func()) {
	sub := &subscriber{ch: make(chan []model.HistoryRecord, 1)}

	p.mu.Lock()
	if p.subs[identity] == nil {
		p.subs[identity] = make(map[*subscriber]struct{})
	}
	p.subs[identity][sub] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs[identity], sub)
			if len(p.subs[identity]) == 0 {
				delete(p.subs, identity)
			}
		})
	}

	return sub.ch, cancel
}

// Refresh перечитывает историю пользователя и рассылает её подписчикам.
// При ошибке чтения подписчики сохраняют предыдущий снимок.
func (p *Projector) Refresh(ctx context.Context, identity string) {
	p.mu.Lock()
	n := len(p.subs[identity])
	p.mu.Unlock()
	if n == 0 {
		return
	}

	records, err := p.Snapshot(ctx, identity)
	if err != nil {
		p.logger.Warn("history refresh failed", zap.String("identity", identity), zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for sub := range p.subs[identity] {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- records
	}
}
