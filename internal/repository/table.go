package repository

import (
	"context"

	"gorm.io/gorm"

	"taskhive/internal/realtime"
)

// Publisher receives every committed write.
type Publisher interface {
	Publish(realtime.Change)
}

type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Change) {}

// table implements the row-level contract shared by every entity: insert
// returning the row, update by id returning the row, idempotent delete by id.
type table[T any] struct {
	db   *gorm.DB
	name string
	feed Publisher
}

func newTable[T any](db *gorm.DB, name string, feed Publisher) table[T] {
	if feed == nil {
		feed = nopPublisher{}
	}
	return table[T]{db: db, name: name, feed: feed}
}

func (t table[T]) get(ctx context.Context, id string) (T, error) {
	var row T
	err := t.db.WithContext(ctx).First(&row, "id = ?", id).Error
	return row, wrap("get "+t.name, err)
}

func (t table[T]) list(ctx context.Context, order string, query any, args ...any) ([]T, error) {
	var rows []T
	db := t.db.WithContext(ctx)
	if query != nil {
		db = db.Where(query, args...)
	}
	if order != "" {
		db = db.Order(order)
	}
	if err := db.Find(&rows).Error; err != nil {
		return nil, wrap("list "+t.name, err)
	}
	return rows, nil
}

func (t table[T]) insert(ctx context.Context, row *T) (T, error) {
	if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
		var zero T
		return zero, wrap("insert "+t.name, err)
	}
	t.feed.Publish(realtime.Change{Table: t.name, Type: realtime.Insert, New: *row})
	return *row, nil
}

func (t table[T]) update(ctx context.Context, id string, cols map[string]any) (T, error) {
	old, err := t.get(ctx, id)
	if err != nil {
		return old, err
	}
	if len(cols) == 0 {
		return old, nil
	}
	target := old
	if err := t.db.WithContext(ctx).Model(&target).Updates(cols).Error; err != nil {
		return old, wrap("update "+t.name, err)
	}
	updated, err := t.get(ctx, id)
	if err != nil {
		return updated, err
	}
	t.feed.Publish(realtime.Change{Table: t.name, Type: realtime.Update, New: updated, Old: old})
	return updated, nil
}

// remove deletes the row with id. Deleting a row that is already gone is not
// an error and publishes nothing.
func (t table[T]) remove(ctx context.Context, id string) error {
	old, err := t.get(ctx, id)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return wrap("delete "+t.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	t.feed.Publish(realtime.Change{Table: t.name, Type: realtime.Delete, Old: old})
	return nil
}

// removeWhere deletes every matching row, publishing one event per row.
func (t table[T]) removeWhere(ctx context.Context, query any, args ...any) (int, error) {
	rows, err := t.list(ctx, "", query, args...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := t.db.WithContext(ctx).Where(query, args...).Delete(new(T)).Error; err != nil {
		return 0, wrap("delete "+t.name, err)
	}
	for _, row := range rows {
		t.feed.Publish(realtime.Change{Table: t.name, Type: realtime.Delete, Old: row})
	}
	return len(rows), nil
}
