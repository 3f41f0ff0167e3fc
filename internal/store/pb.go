package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/pocketbase/core"
)

// PB adapts a PocketBase app to the Store interface. Transactions map to
// PocketBase's RunInTransaction, which runs the callback against a dedicated
// tx app and rolls the whole unit back on error.
type PB struct {
	app core.App
}

func NewPB(app core.App) *PB {
	return &PB{app: app}
}

func (s *PB) Get(ctx context.Context, collection, id string) (Doc, error) {
	record, err := s.app.FindRecordById(collection, id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return recordToDoc(record), nil
}

func (s *PB) GetBy(ctx context.Context, collection, field, value string) (Doc, error) {
	record, err := s.app.FindFirstRecordByData(collection, field, value)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return recordToDoc(record), nil
}

func (s *PB) Set(ctx context.Context, collection, id string, fields Doc) error {
	record, err := s.app.FindRecordById(collection, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		col, err := s.app.FindCollectionByNameOrId(collection)
		if err != nil {
			return err
		}
		record = core.NewRecord(col)
		record.Set("id", id)
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		record.Set(k, v)
	}
	return s.app.Save(record)
}

func (s *PB) Delete(ctx context.Context, collection, id string) error {
	record, err := s.app.FindRecordById(collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	return s.app.Delete(record)
}

func (s *PB) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&PB{app: txApp})
	})
}

func recordToDoc(record *core.Record) Doc {
	doc := Doc(record.FieldsData())
	doc["id"] = record.Id
	return doc
}

func wrapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
