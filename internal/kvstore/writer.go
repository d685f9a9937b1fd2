package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/star/groundtrack/internal/metrics"
)

// Field is one named value to persist. Value is encoded as JSON on write.
type Field struct {
	Key   string
	Value any
}

// replacer is implemented by stores that can swap the whole key set in one
// step.
type replacer interface {
	ReplaceAll(ctx context.Context, entries []Entry) error
}

// Writer encodes fields and writes them to a Store.
type Writer struct {
	store  Store
	logger *slog.Logger
}

// NewWriter creates a Writer over store.
func NewWriter(store Store, logger *slog.Logger) *Writer {
	return &Writer{store: store, logger: logger}
}

// Store returns the underlying store for reads.
func (w *Writer) Store() Store {
	return w.store
}

// Replace clears the store and writes fields, leaving exactly the given key
// set. All values are encoded before anything is touched, so an encoding
// failure leaves the store unchanged.
func (w *Writer) Replace(ctx context.Context, fields []Field) error {
	entries, err := encode(fields)
	if err != nil {
		metrics.RecordStoreWrite("replace", 0, err)
		return err
	}

	if r, ok := w.store.(replacer); ok {
		err = r.ReplaceAll(ctx, entries)
	} else {
		err = w.store.Clear(ctx)
		if err == nil {
			err = w.store.SetAll(ctx, entries)
		}
	}
	metrics.RecordStoreWrite("replace", len(entries), err)
	if err != nil {
		return fmt.Errorf("replacing store contents: %w", err)
	}

	w.logger.Debug("store replaced", "fields", len(entries))
	return nil
}

// Merge overwrites only the keys in fields; every other key is kept.
func (w *Writer) Merge(ctx context.Context, fields []Field) error {
	entries, err := encode(fields)
	if err != nil {
		metrics.RecordStoreWrite("merge", 0, err)
		return err
	}

	err = w.store.SetAll(ctx, entries)
	metrics.RecordStoreWrite("merge", len(entries), err)
	if err != nil {
		return fmt.Errorf("merging into store: %w", err)
	}

	w.logger.Debug("store merged", "fields", len(entries))
	return nil
}

func encode(fields []Field) ([]Entry, error) {
	entries := make([]Entry, 0, len(fields))
	for _, f := range fields {
		b, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", f.Key, err)
		}
		entries = append(entries, Entry{Key: f.Key, Value: b})
	}
	return entries, nil
}
