package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

const planPrefix = "plan/"

// Badger keeps plans in an embedded badger database and scores them with a
// full scan. Plan stores hold at most a few thousand entries.
type Badger struct {
	db     *badger.DB
	path   string
	logger *zap.Logger
}

// OpenBadger opens (or creates) the database at path. An empty path gives an
// in-memory database.
func OpenBadger(path string, logger *zap.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, schemas.NewStorageError("open badger", path, err)
	}
	return &Badger{db: db, path: path, logger: logger.Named("vectorindex.badger")}, nil
}

func planKey(id string) []byte { return []byte(planPrefix + id) }

func (b *Badger) Upsert(ctx context.Context, rec schemas.PlanRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("plan record has no ID")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode plan record: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(planKey(rec.ID), data)
	})
	return schemas.NewStorageError("upsert", b.path, err)
}

func (b *Badger) Query(ctx context.Context, vector []float32, k int) ([]schemas.ScoredPlan, error) {
	records, err := b.scan(ctx)
	if err != nil {
		return nil, err
	}
	return topK(records, vector, k), nil
}

func (b *Badger) List(ctx context.Context) ([]schemas.PlanRecord, error) {
	records, err := b.scan(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

func (b *Badger) scan(ctx context.Context) ([]schemas.PlanRecord, error) {
	var out []schemas.PlanRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(planPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec schemas.PlanRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					b.logger.Warn("Skipping undecodable plan record.", zap.ByteString("key", item.Key()), zap.Error(err))
					return nil
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, schemas.NewStorageError("scan", b.path, err)
	}
	return out, nil
}

func (b *Badger) DeleteByTitle(ctx context.Context, title string) (int, error) {
	records, err := b.scan(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	err = b.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if r.TaskTitle != title {
				continue
			}
			if err := txn.Delete(planKey(r.ID)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, schemas.NewStorageError("delete", b.path, err)
	}
	return n, nil
}

func (b *Badger) Clear(ctx context.Context) (int, error) {
	records, err := b.scan(ctx)
	if err != nil {
		return 0, err
	}
	if err := b.db.DropPrefix([]byte(planPrefix)); err != nil {
		return 0, schemas.NewStorageError("clear", b.path, err)
	}
	return len(records), nil
}

func (b *Badger) Close() error {
	return schemas.NewStorageError("close", b.path, b.db.Close())
}
