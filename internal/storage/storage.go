package storage

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sugawarayuuta/sonnet"

	"github.com/hailam/slidermagic/internal/board"
	"github.com/hailam/slidermagic/internal/consolidate"
	"github.com/hailam/slidermagic/internal/record"
)

// ErrNotFound is returned when the index has no entry for a key.
var ErrNotFound = errors.New("not found in index")

// Index keeps stream summaries and consolidation plans between runs.
// The candidate streams themselves stay in the magic folder.
type Index struct {
	db *badger.DB
}

// SavedPlan is a plan together with the time it was built.
type SavedPlan struct {
	Plan    *consolidate.Plan `json:"plan"`
	BuiltAt time.Time         `json:"built_at"`
}

// OpenIndex opens (creating if needed) the index in dir.
func OpenIndex(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", dir, err)
	}

	return &Index{db: db}, nil
}

// Close closes the database
func (x *Index) Close() error {
	if x.db != nil {
		return x.db.Close()
	}
	return nil
}

func summaryKey(fam board.Family, sq board.Square) []byte {
	return fmt.Appendf(nil, "summary/%s/%s", fam, sq)
}

func summaryPrefix(fam board.Family) []byte {
	return fmt.Appendf(nil, "summary/%s/", fam)
}

func planKey(fam board.Family) []byte {
	return fmt.Appendf(nil, "plan/%s", fam)
}

// SaveSummaries stores the summaries in one transaction.
func (x *Index) SaveSummaries(summaries []record.Summary) error {
	return x.db.Update(func(txn *badger.Txn) error {
		for _, s := range summaries {
			data, err := sonnet.Marshal(s)
			if err != nil {
				return err
			}
			if err := txn.Set(summaryKey(s.Family, s.Square), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSummaries returns the stored summaries of a family in square order.
func (x *Index) LoadSummaries(fam board.Family) ([]record.Summary, error) {
	var out []record.Summary

	err := x.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := summaryPrefix(fam)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s record.Summary
			if err := it.Item().Value(func(val []byte) error {
				return sonnet.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Keys sort by square name, not index.
	slices.SortFunc(out, func(a, b record.Summary) int {
		return int(a.Square) - int(b.Square)
	})
	return out, nil
}

// SavePlan stores the latest plan of its family.
func (x *Index) SavePlan(plan *consolidate.Plan) error {
	data, err := sonnet.Marshal(SavedPlan{Plan: plan, BuiltAt: time.Now()})
	if err != nil {
		return err
	}

	return x.db.Update(func(txn *badger.Txn) error {
		return txn.Set(planKey(plan.Family), data)
	})
}

// LoadPlan returns the latest stored plan of a family.
func (x *Index) LoadPlan(fam board.Family) (*SavedPlan, error) {
	var saved SavedPlan

	err := x.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(planKey(fam))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return sonnet.Unmarshal(val, &saved)
		})
	})
	if err != nil {
		return nil, err
	}

	return &saved, nil
}
