package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"prload/internal/report"
)

const (
	BucketRuns = "runs"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// HistoryItem is one stored run. Keys sort by start time so the newest run
// is last in the bucket.
type HistoryItem struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Summary   *report.Summary `json:"summary"`
}

// Store keeps run summaries in a bbolt file that outlives the process.
type Store struct {
	db       *bbolt.DB
	filePath string
}

// DefaultPath is $HOME/.prload/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".prload", "history.db"), nil
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		filePath: path,
	}, nil
}

func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores a finished run and returns the item written.
func (s *Store) Save(sum *report.Summary) (HistoryItem, error) {
	item := HistoryItem{
		ID:        sum.RunID,
		Timestamp: sum.Start,
		Summary:   sum,
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return b.Put(key(item), data)
	})
	return item, err
}

// List returns runs newest first. Entries that fail to decode are skipped.
func (s *Store) List() ([]HistoryItem, error) {
	var items []HistoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item HistoryItem
			if err := json.Unmarshal(v, &item); err == nil {
				items = append(items, item)
			}
		}
		return nil
	})
	return items, err
}

// Get looks a run up by id.
func (s *Store) Get(id string) (*HistoryItem, error) {
	var item *HistoryItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var it HistoryItem
			if err := json.Unmarshal(v, &it); err != nil || it.ID != id {
				continue
			}
			item = &it
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes a run by id.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var it HistoryItem
			if err := json.Unmarshal(v, &it); err == nil && it.ID == id {
				return b.Delete(k)
			}
		}
		return ErrNotFound
	})
}

func key(item HistoryItem) []byte {
	return []byte(fmt.Sprintf("%020d-%s", item.Timestamp.UnixNano(), item.ID))
}
