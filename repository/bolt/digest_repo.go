package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/repository"
)

const sep = 0x00

type storedGroup struct {
	Cadence domain.Frequency        `json:"cadence"`
	Group   domain.AggregationGroup `json:"group"`
}

// DigestStore wraps BoltDB so pending digests survive restarts.
type DigestStore struct {
	db     *bbolt.DB
	bucket []byte
	now    func() time.Time
	logger *zap.Logger
}

var _ repository.DigestRepository = (*DigestStore)(nil)

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string, logger *zap.Logger) (*DigestStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bucket == "" {
		bucket = "digests"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &DigestStore{
		db:     db,
		bucket: []byte(bucket),
		now:    time.Now,
		logger: logger,
	}, nil
}

// Append stores the group under a key ordered by insertion time.
func (s *DigestStore) Append(_ context.Context, cadence domain.Frequency, group domain.AggregationGroup) error {
	if s == nil || s.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	if group.UserID == "" || group.ID == "" {
		return domain.ErrInvalidPayload
	}

	payload, err := json.Marshal(storedGroup{Cadence: cadence, Group: group})
	if err != nil {
		return err
	}
	key := append(prefix(cadence, group.UserID), []byte(fmt.Sprintf("%020d_%s", s.now().UnixNano(), group.ID))...)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put(key, payload)
	})
}

// Load returns a snapshot of the entry for (user, cadence).
func (s *DigestStore) Load(_ context.Context, userID string, cadence domain.Frequency) (*domain.DigestEntry, error) {
	if s == nil || s.db == nil {
		return nil, bbolt.ErrDatabaseNotOpen
	}
	entry := domain.NewDigestEntry(userID, cadence)
	p := prefix(cadence, userID)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var stored storedGroup
			if err := json.Unmarshal(v, &stored); err != nil {
				s.logger.Warn("skipping unreadable digest record",
					zap.String("user_id", userID),
					zap.String("cadence", string(cadence)),
					zap.ByteString("key", k),
					zap.Error(err))
				continue
			}
			entry.Add(stored.Group)
		}
		return nil
	})
	return entry, err
}

// Remove deletes the named groups in a single transaction. Unreadable
// records under the same (user, cadence) can never be delivered and are
// purged along with them.
func (s *DigestStore) Remove(_ context.Context, userID string, cadence domain.Frequency, groupIDs []string) error {
	if s == nil || s.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	if len(groupIDs) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		drop[id] = struct{}{}
	}
	p := prefix(cadence, userID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var doomed [][]byte
		c := b.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var stored storedGroup
			if err := json.Unmarshal(v, &stored); err != nil {
				s.logger.Error("purging unreadable digest record",
					zap.String("user_id", userID),
					zap.String("cadence", string(cadence)),
					zap.ByteString("key", k),
					zap.Error(err))
				doomed = append(doomed, append([]byte(nil), k...))
				continue
			}
			if _, ok := drop[stored.Group.ID]; ok {
				doomed = append(doomed, append([]byte(nil), k...))
			}
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Users lists users with at least one pending group for cadence.
func (s *DigestStore) Users(_ context.Context, cadence domain.Frequency) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, bbolt.ErrDatabaseNotOpen
	}
	var users []string
	p := append([]byte(string(cadence)), sep)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		last := ""
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			rest := k[len(p):]
			end := bytes.IndexByte(rest, sep)
			if end < 0 {
				continue
			}
			if user := string(rest[:end]); user != last {
				users = append(users, user)
				last = user
			}
		}
		return nil
	})
	return users, err
}

// PendingCount sums notification counts for userID across every cadence.
func (s *DigestStore) PendingCount(ctx context.Context, userID string) (int, error) {
	total := 0
	for _, cadence := range domain.Cadences {
		entry, err := s.Load(ctx, userID, cadence)
		if err != nil {
			return 0, err
		}
		total += entry.TotalCount()
	}
	return total, nil
}

// Size returns the number of stored groups.
func (s *DigestStore) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bbolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the Bolt database.
func (s *DigestStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *DigestStore) Stats() bbolt.Stats {
	if s == nil || s.db == nil {
		return bbolt.Stats{}
	}
	return s.db.Stats()
}

func prefix(cadence domain.Frequency, userID string) []byte {
	key := make([]byte, 0, len(cadence)+len(userID)+2)
	key = append(key, string(cadence)...)
	key = append(key, sep)
	key = append(key, userID...)
	key = append(key, sep)
	return key
}
