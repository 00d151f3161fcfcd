package store

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// Bolt is a persistent DB backed by a single bbolt.DB file. Each named Table
// is a bbolt bucket, created lazily. Every Table method opens its own
// transaction (read or read-write); bbolt serialises writers itself, so this
// matches the core's single-writer model directly rather than layering an
// extra lock on top of it.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if necessary) a bbolt database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Table returns the named bucket as a Table, creating the bucket if it does
// not already exist.
func (b *Bolt) Table(name string) (Table, error) {
	bucket := []byte(name)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &boltTable{db: b.db, bucket: bucket}, nil
}

// Close flushes and closes the underlying bbolt file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

type boltTable struct {
	db     *bbolt.DB
	bucket []byte
}

func (t *boltTable) PutIfAbsent(key, value []byte) (bool, error) {
	inserted := false
	err := t.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(t.bucket)
		if b.Get(key) != nil {
			return nil
		}
		inserted = true
		return b.Put(key, value)
	})
	return inserted, err
}

func (t *boltTable) Put(key, value []byte) error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(t.bucket).Put(key, value)
	})
}

func (t *boltTable) Delete(key []byte) error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(t.bucket).Delete(key)
	})
}

func (t *boltTable) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	found := false
	err := t.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(t.bucket).Get(key)
		if v != nil {
			found = true
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, found, err
}

func (t *boltTable) Scan(ascending bool, prefix []byte, limit int, f func(key, value []byte) (bool, error)) error {
	return t.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(t.bucket).Cursor()

		if len(prefix) > 0 && ascending {
			// Fast path: seek straight to the prefix and stop as soon as a
			// key no longer shares it (keys are lexicographically sorted).
			visited := 0
			for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
				if limit > 0 && visited >= limit {
					break
				}
				visited++
				keepGoing, err := f(k, v)
				if err != nil {
					return err
				}
				if !keepGoing {
					break
				}
			}
			return nil
		}

		var k, v []byte
		next := c.Next
		if ascending {
			k, v = c.First()
		} else {
			k, v = c.Last()
			next = c.Prev
		}

		visited := 0
		for ; k != nil; k, v = next() {
			if len(prefix) > 0 && !bytes.HasPrefix(k, prefix) {
				continue
			}
			if limit > 0 && visited >= limit {
				break
			}
			visited++
			keepGoing, err := f(k, v)
			if err != nil {
				return err
			}
			if !keepGoing {
				break
			}
		}
		return nil
	})
}

func (t *boltTable) Count() (int, error) {
	count := 0
	err := t.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(t.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

func (t *boltTable) Clear() error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(t.bucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(t.bucket)
		return err
	})
}
