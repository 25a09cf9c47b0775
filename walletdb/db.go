// Package walletdb persists wallet snapshots in a bbolt database.  Every
// wallet is stored under the fingerprint of its viewing key so a single
// database can hold several wallets.
package walletdb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/crypto/sha3"
)

// LatestVersion is the database version written by this package.
const LatestVersion = 1

var (
	// ErrSnapshotNotFound is returned when no snapshot is stored for a
	// viewing key.
	ErrSnapshotNotFound = errors.New("wallet snapshot not found")

	// ErrInvalidVersion is returned when the database was written by a
	// newer version of this package.
	ErrInvalidVersion = errors.New("unsupported database version")
)

// Bucket names
var (
	metaBucketName     = []byte("meta")
	snapshotBucketName = []byte("snapshots")
	savedAtBucketName  = []byte("savedat")

	dbVersionName = []byte("dbver")
)

var byteOrder = binary.LittleEndian

// DB is an open snapshot database.
type DB struct {
	db *bbolt.DB
}

// Open opens the database at path, creating it when it does not exist.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open wallet database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucketName)
		if err != nil {
			return err
		}
		for _, name := range [][]byte{snapshotBucketName, savedAtBucketName} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		verBytes := meta.Get(dbVersionName)
		if verBytes == nil {
			log.Infof("Initializing wallet database version %d",
				LatestVersion)
			return meta.Put(dbVersionName, uint32ToBytes(LatestVersion))
		}
		if version := byteOrder.Uint32(verBytes); version > LatestVersion {
			return fmt.Errorf("%w: %d", ErrInvalidVersion, version)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Fingerprint returns the key a wallet with the given viewing key is stored
// under.
func Fingerprint(viewingKey string) []byte {
	sum := sha3.Sum256([]byte(viewingKey))
	return sum[:]
}

// PutSnapshot stores the snapshot of the wallet bound to viewingKey,
// replacing any previous one.
func (d *DB) PutSnapshot(viewingKey string, snapshot []byte, savedAt time.Time) error {
	key := Fingerprint(viewingKey)
	return d.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(snapshotBucketName).Put(key, snapshot); err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}
		ts := make([]byte, 8)
		byteOrder.PutUint64(ts, uint64(savedAt.Unix()))
		return tx.Bucket(savedAtBucketName).Put(key, ts)
	})
}

// FetchSnapshot returns the snapshot of the wallet bound to viewingKey and
// the time it was saved.
func (d *DB) FetchSnapshot(viewingKey string) ([]byte, time.Time, error) {
	key := Fingerprint(viewingKey)

	var (
		snapshot []byte
		savedAt  time.Time
	)
	err := d.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(snapshotBucketName).Get(key)
		if v == nil {
			return ErrSnapshotNotFound
		}
		// Values are only valid during the transaction.
		snapshot = append([]byte(nil), v...)

		if ts := tx.Bucket(savedAtBucketName).Get(key); len(ts) == 8 {
			savedAt = time.Unix(int64(byteOrder.Uint64(ts)), 0)
		}
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return snapshot, savedAt, nil
}

// FetchLatestSnapshot returns the most recently saved snapshot of any
// wallet in the database and the time it was saved.
func (d *DB) FetchLatestSnapshot() ([]byte, time.Time, error) {
	var (
		snapshot []byte
		savedAt  time.Time
	)
	err := d.db.View(func(tx *bbolt.Tx) error {
		var latest []byte
		err := tx.Bucket(savedAtBucketName).ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return nil
			}
			at := time.Unix(int64(byteOrder.Uint64(v)), 0)
			if latest == nil || at.After(savedAt) {
				latest = k
				savedAt = at
			}
			return nil
		})
		if err != nil {
			return err
		}
		if latest == nil {
			return ErrSnapshotNotFound
		}

		v := tx.Bucket(snapshotBucketName).Get(latest)
		if v == nil {
			return ErrSnapshotNotFound
		}
		snapshot = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return snapshot, savedAt, nil
}

// DeleteSnapshot removes the snapshot of the wallet bound to viewingKey.
func (d *DB) DeleteSnapshot(viewingKey string) error {
	key := Fingerprint(viewingKey)
	return d.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(snapshotBucketName).Get(key) == nil {
			return ErrSnapshotNotFound
		}
		if err := tx.Bucket(snapshotBucketName).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(savedAtBucketName).Delete(key)
	})
}

// Fingerprints returns the hex encoded fingerprints of every stored wallet.
func (d *DB) Fingerprints() ([]string, error) {
	var fps []string
	err := d.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotBucketName).ForEach(func(k, _ []byte) error {
			fps = append(fps, hex.EncodeToString(k))
			return nil
		})
	})
	return fps, err
}

// uint32ToBytes converts a 32 bit unsigned integer into a 4-byte slice in
// little-endian order: 1 -> [1 0 0 0].
func uint32ToBytes(number uint32) []byte {
	buf := make([]byte, 4)
	byteOrder.PutUint32(buf, number)
	return buf
}
