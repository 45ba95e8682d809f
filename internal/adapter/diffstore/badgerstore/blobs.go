package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

const blobScheme = "badger://"

// BlobStore keeps overflow payloads next to the records they belong to,
// under blob/{key}, with the record retention as TTL. Locations are
// "badger://key".
type BlobStore struct {
	db *badger.DB
}

// Blobs returns the blob store sharing this database.
func (s *Store) Blobs() *BlobStore {
	return &BlobStore{db: s.db}
}

func blobKey(key string) []byte { return []byte("blob/" + key) }

// Put stores data under key and returns its location.
func (b *BlobStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(blobKey(key), data).WithTTL(domain.DiffRetention))
	})
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w: %w", key, domain.ErrDependency, err)
	}
	return blobScheme + key, nil
}

// Get reads the blob at location.
func (b *BlobStore) Get(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, ok := strings.CutPrefix(location, blobScheme)
	if !ok {
		return nil, domain.NewValidationError("location", fmt.Sprintf("expected %s scheme in %q", blobScheme, location))
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("get %s: %w", location, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %w", location, domain.ErrDependency, err)
	}
	return data, nil
}
