package shopping

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const itemBucketName = "shopping_items"

// DB defines the interface for shopping list persistence
type DB interface {
	// SaveItem saves a shopping list item
	SaveItem(item *Item) error

	// GetItem retrieves an item by ID
	GetItem(id string) (*Item, error)

	// ListItems returns all items
	ListItems() ([]*Item, error)

	// DeleteItem removes an item
	DeleteItem(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(itemBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveItem saves a shopping list item
func (b *BoltDB) SaveItem(item *Item) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucketName))
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		return bucket.Put([]byte(item.ID), data)
	})
}

// GetItem retrieves an item by ID
func (b *BoltDB) GetItem(id string) (*Item, error) {
	var item *Item
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("item not found: %s", id)
		}
		return json.Unmarshal(data, &item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns all items
func (b *BoltDB) ListItems() ([]*Item, error) {
	items := make([]*Item, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling item: %w", err)
			}
			items = append(items, &item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItem removes an item
func (b *BoltDB) DeleteItem(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
