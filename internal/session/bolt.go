package session

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	imagesBucketName = "pending_images"
	stagesBucketName = "stages"
)

// BoltStore implements the Store interface using BoltDB, so pending images
// survive a restart
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore on top of an open database
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(imagesBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(stagesBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating session buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// OpenBoltStore opens a dedicated database file for sessions
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}
	store, err := NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// PutImage stores the pending image for a user
func (b *BoltStore) PutImage(userID string, img PendingImage) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(img)
		if err != nil {
			return fmt.Errorf("marshaling pending image: %w", err)
		}
		return tx.Bucket([]byte(imagesBucketName)).Put([]byte(userID), data)
	})
}

// TakeImage returns and clears the pending image in a single transaction
func (b *BoltStore) TakeImage(userID string) (*PendingImage, error) {
	var img *PendingImage
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(imagesBucketName))
		data := bucket.Get([]byte(userID))
		if data == nil {
			return ErrNoPendingImage
		}
		if err := json.Unmarshal(data, &img); err != nil {
			return fmt.Errorf("unmarshaling pending image: %w", err)
		}
		return bucket.Delete([]byte(userID))
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Stage returns the stage for a user
func (b *BoltStore) Stage(userID string) (Stage, error) {
	stage := StageIdle
	err := b.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket([]byte(stagesBucketName)).Get([]byte(userID)); data != nil {
			stage = Stage(data)
		}
		return nil
	})
	return stage, err
}

// SetStage sets the stage for a user
func (b *BoltStore) SetStage(userID string, stage Stage) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(stagesBucketName))
		if stage == StageIdle {
			return bucket.Delete([]byte(userID))
		}
		return bucket.Put([]byte(userID), []byte(stage))
	})
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
