package snapshot

import (
	"context"
	"testing"
)

func TestWriterPersistsQueuedSnapshots(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	w := NewWriter(repo)

	w.Enqueue(testDevice("bf910"))
	w.Enqueue(testDevice("bf911"))
	w.Enqueue(nil) // must be a no-op
	w.Close()

	for _, id := range []string{"bf910", "bf911"} {
		if _, err := repo.Get(context.Background(), id); err != nil {
			t.Errorf("snapshot %s not persisted: %v", id, err)
		}
	}
}

func TestWriterEnqueueNeverBlocks(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(NewSQLiteRepository(db.DB))
	defer w.Close()

	// Far more than the queue holds; overflow is dropped, not waited on.
	for i := 0; i < 4*writerQueueSize; i++ {
		w.Enqueue(testDevice("bf912"))
	}
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(NewSQLiteRepository(db.DB))
	w.Close()
	w.Close()
}
