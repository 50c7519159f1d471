package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock drives a RoomStore's notion of now from the test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*RoomStore, *testClock) {
	t.Helper()

	clock := newTestClock()
	store := newRoomStore(t.TempDir())
	store.now = clock.Now

	return store, clock
}

func TestEmptyRoomReads(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Empty(t, store.GetPhotos("nobody-wrote-here"))
	assert.Empty(t, store.GetPreviews("nobody-wrote-here", 8*time.Second))
}

func TestUpsertPhotoAppendsAndReplaces(t *testing.T) {
	store, clock := newTestStore(t)

	photos, err := store.UpsertPhoto("party", "alice", "img-one")
	require.NoError(t, err)
	require.Len(t, photos, 1)

	created := photos[0].CreatedAt

	clock.Advance(5 * time.Second)

	photos, err = store.UpsertPhoto("party", "alice", "img-two")
	require.NoError(t, err)
	require.Len(t, photos, 1, "replacement must not add a second entry")

	entry := photos[0]
	assert.Equal(t, "alice", entry.ParticipantID)
	assert.Equal(t, "img-two", entry.Image)
	assert.Equal(t, 0, entry.PositionIndex)
	assert.True(t, entry.CreatedAt.Equal(created), "createdAt must survive replacement")
	assert.True(t, entry.UpdatedAt.After(created), "updatedAt must advance on replacement")
}

func TestPositionIndexStability(t *testing.T) {
	store, _ := newTestStore(t)

	for _, participant := range []string{"alice", "bob", "carol"} {
		_, err := store.UpsertPhoto("party", participant, "img-"+participant)
		require.NoError(t, err)
	}

	// Update out of insertion order; slots must not move.
	_, err := store.UpsertPhoto("party", "carol", "retake-carol")
	require.NoError(t, err)
	_, err = store.UpsertPhoto("party", "alice", "retake-alice")
	require.NoError(t, err)

	photos := store.GetPhotos("party")
	require.Len(t, photos, 3)

	assert.Equal(t, "alice", photos[0].ParticipantID)
	assert.Equal(t, "bob", photos[1].ParticipantID)
	assert.Equal(t, "carol", photos[2].ParticipantID)
	for i, photo := range photos {
		assert.Equal(t, i, photo.PositionIndex)
	}
}

func TestPhotosIsolatedPerRoom(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.UpsertPhoto("one", "alice", "img")
	require.NoError(t, err)

	assert.Empty(t, store.GetPhotos("two"))
}

func TestPreviewFreshnessWindow(t *testing.T) {
	store, clock := newTestStore(t)

	_, err := store.UpsertPreview("party", "alice", "thumb")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	assert.Len(t, store.GetPreviews("party", 8*time.Second), 1)
	assert.Empty(t, store.GetPreviews("party", 3*time.Second))

	// Filtered reads must not delete anything.
	assert.Len(t, store.GetPreviews("party", 8*time.Second), 1)
}

func TestPreviewRetentionPrunesOnAnyWrite(t *testing.T) {
	store, clock := newTestStore(t)

	_, err := store.UpsertPreview("party", "alice", "thumb-a")
	require.NoError(t, err)

	clock.Advance(61 * time.Second)

	// A different participant's ping prunes alice's stale entry.
	previews, err := store.UpsertPreview("party", "bob", "thumb-b")
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, "bob", previews[0].ParticipantID)

	// The prune is persisted, not just filtered from the response.
	rec := store.loadRecord("party")
	require.Len(t, rec.Previews, 1)
	assert.Equal(t, "bob", rec.Previews[0].ParticipantID)
}

func TestPreviewThumbnailPreservedOnBareRefresh(t *testing.T) {
	store, clock := newTestStore(t)

	_, err := store.UpsertPreview("party", "alice", "thumb")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	previews, err := store.UpsertPreview("party", "alice", "")
	require.NoError(t, err)
	require.Len(t, previews, 1)

	assert.Equal(t, "thumb", previews[0].Thumbnail, "bare refresh must not erase the stored thumbnail")
	assert.True(t, previews[0].LastSeenAt.Equal(clock.Now()))
}

func TestConcurrentUpsertsSameRoomLoseNothing(t *testing.T) {
	store, _ := newTestStore(t)

	participants := []string{
		"p00", "p01", "p02", "p03", "p04", "p05", "p06", "p07",
		"p08", "p09", "p10", "p11", "p12", "p13", "p14", "p15",
	}

	var wg sync.WaitGroup
	for _, participant := range participants {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := store.UpsertPhoto("party", id, "img-"+id)
			assert.NoError(t, err)
		}(participant)
	}
	wg.Wait()

	photos := store.GetPhotos("party")
	require.Len(t, photos, len(participants), "concurrent writes must not drop each other")

	seen := make(map[int]bool)
	for _, photo := range photos {
		assert.False(t, seen[photo.PositionIndex], "slot indices must be unique")
		seen[photo.PositionIndex] = true
		assert.Less(t, photo.PositionIndex, len(participants))
	}
}

func TestMalformedRecordTreatedAsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Join(store.dataDir, roomsSubdir), 0755))
	require.NoError(t, os.WriteFile(store.roomPath("party"), []byte("{not json"), 0644))

	assert.Empty(t, store.GetPhotos("party"))

	// A write over the corrupt record starts the room fresh.
	photos, err := store.UpsertPhoto("party", "alice", "img")
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, 0, photos[0].PositionIndex)
}

func TestWriteFailureSurfacesAndKeepsNothingPartial(t *testing.T) {
	store, _ := newTestStore(t)

	// Occupy the rooms path with a file so every persist attempt fails.
	require.NoError(t, os.WriteFile(filepath.Join(store.dataDir, roomsSubdir), []byte("in the way"), 0644))

	_, err := store.UpsertPhoto("party", "alice", "img")
	require.Error(t, err, "storage write failures must surface to the caller")

	// Reads collapse the failure to an empty room.
	assert.Empty(t, store.GetPhotos("party"))
}
