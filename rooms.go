// Photobox rooms
//
// Every guest in a room contributes at most one photo, and the photos are
// assembled into a shared collage. While guests are framing their shot they
// ping the room with a small thumbnail, so everyone else can see who is
// currently in front of a camera.
//
// State is one JSON record per room on disk. Each record holds:
// - photos: committed contributions, one per participant, with a slot index
//   assigned on first insert and kept stable across retakes
// - previews: ephemeral liveness pings, pruned after a hard retention window
//   on every write and filtered by a shorter freshness window on every read
//
// Rooms come into existence on first write and are never deleted. All
// read-modify-write cycles against one room serialize on that room's lock;
// different rooms never contend.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// Previews older than this are dropped from the record entirely on
	// every preview write, bounding growth from abandoned sessions.
	previewRetention = 60 * time.Second

	roomsSubdir = "rooms"
)

// PhotoEntry is one participant's committed photo.
type PhotoEntry struct {
	ParticipantID string    `json:"participantId"`
	Image         string    `json:"image"`
	PositionIndex int       `json:"positionIndex"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PreviewEntry is one participant's most recent liveness ping.
type PreviewEntry struct {
	ParticipantID string    `json:"participantId"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
}

// roomRecord is the full persisted state of a room.
type roomRecord struct {
	RoomID   string         `json:"roomId"`
	Photos   []PhotoEntry   `json:"photos"`
	Previews []PreviewEntry `json:"previews"`
}

// RoomStore persists room records under dataDir/rooms, one file per room.
type RoomStore struct {
	dataDir string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex

	now func() time.Time
}

func newRoomStore(dataDir string) *RoomStore {
	return &RoomStore{
		dataDir: dataDir,
		locks:   make(map[string]*sync.RWMutex),
		now:     time.Now,
	}
}

// roomLock returns the lock owned by roomID, creating it on first use.
func (s *RoomStore) roomLock(roomID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[roomID]
	if !ok {
		lock = &sync.RWMutex{}
		s.locks[roomID] = lock
	}
	return lock
}

func (s *RoomStore) roomPath(roomID string) string {
	return filepath.Join(s.dataDir, roomsSubdir, roomID+".json")
}

// loadRecord reads a room record from disk. A missing file, unreadable file,
// or malformed record all come back as an empty room; a room nobody has
// written to yet is a normal state, not an error.
func (s *RoomStore) loadRecord(roomID string) roomRecord {
	rec := roomRecord{RoomID: roomID}

	data, err := os.ReadFile(s.roomPath(roomID))
	if err != nil {
		return rec
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return roomRecord{RoomID: roomID}
	}
	rec.RoomID = roomID

	return rec
}

// saveRecord persists a room record atomically: the marshaled record lands in
// a temp file first and is renamed over the old one, so a failed write leaves
// the previous record intact.
func (s *RoomStore) saveRecord(rec roomRecord) error {
	dir := filepath.Join(s.dataDir, roomsSubdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create rooms dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal room %q: %w", rec.RoomID, err)
	}

	tmp, err := os.CreateTemp(dir, rec.RoomID+".*.tmp")
	if err != nil {
		return fmt.Errorf("write room %q: %w", rec.RoomID, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write room %q: %w", rec.RoomID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write room %q: %w", rec.RoomID, err)
	}

	if err := os.Rename(tmp.Name(), s.roomPath(rec.RoomID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write room %q: %w", rec.RoomID, err)
	}

	return nil
}

func sortPhotos(photos []PhotoEntry) {
	sort.Slice(photos, func(i, j int) bool {
		return photos[i].PositionIndex < photos[j].PositionIndex
	})
}

// GetPhotos returns the room's committed photos, ascending by slot index.
// Unknown rooms yield an empty slice.
func (s *RoomStore) GetPhotos(roomID string) []PhotoEntry {
	lock := s.roomLock(roomID)
	lock.RLock()
	defer lock.RUnlock()

	rec := s.loadRecord(roomID)

	photos := make([]PhotoEntry, len(rec.Photos))
	copy(photos, rec.Photos)
	sortPhotos(photos)

	return photos
}

// UpsertPhoto stores image as participantID's photo, replacing any previous
// one. A replacement keeps the original slot index and creation time; a first
// contribution is appended at the next free slot. Returns the post-write
// photo set in slot order.
func (s *RoomStore) UpsertPhoto(roomID, participantID, image string) ([]PhotoEntry, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	rec := s.loadRecord(roomID)
	now := s.now()

	existing := -1
	for i := range rec.Photos {
		if rec.Photos[i].ParticipantID == participantID {
			existing = i
			break
		}
	}

	if existing >= 0 {
		rec.Photos[existing].Image = image
		rec.Photos[existing].UpdatedAt = now
	} else {
		rec.Photos = append(rec.Photos, PhotoEntry{
			ParticipantID: participantID,
			Image:         image,
			PositionIndex: len(rec.Photos),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.saveRecord(rec); err != nil {
		return nil, err
	}

	photos := make([]PhotoEntry, len(rec.Photos))
	copy(photos, rec.Photos)
	sortPhotos(photos)

	return photos, nil
}

// GetPreviews returns previews last seen within maxAge. Staler entries stay
// in the record but are filtered out here; deletion is the writer's job.
// Order is not significant.
func (s *RoomStore) GetPreviews(roomID string, maxAge time.Duration) []PreviewEntry {
	lock := s.roomLock(roomID)
	lock.RLock()
	defer lock.RUnlock()

	rec := s.loadRecord(roomID)
	now := s.now()

	fresh := make([]PreviewEntry, 0, len(rec.Previews))
	for _, p := range rec.Previews {
		if now.Sub(p.LastSeenAt) <= maxAge {
			fresh = append(fresh, p)
		}
	}

	return fresh
}

// UpsertPreview refreshes participantID's liveness ping. The thumbnail is
// replaced only when a non-empty one is supplied; a bare refresh must not
// erase a previously stored thumbnail. Every call also prunes previews older
// than the retention window, whoever they belong to, and returns the set
// actually persisted.
func (s *RoomStore) UpsertPreview(roomID, participantID, thumbnail string) ([]PreviewEntry, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	rec := s.loadRecord(roomID)
	now := s.now()

	existing := -1
	for i := range rec.Previews {
		if rec.Previews[i].ParticipantID == participantID {
			existing = i
			break
		}
	}

	if existing >= 0 {
		rec.Previews[existing].LastSeenAt = now
		if thumbnail != "" {
			rec.Previews[existing].Thumbnail = thumbnail
		}
	} else {
		rec.Previews = append(rec.Previews, PreviewEntry{
			ParticipantID: participantID,
			Thumbnail:     thumbnail,
			LastSeenAt:    now,
		})
	}

	kept := rec.Previews[:0]
	for _, p := range rec.Previews {
		if now.Sub(p.LastSeenAt) <= previewRetention {
			kept = append(kept, p)
		}
	}
	rec.Previews = kept

	if err := s.saveRecord(rec); err != nil {
		return nil, err
	}

	previews := make([]PreviewEntry, len(rec.Previews))
	copy(previews, rec.Previews)

	return previews, nil
}
