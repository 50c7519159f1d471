// Photobox room API
//
// Four room resources, polled by clients on a fixed cadence:
//   GET  /rooms/:room/photos    committed photos, slot order
//   POST /rooms/:room/photo     commit (or replace) the caller's photo
//   GET  /rooms/:room/previews  who is live right now, thumbnails included
//   POST /rooms/:room/previews  liveness ping with an optional thumbnail
//
// Plus the room extras:
//   GET  /rooms                 mint a fresh room ID
//   GET  /rooms/:room/collage   server-side render of the room's collage
//   GET  /rooms/:room/qr        QR code for sharing the room URL
//   GET  /overlay/:variant/placement  overlay placement rectangle
//
// There is no push channel; repeated polling is the delivery contract.

package main

import (
	"crypto/rand"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Data-URL photos from phone cameras run large.
const maxBodyBytes = 15 << 20

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("%s | ERROR: encoding JSON response: %v", time.Now().Format(logDate), err)
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// Responses reflect live room state and must never be cached by clients
// or intermediaries.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}

// validRoomID rejects anything that couldn't safely name a record on disk.
// Room IDs are opaque to clients but they become file names here.
func validRoomID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// newRoomID generates a crypto-random room ID, retrying on the off chance
// it already names a record on disk.
func newRoomID(store *RoomStore) string {
	for {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 16)
		for i := range out {
			out[i] = roomIDAlphabet[int(buf[i])%len(roomIDAlphabet)]
		}
		id := string(out)

		if _, err := os.Stat(store.roomPath(id)); os.IsNotExist(err) {
			return id
		}
	}
}

func serveNewRoom(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := newRoomID(store)

		logf(cfg, "ROOMS: Created room %s for %s", roomID, realIP(r))

		securityHeaders(cfg, w)
		noStore(w)
		jsonResponse(w, http.StatusOK, map[string]string{"room": roomID})
	}
}

func serveRoomPhotos(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		roomID := p.ByName("room")
		if !validRoomID(roomID) {
			jsonError(w, http.StatusBadRequest, "room is required")
			return
		}

		photos := store.GetPhotos(roomID)

		securityHeaders(cfg, w)
		noStore(w)
		jsonResponse(w, http.StatusOK, map[string]any{
			"ok":     true,
			"photos": photos,
		})
	}
}

type photoUpload struct {
	ParticipantID string `json:"participantId"`
	Image         string `json:"image"`
}

func servePhotoUpload(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		roomID := p.ByName("room")
		if !validRoomID(roomID) {
			jsonError(w, http.StatusBadRequest, "room is required")
			return
		}

		var req photoUpload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.ParticipantID == "" {
			jsonError(w, http.StatusBadRequest, "participantId is required")
			return
		}
		if _, err := parseImageDataURL(req.Image); err != nil {
			jsonError(w, http.StatusBadRequest, "image must be an image data URL")
			return
		}

		photos, err := store.UpsertPhoto(roomID, req.ParticipantID, req.Image)
		if err != nil {
			logf(cfg, "ROOMS: Photo write for %s failed: %v", roomID, err)
			jsonError(w, http.StatusInternalServerError, "failed to store photo")
			return
		}

		logf(cfg, "ROOMS: Stored photo (%s) from %q in %s for %s in %s",
			humanReadableSize(int64(len(req.Image))),
			req.ParticipantID,
			roomID,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)

		securityHeaders(cfg, w)
		noStore(w)
		jsonResponse(w, http.StatusOK, map[string]any{
			"ok":     true,
			"photos": photos,
		})
	}
}

func serveRoomPreviews(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		roomID := p.ByName("room")
		if !validRoomID(roomID) {
			jsonError(w, http.StatusBadRequest, "room is required")
			return
		}

		maxAge := cfg.previewMaxAge
		if raw := r.URL.Query().Get("maxAge"); raw != "" {
			seconds, err := strconv.ParseFloat(raw, 64)
			if err != nil || seconds <= 0 {
				jsonError(w, http.StatusBadRequest, "maxAge must be a positive number of seconds")
				return
			}
			maxAge = time.Duration(seconds * float64(time.Second))
		}

		previews := store.GetPreviews(roomID, maxAge)

		securityHeaders(cfg, w)
		noStore(w)
		jsonResponse(w, http.StatusOK, map[string]any{"previews": previews})
	}
}

type previewUpload struct {
	ParticipantID string `json:"participantId"`
	Thumbnail     string `json:"thumbnail"`
}

func servePreviewUpload(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		roomID := p.ByName("room")
		if !validRoomID(roomID) {
			jsonError(w, http.StatusBadRequest, "room is required")
			return
		}

		var req previewUpload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.ParticipantID == "" {
			jsonError(w, http.StatusBadRequest, "participantId is required")
			return
		}

		thumbnail := req.Thumbnail
		if thumbnail != "" {
			thumbnail = normalizeThumbnail(thumbnail, cfg.thumbnailSize)
		}

		previews, err := store.UpsertPreview(roomID, req.ParticipantID, thumbnail)
		if err != nil {
			logf(cfg, "ROOMS: Preview write for %s failed: %v", roomID, err)
			jsonError(w, http.StatusInternalServerError, "failed to store preview")
			return
		}

		securityHeaders(cfg, w)
		noStore(w)
		jsonResponse(w, http.StatusOK, map[string]any{"previews": previews})
	}
}

func serveRoomCollage(cfg *Config, store *RoomStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		roomID := p.ByName("room")
		if !validRoomID(roomID) {
			jsonError(w, http.StatusBadRequest, "room is required")
			return
		}

		photos := store.GetPhotos(roomID)
		if len(photos) == 0 {
			jsonError(w, http.StatusNotFound, "room has no photos")
			return
		}

		payloads := make([][]byte, len(photos))
		for i, photo := range photos {
			// A stored payload that no longer parses renders as a
			// placeholder cell, same as any other decode failure.
			payloads[i], _ = parseImageDataURL(photo.Image)
		}

		img, err := composeCollage(payloads)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to compose collage")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		securityHeaders(cfg, w)
		noStore(w)

		if err := encodeCollage(w, img); err != nil {
			errs <- err

			return
		}

		logf(cfg, "ROOMS: Composed %d-photo collage for %s to %s in %s",
			len(photos),
			roomID,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveRoomQR generates a PNG QR code for the room URL using go-qrcode.
func serveRoomQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		roomID := p.ByName("room")
		if !validRoomID(roomID) {
			jsonError(w, http.StatusBadRequest, "room is required")
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /rooms/:room/qr; strip trailing "/qr" to get the room URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// parseFloatParam reads a required positive float query parameter.
func parseFloatParam(r *http.Request, name string) (float64, bool) {
	value, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

func serveOverlayPlacement(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		variant, ok := overlayVariants[p.ByName("variant")]
		if !ok {
			jsonError(w, http.StatusBadRequest, "unknown overlay variant")
			return
		}

		containerW, okW := parseFloatParam(r, "containerWidth")
		containerH, okH := parseFloatParam(r, "containerHeight")
		videoW, okVW := parseFloatParam(r, "videoWidth")
		videoH, okVH := parseFloatParam(r, "videoHeight")
		if !okW || !okH || !okVW || !okVH {
			jsonError(w, http.StatusBadRequest, "containerWidth, containerHeight, videoWidth and videoHeight must be positive numbers")
			return
		}

		// The face box is optional as a unit: either all four fields or none.
		var face *faceBox
		query := r.URL.Query()
		if query.Get("faceX") != "" || query.Get("faceY") != "" ||
			query.Get("faceWidth") != "" || query.Get("faceHeight") != "" {
			var parsed faceBox
			var err error
			if parsed.X, err = strconv.ParseFloat(query.Get("faceX"), 64); err != nil {
				jsonError(w, http.StatusBadRequest, "invalid face box")
				return
			}
			if parsed.Y, err = strconv.ParseFloat(query.Get("faceY"), 64); err != nil {
				jsonError(w, http.StatusBadRequest, "invalid face box")
				return
			}
			if parsed.Width, err = strconv.ParseFloat(query.Get("faceWidth"), 64); err != nil {
				jsonError(w, http.StatusBadRequest, "invalid face box")
				return
			}
			if parsed.Height, err = strconv.ParseFloat(query.Get("faceHeight"), 64); err != nil {
				jsonError(w, http.StatusBadRequest, "invalid face box")
				return
			}
			face = &parsed
		}

		rect := placeOverlay(variant, containerW, containerH, videoW, videoH, face)

		securityHeaders(cfg, w)
		noStore(w)
		jsonResponse(w, http.StatusOK, rect)
	}
}

// registerRooms sets up the room API:
//   - /rooms                     → mint a new room ID
//   - /rooms/:room/photos        → committed photos
//   - /rooms/:room/photo         → photo upsert
//   - /rooms/:room/previews      → liveness previews (GET poll, POST ping)
//   - /rooms/:room/collage       → rendered collage JPEG
//   - /rooms/:room/qr            → PNG QR code for the room URL
//   - /overlay/:variant/placement → overlay rectangle for a face box
func registerRooms(cfg *Config, store *RoomStore, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/rooms", serveNewRoom(cfg, store))

	mux.GET(cfg.prefix+"/rooms/:room/photos", serveRoomPhotos(cfg, store))
	mux.POST(cfg.prefix+"/rooms/:room/photo", servePhotoUpload(cfg, store))

	mux.GET(cfg.prefix+"/rooms/:room/previews", serveRoomPreviews(cfg, store))
	mux.POST(cfg.prefix+"/rooms/:room/previews", servePreviewUpload(cfg, store))

	mux.GET(cfg.prefix+"/rooms/:room/collage", serveRoomCollage(cfg, store, errs))
	mux.GET(cfg.prefix+"/rooms/:room/qr", serveRoomQR(cfg))

	mux.GET(cfg.prefix+"/overlay/:variant/placement", serveOverlayPlacement(cfg))
}
