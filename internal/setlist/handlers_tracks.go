package setlist

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

const trackColumns = `id, user_id, title, artist, bpm, musical_key, energy, notes, created_at`

func scanTrack(row rowScanner) (Track, error) {
	var t Track
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Artist, &t.Bpm, &t.MusicalKey, &t.Energy, &t.Notes, &t.CreatedAt)
	return t, err
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))

	page := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	perPage := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("perPage")); err == nil && v > 0 {
		perPage = v
	}
	if perPage > 100 {
		perPage = 100
	}

	where := `user_id = $1`
	args := []any{userID}
	if q != "" {
		where += ` AND (title ILIKE $2 OR artist ILIKE $2 OR energy ILIKE $2)`
		args = append(args, "%"+q+"%")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tracks WHERE `+where, args...).Scan(&total); err != nil {
		log.Printf("setlist-service: count tracks: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	limitArgs := append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $`+strconv.Itoa(len(args)+1)+` OFFSET $`+strconv.Itoa(len(args)+2),
		limitArgs...)
	if err != nil {
		log.Printf("setlist-service: list tracks: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	tracks := []Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			log.Printf("setlist-service: scan track: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		log.Printf("setlist-service: list tracks rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tracks":  tracks,
		"page":    page,
		"perPage": perPage,
		"total":   total,
		"pages":   pages,
	})
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Title      string          `json:"title"`
		Artist     string          `json:"artist"`
		Bpm        json.RawMessage `json:"bpm"`
		MusicalKey string          `json:"musicalKey"`
		Energy     string          `json:"energy"`
		Notes      *string         `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	title := strings.TrimSpace(body.Title)
	artist := strings.TrimSpace(body.Artist)
	if title == "" || artist == "" {
		writeError(w, http.StatusBadRequest, "title and artist are required")
		return
	}

	var bpm *int
	if len(body.Bpm) > 0 && !isNullArg(body.Bpm) {
		n, ok := intArg(body.Bpm)
		if !ok {
			writeError(w, http.StatusBadRequest, "bpm must be an integer")
			return
		}
		bpm = &n
	}

	var musicalKey, energy *string
	if v := strings.TrimSpace(body.MusicalKey); v != "" {
		musicalKey = &v
	}
	if v := strings.TrimSpace(body.Energy); v != "" {
		energy = &v
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO tracks (user_id, title, artist, bpm, musical_key, energy, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+trackColumns+`
	`, userID, title, artist, bpm, musicalKey, energy, body.Notes)
	t, err := scanTrack(row)
	if err != nil {
		log.Printf("setlist-service: create track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "track.created", map[string]any{"track": t})
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	trackID := chi.URLParam(r, "id")
	if !validID(trackID) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE id = $1 AND user_id = $2
	`, trackID, userID)
	t, err := scanTrack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: get track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handlePatchTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	trackID := chi.URLParam(r, "id")
	if !validID(trackID) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	var body struct {
		Title      Optional[string] `json:"title"`
		Artist     Optional[string] `json:"artist"`
		Bpm        json.RawMessage  `json:"bpm"`
		MusicalKey Optional[string] `json:"musicalKey"`
		Energy     Optional[string] `json:"energy"`
		Notes      Optional[string] `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("setlist-service: patch track begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE id = $1 AND user_id = $2
	`, trackID, userID)
	existing, err := scanTrack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: patch track fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if body.Title.Set {
		title := strings.TrimSpace(body.Title.Value)
		if !body.Title.Valid || title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		existing.Title = title
	}
	if body.Artist.Set {
		artist := strings.TrimSpace(body.Artist.Value)
		if !body.Artist.Valid || artist == "" {
			writeError(w, http.StatusBadRequest, "artist is required")
			return
		}
		existing.Artist = artist
	}
	if len(body.Bpm) > 0 {
		if isNullArg(body.Bpm) {
			existing.Bpm = nil
		} else {
			n, ok := intArg(body.Bpm)
			if !ok {
				writeError(w, http.StatusBadRequest, "bpm must be an integer")
				return
			}
			existing.Bpm = &n
		}
	}
	if body.MusicalKey.Set {
		if v := strings.TrimSpace(body.MusicalKey.Value); body.MusicalKey.Valid && v != "" {
			existing.MusicalKey = &v
		} else {
			existing.MusicalKey = nil
		}
	}
	if body.Energy.Set {
		if v := strings.TrimSpace(body.Energy.Value); body.Energy.Valid && v != "" {
			existing.Energy = &v
		} else {
			existing.Energy = nil
		}
	}
	if body.Notes.Set {
		if body.Notes.Valid {
			v := body.Notes.Value
			existing.Notes = &v
		} else {
			existing.Notes = nil
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE tracks
		SET title = $2,
			artist = $3,
			bpm = $4,
			musical_key = $5,
			energy = $6,
			notes = $7
		WHERE id = $1
	`, existing.ID, existing.Title, existing.Artist, existing.Bpm, existing.MusicalKey, existing.Energy, existing.Notes)
	if err != nil {
		log.Printf("setlist-service: patch track update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("setlist-service: patch track commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "track.updated", map[string]any{"track": existing})
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	trackID := chi.URLParam(r, "id")
	if err := requireOwned(ctx, s.db, tableTracks, trackID, userID); err != nil {
		if errors.Is(err, errNotOwned) {
			writeError(w, http.StatusNotFound, "track not found")
			return
		}
		log.Printf("setlist-service: delete track lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// set_items referencing this track go with it (FK cascade).
	if _, err := s.db.Exec(ctx, `
		DELETE FROM tracks
		WHERE id = $1 AND user_id = $2
	`, trackID, userID); err != nil {
		log.Printf("setlist-service: delete track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "track.deleted", map[string]any{"trackId": trackID})
	w.WriteHeader(http.StatusNoContent)
}

// handleTrackUsage answers "where and when has this track been played":
// every set_item for the track, most recent gig first, undated and gig-less
// sets after all dated ones.
func (s *Server) handleTrackUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	trackID := chi.URLParam(r, "id")
	if !validID(trackID) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE id = $1 AND user_id = $2
	`, trackID, userID)
	track, err := scanTrack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: usage fetch track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	rows, err := s.db.Query(ctx, `
		SELECT i.id, i.position, s.id, s.name,
		       g.id, g.user_id, g.title, g.venue, to_char(g.gig_date, 'YYYY-MM-DD'), g.notes, g.created_at
		FROM set_items i
		JOIN sets s ON i.set_id = s.id
		LEFT JOIN gigs g ON s.gig_id = g.id
		WHERE i.track_id = $1 AND s.user_id = $2
		ORDER BY g.gig_date DESC NULLS LAST, s.created_at DESC, s.id DESC, i.position ASC
	`, trackID, userID)
	if err != nil {
		log.Printf("setlist-service: usage query: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	usage := []UsageEntry{}
	for rows.Next() {
		var e UsageEntry
		var gigID, gigUserID, gigTitle, gigVenue, gigDate, gigNotes *string
		var gigCreatedAt *time.Time
		if err := rows.Scan(
			&e.SetItemID, &e.Position, &e.SetID, &e.SetName,
			&gigID, &gigUserID, &gigTitle, &gigVenue, &gigDate, &gigNotes, &gigCreatedAt,
		); err != nil {
			log.Printf("setlist-service: usage scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if gigID != nil {
			g := Gig{ID: *gigID, Venue: gigVenue, GigDate: gigDate, Notes: gigNotes}
			if gigUserID != nil {
				g.UserID = *gigUserID
			}
			if gigTitle != nil {
				g.Title = *gigTitle
			}
			if gigCreatedAt != nil {
				g.CreatedAt = *gigCreatedAt
			}
			e.Gig = &g
		}
		usage = append(usage, e)
	}
	if err := rows.Err(); err != nil {
		log.Printf("setlist-service: usage rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var lastPlayed *string
	for _, e := range usage {
		if e.Gig != nil && e.Gig.GigDate != nil {
			lastPlayed = e.Gig.GigDate
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"track":      track,
		"usage":      usage,
		"lastPlayed": lastPlayed,
	})
}
