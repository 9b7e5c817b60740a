package setlist

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

const itemColumns = `id, set_id, track_id, position, notes, created_at`

func scanItem(row rowScanner) (SetItem, error) {
	var it SetItem
	err := row.Scan(&it.ID, &it.SetID, &it.TrackID, &it.Position, &it.Notes, &it.CreatedAt)
	return it, err
}

// loadItems returns a set's items ascending by position, each with its track
// embedded.
func (s *Server) loadItems(ctx context.Context, setID string) ([]SetItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id, i.set_id, i.track_id, i.position, i.notes, i.created_at,
		       t.id, t.user_id, t.title, t.artist, t.bpm, t.musical_key, t.energy, t.notes, t.created_at
		FROM set_items i
		JOIN tracks t ON i.track_id = t.id
		WHERE i.set_id = $1
		ORDER BY i.position ASC
	`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []SetItem{}
	for rows.Next() {
		var it SetItem
		var t Track
		if err := rows.Scan(
			&it.ID, &it.SetID, &it.TrackID, &it.Position, &it.Notes, &it.CreatedAt,
			&t.ID, &t.UserID, &t.Title, &t.Artist, &t.Bpm, &t.MusicalKey, &t.Energy, &t.Notes, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		it.Track = &t
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	setID := chi.URLParam(r, "id")
	if err := requireOwned(ctx, s.db, tableSets, setID, userID); err != nil {
		if errors.Is(err, errNotOwned) {
			writeError(w, http.StatusNotFound, "set not found")
			return
		}
		log.Printf("setlist-service: list items set lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	items, err := s.loadItems(ctx, setID)
	if err != nil {
		log.Printf("setlist-service: list items: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleAddItem appends a track to a set. The new position is computed inside
// the INSERT so concurrent appends contend on the unique index, never on a
// stale read.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	setID := chi.URLParam(r, "id")
	if err := requireOwned(ctx, s.db, tableSets, setID, userID); err != nil {
		if errors.Is(err, errNotOwned) {
			writeError(w, http.StatusNotFound, "set not found")
			return
		}
		log.Printf("setlist-service: add item set lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var body struct {
		TrackID string  `json:"trackId"`
		Notes   *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	if err := requireOwned(ctx, s.db, tableTracks, body.TrackID, userID); err != nil {
		if errors.Is(err, errNotOwned) {
			writeError(w, http.StatusNotFound, "track not found")
			return
		}
		log.Printf("setlist-service: add item track lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO set_items (set_id, track_id, position, notes)
		VALUES (
			$1, $2,
			COALESCE(
				(SELECT MAX(position)+1 FROM set_items WHERE set_id = $1),
				0
			),
			$3
		)
		RETURNING `+itemColumns+`
	`, setID, body.TrackID, body.Notes)
	it, err := scanItem(row)
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "position already taken, retry")
			return
		}
		log.Printf("setlist-service: add item insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "setitem.added", map[string]any{
		"setId": setID,
		"item":  it,
	})
	writeJSON(w, http.StatusCreated, it)
}

// handlePatchItem updates notes and, when supplied, writes the position
// directly without renormalizing siblings. Bulk changes belong to the reorder
// endpoint; a collision here is the caller's error and fails loudly.
func (s *Server) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	setID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemId")
	if err := requireOwned(ctx, s.db, tableSets, setID, userID); err != nil {
		if errors.Is(err, errNotOwned) {
			writeError(w, http.StatusNotFound, "set not found")
			return
		}
		log.Printf("setlist-service: patch item set lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !validID(itemID) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	var body struct {
		Position json.RawMessage  `json:"position"`
		Notes    Optional[string] `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM set_items
		WHERE id = $1 AND set_id = $2
	`, itemID, setID)
	existing, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: patch item fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if len(body.Position) > 0 {
		n, ok := intArg(body.Position)
		if !ok {
			writeError(w, http.StatusBadRequest, "position must be an integer")
			return
		}
		existing.Position = n
	}
	if body.Notes.Set {
		if body.Notes.Valid {
			v := body.Notes.Value
			existing.Notes = &v
		} else {
			existing.Notes = nil
		}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE set_items
		SET position = $2,
			notes = $3
		WHERE id = $1
	`, existing.ID, existing.Position, existing.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "position collides with another item")
			return
		}
		log.Printf("setlist-service: patch item update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "setitem.updated", map[string]any{
		"setId": setID,
		"item":  existing,
	})
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteItem removes an item without renumbering the rest; position
// gaps are allowed, only relative order matters.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	setID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemId")
	if err := requireOwned(ctx, s.db, tableSets, setID, userID); err != nil {
		if errors.Is(err, errNotOwned) {
			writeError(w, http.StatusNotFound, "set not found")
			return
		}
		log.Printf("setlist-service: delete item set lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !validID(itemID) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM set_items
		WHERE id = $1 AND set_id = $2
	`, itemID, setID)
	if err != nil {
		log.Printf("setlist-service: delete item: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	s.publishEvent(ctx, "setitem.removed", map[string]any{
		"setId":  setID,
		"itemId": itemID,
	})
	w.WriteHeader(http.StatusNoContent)
}
