package setlist

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// handleReorderItems applies a full permutation of a set's items in one
// transaction. The unique index on (set_id, position) is live the whole time,
// so a direct permutation would collide with itself; instead every item is
// first parked in a staging range strictly above all current positions, then
// given its final 0-based position.
func (s *Server) handleReorderItems(w http.ResponseWriter, r *http.Request) {
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
		log.Printf("setlist-service: reorder set lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var body struct {
		Order []string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Order == nil {
		writeError(w, http.StatusBadRequest, "order must be a list of item ids")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("setlist-service: reorder begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, position
		FROM set_items
		WHERE set_id = $1
		FOR UPDATE
	`, setID)
	if err != nil {
		log.Printf("setlist-service: reorder lock items: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	current := map[string]bool{}
	maxPos := -1
	for rows.Next() {
		var id string
		var pos int
		if err := rows.Scan(&id, &pos); err != nil {
			rows.Close()
			log.Printf("setlist-service: reorder scan item: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		current[id] = true
		if pos > maxPos {
			maxPos = pos
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Printf("setlist-service: reorder items rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// The order must carry exactly the set's current item ids: no omission,
	// no stranger, no duplicate. Anything else is rejected before the first
	// write.
	if len(body.Order) != len(current) {
		writeError(w, http.StatusBadRequest, "order must include all current item ids exactly once")
		return
	}
	seen := map[string]bool{}
	for _, id := range body.Order {
		if !current[id] || seen[id] {
			writeError(w, http.StatusBadRequest, "order must include all current item ids exactly once")
			return
		}
		seen[id] = true
	}

	// Phase 1: park every item above the highest live position. The staging
	// range cannot collide with any current position (all stage values are
	// > maxPos) nor with any final position (maxPos+1 >= item count, since
	// positions are distinct and non-negative).
	offset := maxPos + 1
	for idx, id := range body.Order {
		if _, err := tx.Exec(ctx, `
			UPDATE set_items
			SET position = $3
			WHERE id = $2 AND set_id = $1
		`, setID, id, offset+idx); err != nil {
			log.Printf("setlist-service: reorder stage item: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	// Phase 2: final 0-based positions in input order.
	for idx, id := range body.Order {
		if _, err := tx.Exec(ctx, `
			UPDATE set_items
			SET position = $3
			WHERE id = $2 AND set_id = $1
		`, setID, id, idx); err != nil {
			log.Printf("setlist-service: reorder place item: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("setlist-service: reorder commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	items, err := s.loadItems(ctx, setID)
	if err != nil {
		log.Printf("setlist-service: reorder reload items: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "set.reordered", map[string]any{
		"setId": setID,
		"order": body.Order,
	})
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
