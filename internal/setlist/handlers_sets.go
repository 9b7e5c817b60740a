package setlist

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

const setColumns = `id, user_id, gig_id, name, notes, created_at`

func scanSet(row rowScanner) (Set, error) {
	var st Set
	err := row.Scan(&st.ID, &st.UserID, &st.GigID, &st.Name, &st.Notes, &st.CreatedAt)
	return st, err
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+setColumns+`
		FROM sets
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		log.Printf("setlist-service: list sets: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	sets := []Set{}
	for rows.Next() {
		st, err := scanSet(rows)
		if err != nil {
			log.Printf("setlist-service: scan set: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		sets = append(sets, st)
	}
	if err := rows.Err(); err != nil {
		log.Printf("setlist-service: list sets rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sets": sets})
}

func (s *Server) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name  string  `json:"name"`
		GigID *string `json:"gigId"`
		Notes *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if body.GigID != nil {
		if err := requireOwned(ctx, s.db, tableGigs, *body.GigID, userID); err != nil {
			if errors.Is(err, errNotOwned) {
				writeError(w, http.StatusNotFound, "gig not found")
				return
			}
			log.Printf("setlist-service: create set gig lookup: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO sets (user_id, gig_id, name, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+setColumns+`
	`, userID, body.GigID, name, body.Notes)
	st, err := scanSet(row)
	if err != nil {
		log.Printf("setlist-service: create set: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "set.created", map[string]any{"set": st})
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	setID := chi.URLParam(r, "id")
	if !validID(setID) {
		writeError(w, http.StatusNotFound, "set not found")
		return
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+setColumns+`
		FROM sets
		WHERE id = $1 AND user_id = $2
	`, setID, userID)
	st, err := scanSet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "set not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: get set: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	items, err := s.loadItems(ctx, setID)
	if err != nil {
		log.Printf("setlist-service: get set items: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	st.Items = items

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePatchSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	setID := chi.URLParam(r, "id")
	if !validID(setID) {
		writeError(w, http.StatusNotFound, "set not found")
		return
	}

	var body struct {
		Name  Optional[string] `json:"name"`
		GigID Optional[string] `json:"gigId"`
		Notes Optional[string] `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// The gig ownership check runs outside the patch transaction, same as on
	// create; a gig deleted in between surfaces as an FK error, not corruption.
	if body.GigID.Set && body.GigID.Valid {
		if err := requireOwned(ctx, s.db, tableGigs, body.GigID.Value, userID); err != nil {
			if errors.Is(err, errNotOwned) {
				writeError(w, http.StatusNotFound, "gig not found")
				return
			}
			log.Printf("setlist-service: patch set gig lookup: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("setlist-service: patch set begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+setColumns+`
		FROM sets
		WHERE id = $1 AND user_id = $2
	`, setID, userID)
	existing, err := scanSet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "set not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: patch set fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if body.Name.Set {
		name := strings.TrimSpace(body.Name.Value)
		if !body.Name.Valid || name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		existing.Name = name
	}
	if body.GigID.Set {
		if body.GigID.Valid {
			v := body.GigID.Value
			existing.GigID = &v
		} else {
			existing.GigID = nil
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
		UPDATE sets
		SET gig_id = $2,
			name = $3,
			notes = $4
		WHERE id = $1
	`, existing.ID, existing.GigID, existing.Name, existing.Notes)
	if err != nil {
		log.Printf("setlist-service: patch set update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("setlist-service: patch set commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "set.updated", map[string]any{"set": existing})
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
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
		log.Printf("setlist-service: delete set lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := s.db.Exec(ctx, `
		DELETE FROM sets
		WHERE id = $1 AND user_id = $2
	`, setID, userID); err != nil {
		log.Printf("setlist-service: delete set: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "set.deleted", map[string]any{"setId": setID})
	w.WriteHeader(http.StatusNoContent)
}
