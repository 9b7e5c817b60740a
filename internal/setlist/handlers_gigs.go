package setlist

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

const gigColumns = `id, user_id, title, venue, to_char(gig_date, 'YYYY-MM-DD'), notes, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGig(row rowScanner) (Gig, error) {
	var g Gig
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Venue, &g.GigDate, &g.Notes, &g.CreatedAt)
	return g, err
}

// parseGigDate validates an ISO calendar date and normalizes it.
func parseGigDate(s string) (string, bool) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", false
	}
	return d.Format("2006-01-02"), true
}

func (s *Server) handleListGigs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+gigColumns+`
		FROM gigs
		WHERE user_id = $1
		ORDER BY gig_date DESC NULLS LAST, created_at DESC
	`, userID)
	if err != nil {
		log.Printf("setlist-service: list gigs: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	gigs := []Gig{}
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			log.Printf("setlist-service: scan gig: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		gigs = append(gigs, g)
	}
	if err := rows.Err(); err != nil {
		log.Printf("setlist-service: list gigs rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"gigs": gigs})
}

func (s *Server) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Title   string  `json:"title"`
		Venue   string  `json:"venue"`
		GigDate string  `json:"gigDate"`
		Notes   *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	title := strings.TrimSpace(body.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	var venue *string
	if v := strings.TrimSpace(body.Venue); v != "" {
		venue = &v
	}

	var gigDate *string
	if strings.TrimSpace(body.GigDate) != "" {
		d, ok := parseGigDate(strings.TrimSpace(body.GigDate))
		if !ok {
			writeError(w, http.StatusBadRequest, "gigDate must be ISO format YYYY-MM-DD")
			return
		}
		gigDate = &d
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO gigs (user_id, title, venue, gig_date, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+gigColumns+`
	`, userID, title, venue, gigDate, body.Notes)
	g, err := scanGig(row)
	if err != nil {
		log.Printf("setlist-service: create gig: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "gig.created", map[string]any{"gig": g})
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	gigID := chi.URLParam(r, "id")
	if !validID(gigID) {
		writeError(w, http.StatusNotFound, "gig not found")
		return
	}

	row := s.db.QueryRow(ctx, `
		SELECT `+gigColumns+`
		FROM gigs
		WHERE id = $1 AND user_id = $2
	`, gigID, userID)
	g, err := scanGig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "gig not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: get gig: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handlePatchGig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	gigID := chi.URLParam(r, "id")
	if !validID(gigID) {
		writeError(w, http.StatusNotFound, "gig not found")
		return
	}

	var body struct {
		Title   Optional[string] `json:"title"`
		Venue   Optional[string] `json:"venue"`
		GigDate Optional[string] `json:"gigDate"`
		Notes   Optional[string] `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("setlist-service: patch gig begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+gigColumns+`
		FROM gigs
		WHERE id = $1 AND user_id = $2
	`, gigID, userID)
	existing, err := scanGig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "gig not found")
		return
	}
	if err != nil {
		log.Printf("setlist-service: patch gig fetch: %v", err)
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
	if body.Venue.Set {
		if v := strings.TrimSpace(body.Venue.Value); body.Venue.Valid && v != "" {
			existing.Venue = &v
		} else {
			existing.Venue = nil
		}
	}
	if body.GigDate.Set {
		if d := strings.TrimSpace(body.GigDate.Value); body.GigDate.Valid && d != "" {
			parsed, ok := parseGigDate(d)
			if !ok {
				writeError(w, http.StatusBadRequest, "gigDate must be ISO format YYYY-MM-DD")
				return
			}
			existing.GigDate = &parsed
		} else {
			existing.GigDate = nil
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
		UPDATE gigs
		SET title = $2,
			venue = $3,
			gig_date = $4,
			notes = $5
		WHERE id = $1
	`, existing.ID, existing.Title, existing.Venue, existing.GigDate, existing.Notes)
	if err != nil {
		log.Printf("setlist-service: patch gig update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("setlist-service: patch gig commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "gig.updated", map[string]any{"gig": existing})
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteGig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	gigID := chi.URLParam(r, "id")
	if err := requireOwned(ctx, s.db, tableGigs, gigID, userID); err != nil {
		if errors.Is(err, errNotOwned) {
			writeError(w, http.StatusNotFound, "gig not found")
			return
		}
		log.Printf("setlist-service: delete gig lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := s.db.Exec(ctx, `
		DELETE FROM gigs
		WHERE id = $1 AND user_id = $2
	`, gigID, userID); err != nil {
		log.Printf("setlist-service: delete gig: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "gig.deleted", map[string]any{"gigId": gigID})
	w.WriteHeader(http.StatusNoContent)
}
