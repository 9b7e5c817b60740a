package setlist

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func setRow(now time.Time, gigID *string) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = testSetID
		*dest[1].(*string) = testUserID
		if gigID != nil {
			g := *gigID
			*dest[2].(**string) = &g
		}
		*dest[3].(*string) = "Saturday Night"
		*dest[5].(*time.Time) = now
		return nil
	}
}

func TestHandleCreateSet(t *testing.T) {
	mockDB := &MockDB{}
	srv := NewServer(mockDB, nil)
	r := chi.NewRouter()
	r.Post("/sets", srv.handleCreateSet)

	gig := testGigID
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		if strings.Contains(sql, "SELECT id FROM gigs") {
			return &MockRow{ScanFunc: func(dest ...any) error {
				*dest[0].(*string) = testGigID
				return nil
			}}
		}
		return &MockRow{ScanFunc: setRow(time.Now(), &gig)}
	}

	body, _ := json.Marshal(map[string]any{"name": "Saturday Night", "gigId": testGigID})
	req := httptest.NewRequest("POST", "/sets", bytes.NewReader(body))
	req.Header.Set("X-User-Id", testUserID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", w.Code, w.Body.String())
	}
	var st Set
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if st.GigID == nil || *st.GigID != testGigID {
		t.Errorf("gigId = %v, want %s", st.GigID, testGigID)
	}
}

func TestHandleCreateSet_ForeignGig(t *testing.T) {
	mockDB := &MockDB{}
	srv := NewServer(mockDB, nil)
	r := chi.NewRouter()
	r.Post("/sets", srv.handleCreateSet)

	// Linking a set to a gig the user does not own reads as "no such gig".
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	}

	body, _ := json.Marshal(map[string]any{"name": "Saturday Night", "gigId": testGigID})
	req := httptest.NewRequest("POST", "/sets", bytes.NewReader(body))
	req.Header.Set("X-User-Id", testUserID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d. Body: %s", w.Code, w.Body.String())
	}
}

func TestHandleCreateSet_MissingName(t *testing.T) {
	mockDB := &MockDB{}
	srv := NewServer(mockDB, nil)
	r := chi.NewRouter()
	r.Post("/sets", srv.handleCreateSet)

	req := httptest.NewRequest("POST", "/sets", strings.NewReader(`{"name": "  "}`))
	req.Header.Set("X-User-Id", testUserID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d. Body: %s", w.Code, w.Body.String())
	}
}

func TestHandleGetSet_EmbedsItems(t *testing.T) {
	mockDB := &MockDB{}
	srv := NewServer(mockDB, nil)
	r := chi.NewRouter()
	r.Get("/sets/{id}", srv.handleGetSet)

	now := time.Now()
	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &MockRow{ScanFunc: setRow(now, nil)}
	}
	mockDB.QueryFunc = func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		return &MockRows{Idx: -1, Data: [][]any{
			{itemA, testSetID, testTrackID, 0, nil, now,
				testTrackID, testUserID, "Song", "Artist", nil, nil, nil, nil, now},
		}}, nil
	}

	req := httptest.NewRequest("GET", "/sets/"+testSetID, nil)
	req.Header.Set("X-User-Id", testUserID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	var st Set
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(st.Items) != 1 || st.Items[0].ID != itemA {
		t.Errorf("expected embedded item %s, got %+v", itemA, st.Items)
	}
}

func TestHandlePatchSet(t *testing.T) {
	gig := testGigID
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, args []any)
	}{
		{
			"Rename Keeps Gig", `{"name": "Renamed"}`, http.StatusOK,
			func(t *testing.T, args []any) {
				if g, ok := args[1].(*string); !ok || g == nil || *g != testGigID {
					t.Errorf("gig_id arg = %v, want preserved %s", args[1], testGigID)
				}
				if args[2] != "Renamed" {
					t.Errorf("name arg = %v", args[2])
				}
			},
		},
		{
			"Null Gig Unlinks", `{"gigId": null}`, http.StatusOK,
			func(t *testing.T, args []any) {
				if args[1] != (*string)(nil) {
					t.Errorf("gig_id arg = %v, want nil", args[1])
				}
			},
		},
		{"Null Name Rejected", `{"name": null}`, http.StatusBadRequest, nil},
		{"Blank Name Rejected", `{"name": ""}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &MockDB{}
			srv := NewServer(mockDB, nil)
			r := chi.NewRouter()
			r.Patch("/sets/{id}", srv.handlePatchSet)

			var updateArgs []any
			mockTx := &MockTx{}
			mockTx.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
				return &MockRow{ScanFunc: setRow(time.Now(), &gig)}
			}
			mockTx.ExecFunc = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
				updateArgs = args
				return pgconn.CommandTag{}, nil
			}
			mockDB.BeginTxFunc = func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
				return mockTx, nil
			}

			req := httptest.NewRequest("PATCH", "/sets/"+testSetID, strings.NewReader(tt.body))
			req.Header.Set("X-User-Id", testUserID)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d. Body: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, updateArgs)
			}
			if tt.wantStatus != http.StatusOK && updateArgs != nil {
				t.Error("expected no update for rejected body")
			}
		})
	}
}

func TestHandlePatchSet_ForeignGig(t *testing.T) {
	mockDB := &MockDB{}
	srv := NewServer(mockDB, nil)
	r := chi.NewRouter()
	r.Patch("/sets/{id}", srv.handlePatchSet)

	mockDB.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return &MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	began := false
	mockDB.BeginTxFunc = func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
		began = true
		return &MockTx{}, nil
	}

	body := []byte(`{"gigId": "` + testGigID + `"}`)
	req := httptest.NewRequest("PATCH", "/sets/"+testSetID, bytes.NewReader(body))
	req.Header.Set("X-User-Id", testUserID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d. Body: %s", w.Code, w.Body.String())
	}
	if began {
		t.Error("expected gig ownership rejection before the transaction starts")
	}
}

func TestHandleDeleteSet(t *testing.T) {
	mockDB := &MockDB{}
	srv := NewServer(mockDB, nil)
	r := chi.NewRouter()
	r.Delete("/sets/{id}", srv.handleDeleteSet)

	mockDB.QueryRowFunc = ownedSetQueryRow(t)
	var deleteSQL string
	mockDB.ExecFunc = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		deleteSQL = sql
		return pgconn.NewCommandTag("DELETE 1"), nil
	}

	req := httptest.NewRequest("DELETE", "/sets/"+testSetID, nil)
	req.Header.Set("X-User-Id", testUserID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d. Body: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(deleteSQL, "DELETE FROM sets") {
		t.Errorf("unexpected delete statement:\n%s", deleteSQL)
	}
}
