package setlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// errNotOwned collapses "row does not exist" and "row belongs to someone else"
// into one outcome, so a caller can never probe another user's ids.
var errNotOwned = errors.New("record not found for this user")

// Tables the ownership guard may be pointed at. Never pass request input here.
const (
	tableGigs   = "gigs"
	tableTracks = "tracks"
	tableSets   = "sets"
)

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// requireOwned is the single ownership lookup shared by every entity kind:
// fetch by id and owner together, report both miss cases as errNotOwned.
func requireOwned(ctx context.Context, q queryRower, table, id, userID string) error {
	if !validID(id) {
		return errNotOwned
	}
	var found string
	err := q.QueryRow(ctx, `SELECT id FROM `+table+` WHERE id = $1 AND user_id = $2`, id, userID).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotOwned
	}
	return err
}

// validID pre-checks path ids so that garbage input is a plain 404 instead of
// a uuid cast error out of Postgres.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// isUniqueViolation reports a Postgres duplicate-key error (code 23505), which
// is how a direct position write colliding with a live one surfaces.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
