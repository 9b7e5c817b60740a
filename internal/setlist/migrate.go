package setlist

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AutoMigrate creates the domain tables. The users table comes from the auth
// package and must exist first.
func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS gigs (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id     uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
          title       TEXT NOT NULL,
          venue       TEXT,
          gig_date    DATE,
          notes       TEXT,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		log.Printf("setlist-service: migrate gigs: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS tracks (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id     uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
          title       TEXT NOT NULL,
          artist      TEXT NOT NULL,
          bpm         INT,
          musical_key TEXT,
          energy      TEXT,
          notes       TEXT,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("setlist-service: migrate tracks: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS sets (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id     uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
          gig_id      uuid REFERENCES gigs(id) ON DELETE SET NULL,
          name        TEXT NOT NULL,
          notes       TEXT,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("setlist-service: migrate sets: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS set_items (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          set_id      uuid NOT NULL REFERENCES sets(id) ON DELETE CASCADE,
          track_id    uuid NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
          position    INT NOT NULL,
          notes       TEXT,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("setlist-service: migrate set_items: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_set_items_set_position
      ON set_items(set_id, position)
    `); err != nil {
		log.Printf("setlist-service: migrate set_items index: %v", err)
		return err
	}

	return nil
}
