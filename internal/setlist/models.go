package setlist

import (
	"time"
)

// Gig is a performance event. GigDate is a calendar date (YYYY-MM-DD), not a
// timestamp; it stays nil when the date is not booked yet.
type Gig struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Venue     *string   `json:"venue"`
	GigDate   *string   `json:"gigDate"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Track is a catalog entry owned by one user. A track exists independently of
// any set; set_items reference it.
type Track struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Bpm        *int      `json:"bpm"`
	MusicalKey *string   `json:"musicalKey"`
	Energy     *string   `json:"energy"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Set is an ordered track list, optionally tied to the gig it was played at.
type Set struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	GigID     *string   `json:"gigId"`
	Name      string    `json:"name"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`

	Items []SetItem `json:"items,omitempty"`
}

// SetItem places one track into one set. Position is 0-based and unique within
// the set; gaps are fine after deletions, only relative order matters.
type SetItem struct {
	ID        string    `json:"id"`
	SetID     string    `json:"setId"`
	TrackID   string    `json:"trackId"`
	Position  int       `json:"position"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`

	Track *Track `json:"track,omitempty"`
}

// UsageEntry is one row of the "where has this track been played" query.
type UsageEntry struct {
	SetItemID string `json:"setItemId"`
	SetID     string `json:"setId"`
	SetName   string `json:"setName"`
	Position  int    `json:"position"`
	Gig       *Gig   `json:"gig"`
}
