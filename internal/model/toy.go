package model

import "time"

// Toy status values. A toy is "in" when it sits in the toy box and "out"
// while it is being played with.
const (
	ToyStatusIn  = "in"
	ToyStatusOut = "out"
)

type Toy struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     *string   `json:"owner,omitempty"`
	Status    string    `json:"status"`
	PhotoURL  string    `json:"photo_url"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaySession is one RFID/NFC scan of a toy. Sessions are append-only; the
// reminder engines only ever read the most recent scan per toy.
type PlaySession struct {
	ID       int64     `json:"id"`
	ToyID    string    `json:"toy_id"`
	ScanTime time.Time `json:"scan_time"`
}
