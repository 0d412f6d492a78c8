package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pinmehq/toybox/internal/model"
)

type ToyStore struct {
	db *sql.DB
}

func NewToyStore(db *sql.DB) *ToyStore {
	return &ToyStore{db: db}
}

const toyCols = `id, name, owner, status, photo_url, location, created_at, updated_at`

func scanToy(scanner interface{ Scan(...any) error }) (*model.Toy, error) {
	var t model.Toy
	var owner sql.NullString

	err := scanner.Scan(&t.ID, &t.Name, &owner, &t.Status, &t.PhotoURL, &t.Location, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		t.Owner = &owner.String
	}
	return &t, nil
}

func (s *ToyStore) Create(name string, owner *string, photoURL, location string) (*model.Toy, error) {
	var o sql.NullString
	if owner != nil {
		o = sql.NullString{String: *owner, Valid: true}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO toys (id, name, owner, status, photo_url, location, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, o, model.ToyStatusIn, photoURL, location, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert toy: %w", err)
	}
	return s.GetByID(id)
}

func (s *ToyStore) GetByID(id string) (*model.Toy, error) {
	row := s.db.QueryRow(`SELECT `+toyCols+` FROM toys WHERE id = ?`, id)
	t, err := scanToy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get toy: %w", err)
	}
	return t, nil
}

func (s *ToyStore) List() ([]model.Toy, error) {
	rows, err := s.db.Query(`SELECT ` + toyCols + ` FROM toys ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list toys: %w", err)
	}
	defer rows.Close()
	return collectToys(rows)
}

func (s *ToyStore) ListByStatus(status string) ([]model.Toy, error) {
	rows, err := s.db.Query(`SELECT `+toyCols+` FROM toys WHERE status = ? ORDER BY name ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("list toys by status: %w", err)
	}
	defer rows.Close()
	return collectToys(rows)
}

// UpdateStatus flips a toy between "in" and "out" and bumps updated_at.
// Returns the post-update row.
func (s *ToyStore) UpdateStatus(id, status string) (*model.Toy, error) {
	_, err := s.db.Exec(
		`UPDATE toys SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update toy status: %w", err)
	}
	return s.GetByID(id)
}

func (s *ToyStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM toys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete toy: %w", err)
	}
	return nil
}

func collectToys(rows *sql.Rows) ([]model.Toy, error) {
	var toys []model.Toy
	for rows.Next() {
		t, err := scanToy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan toy: %w", err)
		}
		toys = append(toys, *t)
	}
	return toys, rows.Err()
}
