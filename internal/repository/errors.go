package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrOpenSessionExists is returned when the single-open-session index rejects an insert.
	ErrOpenSessionExists = errors.New("an open cash session already exists")
	// ErrAlreadySettled is returned when a settlement flag was already set by someone else.
	ErrAlreadySettled = errors.New("settlement flag already set")
	// ErrStaleState is returned when a conditional update matched no row.
	ErrStaleState = errors.New("row changed state concurrently")
)

const pgUniqueViolation = "23505"

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
