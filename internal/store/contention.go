package store

import (
	"context"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const contentionAttempts = 3

// IsContention reports whether err is a transient sqlite lock error.
func IsContention(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func retryOnContention(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < contentionAttempts; attempt++ {
		if err = fn(); !IsContention(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		}
	}
	return err
}
