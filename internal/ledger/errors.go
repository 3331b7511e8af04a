package ledger

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrValidation          = errors.New("ledger: validation failed")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrWalletLimitExceeded = errors.New("ledger: income wallet limit exceeded")
	ErrWalletNotFound      = errors.New("ledger: wallet not found")
	ErrTransientStore      = errors.New("ledger: transient store error")
)

var transientSignatures = []string{
	"deadlock",
	"timeout",
	"timed out",
	"connection",
	"database is locked",
	"could not serialize",
}

// IsTransient reports whether err looks like a store condition that may
// succeed on a fresh attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientStore) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40P01", "40001", "57014", "55P03":
			return true
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
