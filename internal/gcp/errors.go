package gcp

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrConfigurationMissing means no credentials or target were configured.
	ErrConfigurationMissing = errors.New("remote persistence is not configured")
	// ErrRemoteWriteFailed covers network, auth and quota failures of the remote store.
	ErrRemoteWriteFailed = errors.New("remote write failed")
	// ErrMalformedSheetState means the header row was wrong and could not be repaired.
	ErrMalformedSheetState = errors.New("sheet header is malformed")
)

// remoteError wraps err as ErrRemoteWriteFailed, keeping the API status when there is one.
// Auth and not-found statuses also match ErrConfigurationMissing: retrying cannot fix them.
func remoteError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w (status %d, %w): %w", op, ErrRemoteWriteFailed, gerr.Code, ErrConfigurationMissing, err)
		}
		return fmt.Errorf("%s: %w (status %d): %w", op, ErrRemoteWriteFailed, gerr.Code, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteWriteFailed, err)
}
