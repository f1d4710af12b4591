package instagram

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAccessToken is returned when a token endpoint answers 200 without a token.
	ErrNoAccessToken = errors.New("no access token in response")

	// ErrUnknownMediaType is returned by ParseMediaType for unsupported values.
	ErrUnknownMediaType = errors.New("unknown media type")
)

// UpstreamError is a non-200 response from an Instagram endpoint. The relay
// forwards Status and Body to its own caller.
type UpstreamError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Status, truncate(string(e.Body), 300))
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
