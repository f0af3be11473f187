package steam

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingData is wrapped when an upstream payload lacks the field an
// operation returns.
var ErrMissingData = errors.New("missing data in upstream response")

// UpstreamError describes a failed Steam call. StatusCode is zero when the
// request never produced an HTTP response.
type UpstreamError struct {
	Op         string
	ID         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString("steam api request failed for ")
	b.WriteString(e.Op)
	if e.ID != "" {
		b.WriteString(" ")
		b.WriteString(e.ID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StatusCode reports the upstream HTTP status carried by err, if any.
func StatusCode(err error) int {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode
	}
	return 0
}
