package plex

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Common errors returned by the Plex client and the packages built on top of it.
var (
	// ErrItemNotFound is returned when the server reports a session, queue or
	// queue item as missing. Sessions and completed transcodes expire
	// server-side, so callers should expect this after long delays.
	ErrItemNotFound = errors.New("item not found on the server")

	// ErrTranscodeRefused is returned when the server declines to transcode the
	// requested item at all.
	ErrTranscodeRefused = errors.New("the server refused to transcode")

	// ErrTranscodeIncomplete is returned when a download or probe is attempted
	// before the server has finished transcoding. Wait and retry.
	ErrTranscodeIncomplete = errors.New("the transcode is not yet complete")

	// ErrSubscriptionRequired is returned when the server rejects an offline
	// transcode because the account lacks the downloads feature.
	ErrSubscriptionRequired = errors.New("downloads are not allowed for this account")

	// ErrInvalidHeader is returned when a response header required by the
	// protocol is missing or unparseable.
	ErrInvalidHeader = errors.New("invalid header value in server response")
)

// UnexpectedResponseError is returned when the server responds with a status
// code and body combination the client does not know how to interpret. The raw
// body is kept for diagnostics.
type UnexpectedResponseError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected server response: status %d: %s", e.StatusCode, e.Body)
}

// UnknownContainerError is returned when the server reports a container format
// this client does not recognise.
type UnknownContainerError struct {
	Format string
}

func (e *UnknownContainerError) Error() string {
	return fmt.Sprintf("unknown container format %q", e.Format)
}

// TranscodeError carries the server's human-readable reason for failing a
// negotiation.
type TranscodeError struct {
	Reason string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode error: %s", e.Reason)
}

// maxErrorBody bounds how much of an error response body is retained for
// diagnostics.
const maxErrorBody = 8 << 10

// ResponseError consumes the response and converts it into an error. A 404 is
// normalized to ErrItemNotFound since the server expires sessions and queue
// items; everything else becomes an UnexpectedResponseError carrying the
// status and raw body.
func ResponseError(resp *Response) error {
	defer resp.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrItemNotFound
	}

	body, _ := io.ReadAll(io.LimitReader(resp.body, maxErrorBody))
	return &UnexpectedResponseError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
