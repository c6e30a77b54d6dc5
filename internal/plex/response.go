package plex

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
)

// Response wraps a server response. Exactly one of the consuming methods
// (JSON, XML, CopyTo, Consume) or Close must be called to release the
// connection and the request's timeout timer.
type Response struct {
	StatusCode int
	Header     http.Header

	body   io.ReadCloser
	cancel func()
	strict bool
}

func (r *Response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into out and closes the response.
func (r *Response) JSON(out any) error {
	defer r.Close()

	dec := json.NewDecoder(r.body)
	if r.strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(out)
}

// XML decodes the body into out and closes the response.
func (r *Response) XML(out any) error {
	defer r.Close()
	return xml.NewDecoder(r.body).Decode(out)
}

// CopyTo streams the body to w and closes the response. It returns the number
// of bytes written.
func (r *Response) CopyTo(w io.Writer) (int64, error) {
	defer r.Close()
	return io.Copy(w, r.body)
}

// Bytes reads the full body and closes the response.
func (r *Response) Bytes() ([]byte, error) {
	defer r.Close()
	return io.ReadAll(r.body)
}

// Consume discards the body so the connection can be reused.
func (r *Response) Consume() error {
	defer r.Close()
	_, err := io.Copy(io.Discard, r.body)
	return err
}

// Close releases the response without reading the body.
func (r *Response) Close() error {
	err := r.body.Close()
	r.cancel()
	return err
}
