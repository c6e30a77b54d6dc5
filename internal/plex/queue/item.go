package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/plexfetch/plexfetch/internal/plex"
	"github.com/plexfetch/plexfetch/internal/plex/media"
	"github.com/plexfetch/plexfetch/internal/plex/transcode"
)

// ItemStatus is the lifecycle state of a queue item. Items progress
// deciding -> waiting -> processing and then end at available, error or
// expired.
type ItemStatus string

const (
	// StatusDeciding: the server is deciding whether to transcode the item.
	StatusDeciding ItemStatus = "deciding"
	// StatusWaiting: the item is queued behind other work.
	StatusWaiting ItemStatus = "waiting"
	// StatusProcessing: the item is being transcoded; live stats are attached.
	StatusProcessing ItemStatus = "processing"
	// StatusAvailable: the rendition (transcoded or original) is ready.
	StatusAvailable ItemStatus = "available"
	// StatusError: the transcode failed. Terminal.
	StatusError ItemStatus = "error"
	// StatusExpired: a completed rendition aged out of server storage. Terminal.
	StatusExpired ItemStatus = "expired"
)

type itemState struct {
	ID      int64      `json:"id"`
	QueueID int64      `json:"queueId"`
	Key     string     `json:"key"`
	Status  ItemStatus `json:"status"`
	Error   string     `json:"error,omitempty"`
	// The API docs call this the transcode session object but in practice it
	// is always null; the real stats arrive under TranscodeSession.
	Transcode      json.RawMessage          `json:"transcode,omitempty"`
	DecisionResult transcode.DecisionResult `json:"DecisionResult"`
	SessionStats   *transcode.SessionStats  `json:"TranscodeSession,omitempty"`
}

// Item is one entry in a download queue. Its state is a snapshot; call Update
// to observe transitions. The server pushes nothing, so polling cadence is
// entirely up to the caller.
type Item struct {
	client *plex.Client
	state  itemState
}

// ID returns the item id. Item identity is the (queue id, item id) pair.
func (i *Item) ID() int64 { return i.state.ID }

// QueueID returns the id of the queue holding this item.
func (i *Item) QueueID() int64 { return i.state.QueueID }

// Key returns the metadata key of the queued media.
func (i *Item) Key() string { return i.state.Key }

// Status returns the item's lifecycle state as of the last fetch.
func (i *Item) Status() ItemStatus { return i.state.Status }

// ErrorMessage returns the server's error text when Status is StatusError.
func (i *Item) ErrorMessage() string { return i.state.Error }

// Stats returns the live transcode stats while the item is processing, nil
// otherwise.
func (i *Item) Stats() *transcode.SessionStats { return i.state.SessionStats }

// IsTranscode reports whether the item was or is being transcoded. When
// false, downloading yields the original media file.
func (i *Item) IsTranscode() bool {
	return !i.state.DecisionResult.DirectPlaySelected()
}

// Update re-fetches the item's state from the server, replacing the local
// snapshot. This is the only way state transitions become visible.
func (i *Item) Update(ctx context.Context) error {
	state, err := fetchItemState(ctx, i.client, i.state.QueueID, i.state.ID)
	if err != nil {
		return err
	}
	i.state = *state
	return nil
}

func (i *Item) downloadPath() string {
	return fmt.Sprintf(itemDownloadPath, i.state.QueueID, i.state.ID)
}

// Container returns the container format of the file a download would
// produce. Returns plex.ErrTranscodeIncomplete until the item is available.
//
// The stats endpoint stops exposing the container once transcoding completes,
// so it is recovered from the filename in the download endpoint's
// Content-Disposition header instead.
func (i *Item) Container(ctx context.Context) (media.ContainerFormat, error) {
	resp, err := i.client.Head(i.downloadPath()).Send(ctx)
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		header := resp.Header.Get("Content-Disposition")
		if err := resp.Consume(); err != nil {
			return "", err
		}
		if header == "" {
			return "", plex.ErrInvalidHeader
		}
		_, params, err := mime.ParseMediaType(header)
		if err != nil {
			return "", plex.ErrInvalidHeader
		}
		filename := params["filename"]
		ext := path.Ext(filename)
		if ext == "" {
			return "", plex.ErrInvalidHeader
		}
		return media.ParseContainerFormat(ext)
	case http.StatusServiceUnavailable:
		_ = resp.Consume()
		return "", plex.ErrTranscodeIncomplete
	default:
		return "", plex.ResponseError(resp)
	}
}

// ContentLength probes the expected download size. Returns -1 when the
// server does not report a usable length; that is not an error. Returns
// plex.ErrTranscodeIncomplete until the item is available.
func (i *Item) ContentLength(ctx context.Context) (int64, error) {
	resp, err := i.client.Head(i.downloadPath()).Send(ctx)
	if err != nil {
		return -1, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		header := resp.Header.Get("Content-Length")
		if err := resp.Consume(); err != nil {
			return -1, err
		}
		length, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			return -1, nil
		}
		return length, nil
	case http.StatusServiceUnavailable:
		_ = resp.Consume()
		return -1, plex.ErrTranscodeIncomplete
	default:
		return -1, plex.ResponseError(resp)
	}
}

// ByteRange selects a slice of the download. Start is the first byte offset;
// End, when positive, is the exclusive end offset. The zero value requests
// the whole file.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) isFull() bool {
	return r.Start <= 0 && r.End <= 0
}

func (r ByteRange) header() string {
	end := ""
	if r.End > 0 {
		end = strconv.FormatInt(r.End-1, 10)
	}
	return fmt.Sprintf("bytes=%d-%s", r.Start, end)
}

// Download streams the item's data to w. The timeout is disabled: media files
// are large and server-side latency is unknown. Returns
// plex.ErrTranscodeIncomplete until the item is available.
func (i *Item) Download(ctx context.Context, w io.Writer, byteRange ByteRange) error {
	req := i.client.Get(i.downloadPath()).NoTimeout()
	if !byteRange.isFull() {
		req = req.Header("Range", byteRange.header())
	}

	resp, err := req.Send(ctx)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		_, err := resp.CopyTo(w)
		return err
	case http.StatusServiceUnavailable:
		_ = resp.Consume()
		return plex.ErrTranscodeIncomplete
	default:
		return plex.ResponseError(resp)
	}
}

// Delete removes the item from its queue. The queue itself remains, even when
// emptied.
func (i *Item) Delete(ctx context.Context) error {
	resp, err := i.client.Delete(fmt.Sprintf(itemPath, i.state.QueueID, i.state.ID)).Send(ctx)
	if err != nil {
		return err
	}
	return resp.Consume()
}
