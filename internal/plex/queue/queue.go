// Package queue drives the server-side download queue: the asynchronous,
// durable counterpart to a live transcode session. The server performs the
// same negotiation and transcoding but keeps the result around for later
// download, surviving client disconnects.
package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/plexfetch/plexfetch/internal/plex"
	"github.com/plexfetch/plexfetch/internal/plex/media"
	"github.com/plexfetch/plexfetch/internal/plex/transcode"
)

const (
	createPath       = "/downloadQueue"
	itemsPath        = "/downloadQueue/%d/items"
	addPath          = "/downloadQueue/%d/add"
	itemPath         = "/downloadQueue/%d/items/%d"
	itemDownloadPath = "/downloadQueue/%d/items/%d/download"
)

type queueSpec struct {
	ID               int64  `json:"id"`
	Owner            int64  `json:"owner,omitempty"`
	ClientIdentifier string `json:"clientIdentifier,omitempty"`
	ItemCount        int    `json:"itemCount,omitempty"`
	Status           string `json:"status,omitempty"`
}

type queueContainer struct {
	MediaContainer struct {
		Size   int         `json:"size,omitempty"`
		Queues []queueSpec `json:"DownloadQueue,omitempty"`
	} `json:"MediaContainer"`
}

type addedItem struct {
	Key string `json:"key"`
	ID  int64  `json:"id"`
}

type addedContainer struct {
	MediaContainer struct {
		Size  int         `json:"size,omitempty"`
		Items []addedItem `json:"AddedQueueItems,omitempty"`
	} `json:"MediaContainer"`
}

type itemsContainer struct {
	MediaContainer struct {
		Size  int         `json:"size,omitempty"`
		Items []itemState `json:"DownloadQueueItem,omitempty"`
	} `json:"MediaContainer"`
}

// DownloadQueue is a handle on a server-side download queue. The server keeps
// one queue per (user, client identifier) pair.
type DownloadQueue struct {
	client *plex.Client
	id     int64
}

// GetOrCreate fetches the download queue for the client's identity, creating
// it when none exists. The call is idempotent: creating a queue that already
// exists returns the existing one.
func GetOrCreate(ctx context.Context, client *plex.Client) (*DownloadQueue, error) {
	var wrapper queueContainer
	if err := client.Post(createPath).JSON(ctx, &wrapper); err != nil {
		return nil, err
	}
	queues := wrapper.MediaContainer.Queues
	if len(queues) == 0 {
		return nil, plex.ErrItemNotFound
	}
	return &DownloadQueue{client: client, id: queues[0].ID}, nil
}

// ID returns the server-assigned queue id.
func (q *DownloadQueue) ID() int64 { return q.id }

// Items lists the items currently in the queue.
func (q *DownloadQueue) Items(ctx context.Context) ([]*Item, error) {
	var wrapper itemsContainer
	if err := q.client.Get(fmt.Sprintf(itemsPath, q.id)).JSON(ctx, &wrapper); err != nil {
		return nil, err
	}

	items := make([]*Item, len(wrapper.MediaContainer.Items))
	for i, state := range wrapper.MediaContainer.Items {
		items[i] = &Item{client: q.client, state: state}
	}
	return items, nil
}

// Item fetches a single queue item by id.
func (q *DownloadQueue) Item(ctx context.Context, id int64) (*Item, error) {
	state, err := fetchItemState(ctx, q.client, q.id, id)
	if err != nil {
		return nil, err
	}
	return &Item{client: q.client, state: *state}, nil
}

// AddItem queues a media item for offline transcoding with the given options.
// Negative mediaIndex/partIndex let the server select the rendition and
// combine all parts.
//
// Adding the same item with the same options is idempotent: the server
// returns the pre-existing entry. The add response does not carry full item
// state, so the item is always re-fetched before being returned.
func (q *DownloadQueue) AddItem(ctx context.Context, metadata *media.Metadata, mediaIndex, partIndex int, opts transcode.Options) (*Item, error) {
	sessionID := uuid.NewString()

	params := transcode.Params(sessionID, transcode.ContextStatic, media.ProtocolHTTP, mediaIndex, partIndex, opts)
	params.Set("keys", metadata.Key)
	params.Set("path", metadata.Key)

	var wrapper addedContainer
	err := q.client.Post(fmt.Sprintf(addPath, q.id)).Query(params).JSON(ctx, &wrapper)
	if err != nil {
		return nil, err
	}

	// Item identity is discovered by matching the metadata key against the
	// returned entries.
	for _, added := range wrapper.MediaContainer.Items {
		if added.Key == metadata.Key {
			state, err := fetchItemState(ctx, q.client, q.id, added.ID)
			if err != nil {
				return nil, err
			}
			return &Item{client: q.client, state: *state}, nil
		}
	}
	return nil, plex.ErrItemNotFound
}

func fetchItemState(ctx context.Context, client *plex.Client, queueID, id int64) (*itemState, error) {
	var wrapper itemsContainer
	if err := client.Get(fmt.Sprintf(itemPath, queueID, id)).JSON(ctx, &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.MediaContainer.Items) == 0 {
		return nil, plex.ErrItemNotFound
	}
	return &wrapper.MediaContainer.Items[0], nil
}
