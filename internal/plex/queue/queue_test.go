package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/plexfetch/plexfetch/internal/plex"
	"github.com/plexfetch/plexfetch/internal/plex/media"
)

func newTestClient(t *testing.T, server *httptest.Server) *plex.Client {
	t.Helper()
	client, err := plex.NewClient(server.URL, plex.WithToken("test-token"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

const queueCreated = `{"MediaContainer": {"size": 1, "DownloadQueue": [
	{"id": 7, "owner": 1, "clientIdentifier": "stable-id", "itemCount": 0, "status": "active"}
]}}`

func itemJSON(status ItemStatus) string {
	return fmt.Sprintf(`{
		"id": 33,
		"queueId": 7,
		"key": "/library/metadata/159637",
		"status": %q,
		"transcode": null,
		"DecisionResult": {"generalDecisionCode": 1001, "generalDecisionText": "Direct play not available; Conversion OK."}
	}`, status)
}

func TestGetOrCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/downloadQueue" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(queueCreated))
	}))
	defer server.Close()

	dq, err := GetOrCreate(context.Background(), newTestClient(t, server))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if dq.ID() != 7 {
		t.Errorf("ID() = %d, want 7", dq.ID())
	}
}

func TestGetOrCreate_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer": {"size": 0}}`))
	}))
	defer server.Close()

	_, err := GetOrCreate(context.Background(), newTestClient(t, server))
	if !errors.Is(err, plex.ErrItemNotFound) {
		t.Errorf("error = %v, want ErrItemNotFound", err)
	}
}

func TestDownloadQueue_Items(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/downloadQueue/7/items" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"MediaContainer": {"size": 1, "DownloadQueueItem": [%s]}}`,
			itemJSON(StatusWaiting))
	}))
	defer server.Close()

	dq := &DownloadQueue{client: newTestClient(t, server), id: 7}
	items, err := dq.Items(context.Background())
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Items() len = %d, want 1", len(items))
	}

	item := items[0]
	if item.ID() != 33 || item.QueueID() != 7 {
		t.Errorf("item ids = %d/%d, want 33/7", item.ID(), item.QueueID())
	}
	if item.Key() != "/library/metadata/159637" {
		t.Errorf("Key() = %q", item.Key())
	}
	if item.Status() != StatusWaiting {
		t.Errorf("Status() = %q, want waiting", item.Status())
	}
	if !item.IsTranscode() {
		t.Error("IsTranscode() = false without a direct play decision")
	}
}

func TestDownloadQueue_Items_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer": {"size": 0}}`))
	}))
	defer server.Close()

	dq := &DownloadQueue{client: newTestClient(t, server), id: 7}
	items, err := dq.Items(context.Background())
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Items() len = %d, want 0", len(items))
	}
}

func TestDownloadQueue_AddItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/downloadQueue/7/add":
			q := r.URL.Query()
			if q.Get("keys") != "/library/metadata/159637" || q.Get("path") != "/library/metadata/159637" {
				t.Errorf("keys/path = %q/%q", q.Get("keys"), q.Get("path"))
			}
			if q.Get("context") != "static" || q.Get("protocol") != "http" {
				t.Errorf("context/protocol = %q/%q", q.Get("context"), q.Get("protocol"))
			}
			if q.Get("mediaIndex") != "all" || q.Get("partIndex") != "all" {
				t.Errorf("indices = %q/%q, want all/all", q.Get("mediaIndex"), q.Get("partIndex"))
			}
			if !strings.Contains(q.Get("X-Plex-Client-Profile-Extra"), "add-transcode-target(") {
				t.Errorf("profile extra = %q", q.Get("X-Plex-Client-Profile-Extra"))
			}
			w.Write([]byte(`{"MediaContainer": {"size": 1, "AddedQueueItems": [
				{"key": "/library/metadata/159637", "id": 33}
			]}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/downloadQueue/7/items/33":
			fmt.Fprintf(w, `{"MediaContainer": {"size": 1, "DownloadQueueItem": [%s]}}`,
				itemJSON(StatusDeciding))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dq := &DownloadQueue{client: newTestClient(t, server), id: 7}
	item, err := dq.AddItem(context.Background(), testMetadata(), -1, -1, testOptions())
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	// The add response carries no state; the item must come from a re-fetch.
	if item.ID() != 33 || item.Status() != StatusDeciding {
		t.Errorf("item = id %d status %q, want 33/deciding", item.ID(), item.Status())
	}
}

func TestDownloadQueue_AddItem_Idempotent(t *testing.T) {
	// Re-adding an item returns the pre-existing entry with the same id.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/downloadQueue/7/add":
			w.Write([]byte(`{"MediaContainer": {"size": 1, "AddedQueueItems": [
				{"key": "/library/metadata/159637", "id": 33}
			]}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/downloadQueue/7/items/33":
			fmt.Fprintf(w, `{"MediaContainer": {"size": 1, "DownloadQueueItem": [%s]}}`,
				itemJSON(StatusWaiting))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dq := &DownloadQueue{client: newTestClient(t, server), id: 7}
	first, err := dq.AddItem(context.Background(), testMetadata(), -1, -1, testOptions())
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	second, err := dq.AddItem(context.Background(), testMetadata(), -1, -1, testOptions())
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if first.ID() != second.ID() {
		t.Errorf("ids differ across adds: %d vs %d", first.ID(), second.ID())
	}
}

func TestDownloadQueue_AddItem_KeyNotReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer": {"size": 1, "AddedQueueItems": [
			{"key": "/library/metadata/999", "id": 99}
		]}}`))
	}))
	defer server.Close()

	dq := &DownloadQueue{client: newTestClient(t, server), id: 7}
	_, err := dq.AddItem(context.Background(), testMetadata(), -1, -1, testOptions())
	if !errors.Is(err, plex.ErrItemNotFound) {
		t.Errorf("error = %v, want ErrItemNotFound", err)
	}
}

func TestDownloadQueue_EndToEnd(t *testing.T) {
	// One fixture server drives the whole flow: acquire the queue, observe it
	// empty, add an item, watch it progress to available through successive
	// updates, probe the container, download, delete, observe it empty again.
	var (
		statuses = []ItemStatus{StatusDeciding, StatusWaiting, StatusProcessing, StatusAvailable}
		fetches  = 0
		added    = false
		deleted  = false
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/downloadQueue":
			w.Write([]byte(queueCreated))
		case r.Method == http.MethodGet && r.URL.Path == "/downloadQueue/7/items":
			if !added || deleted {
				w.Write([]byte(`{"MediaContainer": {"size": 0}}`))
				return
			}
			fmt.Fprintf(w, `{"MediaContainer": {"size": 1, "DownloadQueueItem": [%s]}}`,
				itemJSON(statuses[len(statuses)-1]))
		case r.Method == http.MethodPost && r.URL.Path == "/downloadQueue/7/add":
			added = true
			w.Write([]byte(`{"MediaContainer": {"size": 1, "AddedQueueItems": [
				{"key": "/library/metadata/159637", "id": 33}
			]}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/downloadQueue/7/items/33":
			status := statuses[fetches]
			if fetches < len(statuses)-1 {
				fetches++
			}
			fmt.Fprintf(w, `{"MediaContainer": {"size": 1, "DownloadQueueItem": [%s]}}`,
				itemJSON(status))
		case r.Method == http.MethodHead && r.URL.Path == "/downloadQueue/7/items/33/download":
			w.Header().Set("Content-Disposition", `attachment; filename="Interstate 60.mp4"`)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Path == "/downloadQueue/7/items/33/download":
			w.Write([]byte("transcoded bytes"))
		case r.Method == http.MethodDelete && r.URL.Path == "/downloadQueue/7/items/33":
			deleted = true
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	dq, err := GetOrCreate(ctx, newTestClient(t, server))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	items, err := dq.Items(ctx)
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("fresh queue has %d items, want 0", len(items))
	}

	item, err := dq.AddItem(ctx, testMetadata(), -1, -1, testOptions())
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if item.QueueID() != dq.ID() {
		t.Errorf("item queue id = %d, want %d", item.QueueID(), dq.ID())
	}
	if item.Status() != StatusDeciding {
		t.Errorf("initial status = %q, want deciding", item.Status())
	}

	for _, want := range statuses[1:] {
		if err := item.Update(ctx); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if item.Status() != want {
			t.Fatalf("Status() = %q, want %q", item.Status(), want)
		}
	}

	container, err := item.Container(ctx)
	if err != nil {
		t.Fatalf("Container() error = %v", err)
	}
	if container != media.ContainerMP4 {
		t.Errorf("Container() = %q, want mp4", container)
	}

	var buf strings.Builder
	if err := item.Download(ctx, &buf, ByteRange{}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if buf.String() != "transcoded bytes" {
		t.Errorf("downloaded %q", buf.String())
	}

	if err := item.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	items, err = dq.Items(ctx)
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("queue has %d items after delete, want 0", len(items))
	}
}

func TestDownloadQueue_Item_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dq := &DownloadQueue{client: newTestClient(t, server), id: 7}
	_, err := dq.Item(context.Background(), 99)
	if !errors.Is(err, plex.ErrItemNotFound) {
		t.Errorf("error = %v, want ErrItemNotFound", err)
	}
}
