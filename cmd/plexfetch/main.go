// plexfetch queues media on a Plex server's download queue, waits for the
// server-side transcode to finish and downloads the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/plexfetch/plexfetch/internal/config"
	"github.com/plexfetch/plexfetch/internal/database"
	"github.com/plexfetch/plexfetch/internal/history"
	"github.com/plexfetch/plexfetch/internal/logger"
	"github.com/plexfetch/plexfetch/internal/plex"
	"github.com/plexfetch/plexfetch/internal/plex/media"
	"github.com/plexfetch/plexfetch/internal/plex/queue"
	"github.com/plexfetch/plexfetch/internal/plex/transcode"
)

// Polling cadence while waiting on the server. The server pushes nothing;
// state transitions are only visible through re-fetches.
const (
	pollPending    = 200 * time.Millisecond
	pollProcessing = time.Second
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		key         = flag.String("key", "", "metadata key of the item to download, e.g. /library/metadata/159637")
		list        = flag.Bool("list", false, "list the current queue items and exit")
		clear       = flag.Bool("clear", false, "delete all queue items and exit")
		showHistory = flag.Bool("history", false, "print download history and exit")
		music       = flag.Bool("music", false, "treat the item as a music track")
		bitrate     = flag.Int("bitrate", 0, "target bitrate in kbps (default 2000 video / 192 music)")
		width       = flag.Int("width", 0, "maximum video width")
		height      = flag.Int("height", 0, "maximum video height")
		container   = flag.String("container", "", "preferred container format, comma-separated for fallbacks")
	)
	flag.Parse()

	// Local .env is a convenient place for PLEXFETCH_SERVER_TOKEN.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	if err := run(cfg, log, options{
		key:         *key,
		list:        *list,
		clear:       *clear,
		showHistory: *showHistory,
		music:       *music,
		bitrate:     *bitrate,
		width:       *width,
		height:      *height,
		containers:  *container,
	}); err != nil {
		log.Error().Err(err).Msg("plexfetch failed")
		os.Exit(1)
	}
}

type options struct {
	key         string
	list        bool
	clear       bool
	showHistory bool
	music       bool
	bitrate     int
	width       int
	height      int
	containers  string
}

func run(cfg *config.Config, log *logger.Logger, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Download.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	hist := history.NewService(db.Conn(), log.Logger)

	if opts.showHistory {
		entries, err := hist.List(ctx, 50)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %s  %d bytes  %s\n", e.CreatedAt, e.Title, e.Container, e.SizeBytes, e.Destination)
		}
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := plex.NewClient(cfg.Server.URL,
		plex.WithToken(cfg.Server.Token),
		plex.WithClientIdentifier(cfg.Server.ClientIdentifier),
		plex.WithTimeout(time.Duration(cfg.Server.Timeout)*time.Second),
		plex.WithLogger(log.Logger),
	)
	if err != nil {
		return err
	}

	dq, err := queue.GetOrCreate(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to acquire download queue: %w", err)
	}
	log.Debug().Int64("queueID", dq.ID()).Msg("Acquired download queue")

	switch {
	case opts.list:
		return listItems(ctx, dq)
	case opts.clear:
		return clearItems(ctx, dq, log)
	case opts.key != "":
		return fetch(ctx, cfg, log, hist, dq, opts)
	default:
		return errors.New("nothing to do: pass -key, -list, -clear or -history")
	}
}

func listItems(ctx context.Context, dq *queue.DownloadQueue) error {
	items, err := dq.Items(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		line := fmt.Sprintf("%d  %s  %s", item.ID(), item.Key(), item.Status())
		if msg := item.ErrorMessage(); msg != "" {
			line += "  " + msg
		}
		fmt.Println(line)
	}
	return nil
}

func clearItems(ctx context.Context, dq *queue.DownloadQueue, log *logger.Logger) error {
	items, err := dq.Items(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := item.Delete(ctx); err != nil {
			return err
		}
		log.Info().Int64("itemID", item.ID()).Str("key", item.Key()).Msg("Deleted queue item")
	}
	return nil
}

func transcodeOptions(opts options) transcode.Options {
	if opts.music {
		o := transcode.DefaultMusicOptions()
		if opts.bitrate > 0 {
			o.Bitrate = opts.bitrate
		}
		if opts.containers != "" {
			o.Containers = parseContainers(opts.containers)
		}
		return o
	}

	o := transcode.DefaultVideoOptions()
	if opts.bitrate > 0 {
		o.Bitrate = opts.bitrate
	}
	if opts.width > 0 && opts.height > 0 {
		o.Width, o.Height = opts.width, opts.height
	}
	if opts.containers != "" {
		o.Containers = parseContainers(opts.containers)
	}
	return o
}

func parseContainers(s string) []media.ContainerFormat {
	var out []media.ContainerFormat
	for _, part := range strings.Split(s, ",") {
		c, err := media.ParseContainerFormat(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func fetch(ctx context.Context, cfg *config.Config, log *logger.Logger, hist *history.Service, dq *queue.DownloadQueue, opts options) error {
	started := time.Now()

	item, err := dq.AddItem(ctx, &media.Metadata{Key: opts.key}, -1, -1, transcodeOptions(opts))
	if err != nil {
		return fmt.Errorf("failed to queue item: %w", err)
	}
	log.Info().Int64("itemID", item.ID()).Str("key", item.Key()).Msg("Queued item")

	if err := waitForAvailable(ctx, log, item); err != nil {
		return err
	}

	container, err := item.Container(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve container: %w", err)
	}

	name := strings.ReplaceAll(strings.TrimPrefix(item.Key(), "/"), "/", "-")
	target := filepath.Join(cfg.Download.Directory, fmt.Sprintf("%s.%s", name, container))

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := item.Download(ctx, f, queue.ByteRange{}); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	log.Info().Str("target", target).Int64("bytes", info.Size()).Msg("Download complete")

	if err := hist.Record(ctx, history.RecordInput{
		MediaKey:    item.Key(),
		Title:       name,
		Container:   string(container),
		Transcoded:  item.IsTranscode(),
		SizeBytes:   info.Size(),
		Duration:    time.Since(started),
		Destination: target,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to record download history")
	}

	return item.Delete(ctx)
}

// waitForAvailable polls the item until the server reports a terminal state.
func waitForAvailable(ctx context.Context, log *logger.Logger, item *queue.Item) error {
	for {
		switch item.Status() {
		case queue.StatusAvailable:
			return nil
		case queue.StatusError:
			return fmt.Errorf("server-side transcode failed: %s", item.ErrorMessage())
		case queue.StatusExpired:
			return errors.New("the transcoded item expired on the server")
		case queue.StatusProcessing:
			if stats := item.Stats(); stats != nil {
				log.Debug().Float64("progress", stats.Progress).Msg("Transcoding")
			}
			if err := sleep(ctx, pollProcessing); err != nil {
				return err
			}
		default:
			if err := sleep(ctx, pollPending); err != nil {
				return err
			}
		}

		if err := item.Update(ctx); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
