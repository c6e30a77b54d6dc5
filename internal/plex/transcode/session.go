package transcode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/plexfetch/plexfetch/internal/plex"
	"github.com/plexfetch/plexfetch/internal/plex/media"
)

const (
	decisionPath = "/video/:/transcode/universal/decision"
	sessionsPath = "/transcode/sessions"
	downloadPath = "/video/:/transcode/universal/start.%s"
	stopPath     = "/video/:/transcode/universal/stop"
)

// Session is a negotiated transcode session. The container and codecs are
// fixed for its lifetime; no further negotiation happens after creation.
type Session struct {
	client  *plex.Client
	id      string
	offline bool

	protocol  media.Protocol
	container media.ContainerFormat

	videoDecision media.Decision
	videoCodec    media.VideoCodec
	hasVideo      bool
	audioDecision media.Decision
	audioCodec    media.AudioCodec
	hasAudio      bool

	// params is the query needed to address the session on the download
	// endpoint. After creation this reduces to the session key alone.
	params url.Values
}

// Create negotiates a new transcode session for the given item. Negative
// mediaIndex/partIndex leave the rendition choice to the server.
func Create(ctx context.Context, client *plex.Client, item *media.Metadata, tctx Context, protocol media.Protocol, mediaIndex, partIndex int, opts Options) (*Session, error) {
	id := uuid.NewString()

	params := Params(id, tctx, protocol, mediaIndex, partIndex, opts)
	params.Set("path", item.Key)
	if tctx == ContextStatic {
		params.Set("offlineTranscode", "1")
	}

	selected, err := transcodeDecision(ctx, client, params)
	if err != nil {
		return nil, err
	}

	negotiated := selected.Protocol
	if negotiated == "" {
		negotiated = media.ProtocolHTTP
	}
	if negotiated != protocol {
		return nil, &plex.TranscodeError{Reason: "server returned an invalid protocol"}
	}

	return sessionFromMedia(id, client, selected, tctx == ContextStatic, params)
}

// FromStats rebuilds a session handle from a server-side stats record, e.g.
// one found by listing the sessions endpoint. Only the session key is needed
// to resume downloading.
func FromStats(client *plex.Client, stats *SessionStats) *Session {
	params := url.Values{}
	params.Set("session", stats.Key)

	s := &Session{
		client:    client,
		id:        stats.Key,
		offline:   stats.OfflineTranscode,
		protocol:  stats.Protocol,
		container: stats.Container,
		params:    params,
	}
	if stats.VideoDecision != "" && stats.VideoCodec != "" {
		s.videoDecision, s.videoCodec, s.hasVideo = stats.VideoDecision, stats.VideoCodec, true
	}
	if stats.AudioDecision != "" && stats.AudioCodec != "" {
		s.audioDecision, s.audioCodec, s.hasAudio = stats.AudioDecision, stats.AudioCodec, true
	}
	return s
}

func sessionFromMedia(id string, client *plex.Client, m *media.Media, offline bool, params url.Values) (*Session, error) {
	part, ok := m.SelectedPart()
	if !ok || part.Streams == nil {
		return nil, &plex.TranscodeError{Reason: "server returned unexpected response"}
	}

	protocol := m.Protocol
	if protocol == "" {
		protocol = media.ProtocolHTTP
	}

	s := &Session{
		client:    client,
		id:        id,
		offline:   offline,
		protocol:  protocol,
		container: m.Container,
		params:    params,
	}

	if video, ok := media.SelectStream(part.VideoStreams()); ok {
		s.videoDecision, s.videoCodec, s.hasVideo = video.Decision, video.Codec, true
	}
	if audio, ok := media.SelectStream(part.AudioStreams()); ok {
		s.audioDecision, s.audioCodec, s.hasAudio = audio.Decision, audio.Codec, true
	}

	return s, nil
}

// ID returns the session identifier, which allows re-retrieving this session
// at a later time.
func (s *Session) ID() string { return s.id }

// IsOffline reports whether this is an offline (download) transcode.
func (s *Session) IsOffline() bool { return s.offline }

// Protocol returns the negotiated delivery protocol.
func (s *Session) Protocol() media.Protocol { return s.protocol }

// Container returns the negotiated container format.
func (s *Session) Container() media.ContainerFormat { return s.container }

// VideoTranscode returns the decision and codec for the selected video
// stream; ok is false when the media has no video.
func (s *Session) VideoTranscode() (decision media.Decision, codec media.VideoCodec, ok bool) {
	return s.videoDecision, s.videoCodec, s.hasVideo
}

// AudioTranscode returns the decision and codec for the selected audio
// stream; ok is false when the media has no audio.
func (s *Session) AudioTranscode() (decision media.Decision, codec media.AudioCodec, ok bool) {
	return s.audioDecision, s.audioCodec, s.hasAudio
}

type sessionsContainer struct {
	MediaContainer struct {
		Size     int            `json:"size,omitempty"`
		Sessions []SessionStats `json:"TranscodeSession,omitempty"`
	} `json:"MediaContainer"`
}

// Stats polls the server for the session's progress. Returns
// plex.ErrItemNotFound once the server has expired the session.
func (s *Session) Stats(ctx context.Context) (*SessionStats, error) {
	return sessionStats(ctx, s.client, s.id)
}

func sessionStats(ctx context.Context, client *plex.Client, id string) (*SessionStats, error) {
	var wrapper sessionsContainer
	if err := client.Get(sessionsPath + "/" + id).JSON(ctx, &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.MediaContainer.Sessions) == 0 {
		return nil, plex.ErrItemNotFound
	}
	return &wrapper.MediaContainer.Sessions[0], nil
}

// Status condenses Stats into complete/error/transcoding-with-progress.
func (s *Session) Status(ctx context.Context) (Status, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return statusFromStats(stats), nil
}

// Download streams the transcoded data to w.
//
// For streaming protocols (HLS, MPEG-DASH) this fetches the manifest bytes
// as-is; interpreting them is left to the caller. For offline transcodes the
// timeout is disabled: the server delivers bytes as they are transcoded and
// the connection may sit idle for long stretches. There is no way to resume a
// failed download mid-file, so for large offline transcodes it is worth
// waiting for completion before starting.
func (s *Session) Download(ctx context.Context, w io.Writer) error {
	var ext string
	switch {
	case s.protocol == media.ProtocolDASH:
		ext = "mpd"
	case s.protocol == media.ProtocolHLS:
		ext = "m3u8"
	default:
		ext = string(s.container)
	}

	req := s.client.Get(fmt.Sprintf(downloadPath, ext)).Query(s.params)
	if s.offline {
		req = req.NoTimeout()
	}

	resp, err := req.Send(ctx)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return plex.ResponseError(resp)
	}
	_, err = resp.CopyTo(w)
	return err
}

// Cancel stops the transcode and removes any transcoded data from the server.
// The server sometimes reports 404 for a session it still cancels, so that
// counts as success too.
//
// Cancelling several sessions in short succession, or cancelling right after
// creation, is known to crash some server builds. Callers should pace
// themselves; the client cannot mitigate this.
func (s *Session) Cancel(ctx context.Context) error {
	resp, err := s.client.Get(stopPath).Param("session", s.id).Send(ctx)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return resp.Consume()
	default:
		return plex.ResponseError(resp)
	}
}
