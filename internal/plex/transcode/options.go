// Package transcode implements the client side of the Plex transcode
// negotiation: encoding caller preferences into the client-profile
// mini-language, parsing the server's decision and driving a live transcode
// session.
package transcode

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/plexfetch/plexfetch/internal/plex/media"
)

// Context selects the negotiation mode.
type Context string

const (
	// ContextStatic requests an offline transcode: the server produces a
	// complete file for later download.
	ContextStatic Context = "static"
	// ContextStreaming requests a live streaming session.
	ContextStreaming Context = "streaming"
)

// SubtitleMode controls what happens to subtitle streams.
type SubtitleMode string

const (
	// SubtitlesBurn renders subtitles into the video stream.
	SubtitlesBurn SubtitleMode = "burn"
	// SubtitlesNone drops subtitles from the output.
	SubtitlesNone SubtitleMode = "none"
)

// Options is implemented by the per-media-kind transcode option sets. Options
// are consumed once to build the negotiation parameters; they are not
// revisited after a session or queue item is created.
type Options interface {
	transcodeType() string
	profile(tctx Context, protocol media.Protocol) Profile
	apply(q url.Values)
}

// VideoTranscodeOptions describes the desired rendition of a video item.
// Containers and codec lists are in preference order; the server treats the
// first matching transcode target as preferred. Empty lists are a caller
// contract violation.
type VideoTranscodeOptions struct {
	// Bitrate is the target video bitrate in kbps.
	Bitrate int
	// Width and Height bound the output resolution. Both must be set for a
	// resolution limit to be sent.
	Width  int
	Height int
	// Subtitles selects the subtitle handling mode.
	Subtitles SubtitleMode
	// SubtitleSize scales burned subtitles, 100 being the default size.
	SubtitleSize int

	Containers  []media.ContainerFormat
	VideoCodecs []media.VideoCodec
	AudioCodecs []media.AudioCodec
}

// DefaultVideoOptions returns options for a middle-of-the-road 720p H.264/AAC
// MP4 rendition.
func DefaultVideoOptions() VideoTranscodeOptions {
	return VideoTranscodeOptions{
		Bitrate:      2000,
		Width:        1280,
		Height:       720,
		Subtitles:    SubtitlesBurn,
		SubtitleSize: 100,
		Containers:   []media.ContainerFormat{media.ContainerMP4},
		VideoCodecs:  []media.VideoCodec{media.VideoCodecH264},
		AudioCodecs:  []media.AudioCodec{media.AudioCodecAAC},
	}
}

func (o VideoTranscodeOptions) transcodeType() string { return "video" }

func (o VideoTranscodeOptions) apply(q url.Values) {
	q.Set("maxVideoBitrate", strconv.Itoa(o.Bitrate))
	q.Set("videoBitrate", strconv.Itoa(o.Bitrate))
	if o.Width > 0 && o.Height > 0 {
		q.Set("videoResolution", fmt.Sprintf("%dx%d", o.Width, o.Height))
	}
	q.Set("subtitles", string(o.Subtitles))
	q.Set("subtitleSize", strconv.Itoa(o.SubtitleSize))
}

func (o VideoTranscodeOptions) profile(tctx Context, protocol media.Protocol) Profile {
	audioCodecs := make([]string, len(o.AudioCodecs))
	for i, c := range o.AudioCodecs {
		audioCodecs[i] = string(c)
	}
	audio := strings.Join(audioCodecs, ",")

	var p Profile
	for i, container := range o.Containers {
		for j, codec := range o.VideoCodecs {
			p = append(p, Directive{
				Name: "add-transcode-target",
				Attrs: []Attr{
					{"type", "videoProfile"},
					{"context", string(tctx)},
					{"protocol", string(protocol)},
					{"container", string(container)},
					{"videoCodec", string(codec)},
					{"audioCodec", audio},
					{"subtitleCodec", ""},
					{"replace", "true"},
				},
			})

			// The server may serve the original bytes when they already fit
			// the preferred target.
			if i == 0 && j == 0 {
				p = append(p, Directive{
					Name: "add-direct-play-profile",
					Attrs: []Attr{
						{"type", "videoProfile"},
						{"container", string(container)},
						{"videoCodec", string(codec)},
						{"audioCodec", audio},
						{"subtitleCodec", ""},
						{"replace", "true"},
					},
				})
			}
		}
	}
	return p
}

// MusicTranscodeOptions describes the desired rendition of a music track.
// Lists are in preference order, as for video.
type MusicTranscodeOptions struct {
	// Bitrate is the target audio bitrate in kbps.
	Bitrate int

	Containers []media.ContainerFormat
	Codecs     []media.AudioCodec
}

// DefaultMusicOptions returns options for a 192kbps MP3 rendition.
func DefaultMusicOptions() MusicTranscodeOptions {
	return MusicTranscodeOptions{
		Bitrate:    192,
		Containers: []media.ContainerFormat{media.ContainerMP3},
		Codecs:     []media.AudioCodec{media.AudioCodecMP3},
	}
}

func (o MusicTranscodeOptions) transcodeType() string { return "music" }

func (o MusicTranscodeOptions) apply(q url.Values) {
	q.Set("musicBitrate", strconv.Itoa(o.Bitrate))
}

func (o MusicTranscodeOptions) profile(tctx Context, protocol media.Protocol) Profile {
	var p Profile
	for i, container := range o.Containers {
		for j, codec := range o.Codecs {
			p = append(p, Directive{
				Name: "add-transcode-target",
				Attrs: []Attr{
					{"type", "musicProfile"},
					{"context", string(tctx)},
					{"protocol", string(protocol)},
					{"container", string(container)},
					{"audioCodec", string(codec)},
					{"replace", "true"},
				},
			})

			if i == 0 && j == 0 {
				p = append(p, Directive{
					Name: "add-direct-play-profile",
					Attrs: []Attr{
						{"type", "musicProfile"},
						{"container", string(container)},
						{"audioCodec", string(codec)},
						{"replace", "true"},
					},
				})
			}
		}
	}
	return p
}

// Params builds the full negotiation query for the given session id, context,
// protocol and media/part selectors. Negative selector indices mean "let the
// server pick" and are sent as "all". Encoding is pure; it never fails on
// well-formed options.
func Params(sessionID string, tctx Context, protocol media.Protocol, mediaIndex, partIndex int, opts Options) url.Values {
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("transcodeSessionId", sessionID)
	q.Set("transcodeType", opts.transcodeType())
	q.Set("directPlay", "0")
	q.Set("directStream", "1")
	q.Set("directStreamAudio", "1")
	q.Set("context", string(tctx))
	q.Set("protocol", string(protocol))
	q.Set("mediaIndex", indexParam(mediaIndex))
	q.Set("partIndex", indexParam(partIndex))
	opts.apply(q)
	q.Set("X-Plex-Client-Profile-Extra", opts.profile(tctx, protocol).String())
	return q
}

func indexParam(idx int) string {
	if idx < 0 {
		return "all"
	}
	return strconv.Itoa(idx)
}
