// Package media models the parts of the Plex media container that matter for
// transcode negotiation: the metadata/media/part/stream tree and the string
// enums the server uses for codecs, containers and per-stream decisions.
package media

import (
	"strings"

	"github.com/plexfetch/plexfetch/internal/plex"
)

// ContainerFormat is a media container format as named by the server.
type ContainerFormat string

const (
	ContainerAAC    ContainerFormat = "aac"
	ContainerAVI    ContainerFormat = "avi"
	ContainerFLAC   ContainerFormat = "flac"
	ContainerM4V    ContainerFormat = "m4v"
	ContainerMKV    ContainerFormat = "mkv"
	ContainerMOV    ContainerFormat = "mov"
	ContainerMP3    ContainerFormat = "mp3"
	ContainerMP4    ContainerFormat = "mp4"
	ContainerMPEG   ContainerFormat = "mpeg"
	ContainerMPEGTS ContainerFormat = "mpegts"
	ContainerOGG    ContainerFormat = "ogg"
	ContainerWAV    ContainerFormat = "wav"
)

var knownContainers = map[ContainerFormat]bool{
	ContainerAAC:    true,
	ContainerAVI:    true,
	ContainerFLAC:   true,
	ContainerM4V:    true,
	ContainerMKV:    true,
	ContainerMOV:    true,
	ContainerMP3:    true,
	ContainerMP4:    true,
	ContainerMPEG:   true,
	ContainerMPEGTS: true,
	ContainerOGG:    true,
	ContainerWAV:    true,
}

// ParseContainerFormat maps a file extension or server container name to a
// ContainerFormat.
func ParseContainerFormat(s string) (ContainerFormat, error) {
	c := ContainerFormat(strings.ToLower(strings.TrimPrefix(s, ".")))
	if c == "ts" {
		c = ContainerMPEGTS
	}
	if !knownContainers[c] {
		return "", &plex.UnknownContainerError{Format: s}
	}
	return c, nil
}

// VideoCodec is a video codec name as used by the server.
type VideoCodec string

const (
	VideoCodecH264       VideoCodec = "h264"
	VideoCodecHEVC       VideoCodec = "hevc"
	VideoCodecMPEG4      VideoCodec = "mpeg4"
	VideoCodecMPEG2Video VideoCodec = "mpeg2video"
	VideoCodecVP8        VideoCodec = "vp8"
	VideoCodecVP9        VideoCodec = "vp9"
	VideoCodecAV1        VideoCodec = "av1"
)

// AudioCodec is an audio codec name as used by the server.
type AudioCodec string

const (
	AudioCodecAAC    AudioCodec = "aac"
	AudioCodecAC3    AudioCodec = "ac3"
	AudioCodecEAC3   AudioCodec = "eac3"
	AudioCodecDCA    AudioCodec = "dca"
	AudioCodecFLAC   AudioCodec = "flac"
	AudioCodecMP3    AudioCodec = "mp3"
	AudioCodecOpus   AudioCodec = "opus"
	AudioCodecPCM    AudioCodec = "pcm"
	AudioCodecVorbis AudioCodec = "vorbis"
)

// SubtitleCodec is a subtitle codec name as used by the server.
type SubtitleCodec string

const (
	SubtitleCodecASS SubtitleCodec = "ass"
	SubtitleCodecPGS SubtitleCodec = "pgs"
	SubtitleCodecSRT SubtitleCodec = "srt"
	SubtitleCodecVTT SubtitleCodec = "webvtt"
)

// Protocol selects how transcoded data is delivered.
type Protocol string

const (
	// ProtocolHTTP is a plain single-file download, used for offline
	// transcodes.
	ProtocolHTTP Protocol = "http"
	// ProtocolHLS streams via an HLS playlist.
	ProtocolHLS Protocol = "hls"
	// ProtocolDASH streams via an MPEG-DASH manifest.
	ProtocolDASH Protocol = "dash"
)

// Decision describes what the server will do to an individual stream.
type Decision string

const (
	// DecisionCopy repackages the stream without re-encoding.
	DecisionCopy Decision = "copy"
	// DecisionTranscode re-encodes the stream.
	DecisionTranscode Decision = "transcode"
	// DecisionBurn renders the stream into the video (subtitles only).
	DecisionBurn Decision = "burn"
	// DecisionIgnore drops the stream from the output.
	DecisionIgnore Decision = "ignore"
)

// Metadata is one library item as returned inside a media container. The
// server exposes the same tree in JSON and XML; XML carries the scalar fields
// as element attributes, so every field maps both ways.
type Metadata struct {
	Key       string  `json:"key" xml:"key,attr"`
	RatingKey string  `json:"ratingKey" xml:"ratingKey,attr"`
	GUID      string  `json:"guid,omitempty" xml:"guid,attr,omitempty"`
	Title     string  `json:"title" xml:"title,attr"`
	Type      string  `json:"type" xml:"type,attr"`
	Duration  int64   `json:"duration,omitempty" xml:"duration,attr,omitempty"`
	Media     []Media `json:"Media,omitempty" xml:"Media,omitempty"`
}

// Media is one playable rendition of an item. A negotiation response flags
// exactly one media entry as selected.
type Media struct {
	ID        int64           `json:"id" xml:"id,attr"`
	Selected  bool            `json:"selected,omitempty" xml:"selected,attr,omitempty"`
	Protocol  Protocol        `json:"protocol,omitempty" xml:"protocol,attr,omitempty"`
	Container ContainerFormat `json:"container,omitempty" xml:"container,attr,omitempty"`
	Duration  int64           `json:"duration,omitempty" xml:"duration,attr,omitempty"`
	Bitrate   int             `json:"bitrate,omitempty" xml:"bitrate,attr,omitempty"`
	Width     int             `json:"width,omitempty" xml:"width,attr,omitempty"`
	Height    int             `json:"height,omitempty" xml:"height,attr,omitempty"`
	Parts     []Part          `json:"Part,omitempty" xml:"Part,omitempty"`
}

// SelectedPart returns the part the server flagged as selected.
func (m *Media) SelectedPart() (*Part, bool) {
	for i := range m.Parts {
		if m.Parts[i].Selected {
			return &m.Parts[i], true
		}
	}
	return nil, false
}

// Part is one file making up a media rendition.
type Part struct {
	ID        int64           `json:"id" xml:"id,attr"`
	Key       string          `json:"key,omitempty" xml:"key,attr,omitempty"`
	Selected  bool            `json:"selected,omitempty" xml:"selected,attr,omitempty"`
	Duration  int64           `json:"duration,omitempty" xml:"duration,attr,omitempty"`
	Size      int64           `json:"size,omitempty" xml:"size,attr,omitempty"`
	Container ContainerFormat `json:"container,omitempty" xml:"container,attr,omitempty"`
	Streams   []Stream        `json:"Stream,omitempty" xml:"Stream,omitempty"`
}

// VideoStreams returns the part's video streams in order.
func (p *Part) VideoStreams() []*VideoStream {
	var out []*VideoStream
	for i := range p.Streams {
		if s := p.Streams[i].Video; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// AudioStreams returns the part's audio streams in order.
func (p *Part) AudioStreams() []*AudioStream {
	var out []*AudioStream
	for i := range p.Streams {
		if s := p.Streams[i].Audio; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// SubtitleStreams returns the part's subtitle streams in order.
func (p *Part) SubtitleStreams() []*SubtitleStream {
	var out []*SubtitleStream
	for i := range p.Streams {
		if s := p.Streams[i].Subtitle; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// SelectStream returns the first stream flagged selected, falling back to the
// first stream when none is flagged. The selection rule is identical for all
// stream kinds, so it is implemented once over the selected flag.
func SelectStream[S interface{ IsSelected() bool }](streams []S) (S, bool) {
	var zero S
	if len(streams) == 0 {
		return zero, false
	}
	for _, s := range streams {
		if s.IsSelected() {
			return s, true
		}
	}
	return streams[0], true
}
