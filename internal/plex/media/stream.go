package media

import (
	"encoding/json"
	"encoding/xml"
	"strconv"
)

// StreamType discriminates the stream union on the wire.
type StreamType int

const (
	StreamTypeVideo    StreamType = 1
	StreamTypeAudio    StreamType = 2
	StreamTypeSubtitle StreamType = 3
)

// Stream is a tagged union over the stream kinds the server reports. Exactly
// one of Video, Audio or Subtitle is non-nil for known stream types; unknown
// types keep only the Type field.
type Stream struct {
	Type     StreamType
	Video    *VideoStream
	Audio    *AudioStream
	Subtitle *SubtitleStream
}

// UnmarshalJSON dispatches on the streamType field.
func (s *Stream) UnmarshalJSON(data []byte) error {
	var probe struct {
		StreamType StreamType `json:"streamType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	s.Type = probe.StreamType
	switch probe.StreamType {
	case StreamTypeVideo:
		s.Video = &VideoStream{}
		return json.Unmarshal(data, s.Video)
	case StreamTypeAudio:
		s.Audio = &AudioStream{}
		return json.Unmarshal(data, s.Audio)
	case StreamTypeSubtitle:
		s.Subtitle = &SubtitleStream{}
		return json.Unmarshal(data, s.Subtitle)
	default:
		return nil
	}
}

// UnmarshalXML dispatches on the streamType attribute. The server's XML form
// carries every stream field as an attribute of the Stream element.
func (s *Stream) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "streamType" {
			v, err := strconv.Atoi(attr.Value)
			if err != nil {
				return err
			}
			s.Type = StreamType(v)
			break
		}
	}

	switch s.Type {
	case StreamTypeVideo:
		s.Video = &VideoStream{}
		return d.DecodeElement(s.Video, &start)
	case StreamTypeAudio:
		s.Audio = &AudioStream{}
		return d.DecodeElement(s.Audio, &start)
	case StreamTypeSubtitle:
		s.Subtitle = &SubtitleStream{}
		return d.DecodeElement(s.Subtitle, &start)
	default:
		return d.Skip()
	}
}

// MarshalJSON re-encodes the active variant.
func (s Stream) MarshalJSON() ([]byte, error) {
	switch {
	case s.Video != nil:
		return json.Marshal(s.Video)
	case s.Audio != nil:
		return json.Marshal(s.Audio)
	case s.Subtitle != nil:
		return json.Marshal(s.Subtitle)
	default:
		return json.Marshal(struct {
			StreamType StreamType `json:"streamType"`
		}{s.Type})
	}
}

// VideoStream is a video stream and the server's plan for it.
type VideoStream struct {
	ID         int64      `json:"id,omitempty" xml:"id,attr,omitempty"`
	StreamType StreamType `json:"streamType" xml:"streamType,attr"`
	Codec      VideoCodec `json:"codec" xml:"codec,attr"`
	Selected   bool       `json:"selected,omitempty" xml:"selected,attr,omitempty"`
	Decision   Decision   `json:"decision,omitempty" xml:"decision,attr,omitempty"`
	Width      int        `json:"width,omitempty" xml:"width,attr,omitempty"`
	Height     int        `json:"height,omitempty" xml:"height,attr,omitempty"`
	Bitrate    int        `json:"bitrate,omitempty" xml:"bitrate,attr,omitempty"`
	FrameRate  float64    `json:"frameRate,omitempty" xml:"frameRate,attr,omitempty"`
}

// IsSelected reports whether the server flagged this stream as selected.
func (s *VideoStream) IsSelected() bool { return s.Selected }

// AudioStream is an audio stream and the server's plan for it.
type AudioStream struct {
	ID           int64      `json:"id,omitempty" xml:"id,attr,omitempty"`
	StreamType   StreamType `json:"streamType" xml:"streamType,attr"`
	Codec        AudioCodec `json:"codec" xml:"codec,attr"`
	Selected     bool       `json:"selected,omitempty" xml:"selected,attr,omitempty"`
	Decision     Decision   `json:"decision,omitempty" xml:"decision,attr,omitempty"`
	Channels     int        `json:"channels,omitempty" xml:"channels,attr,omitempty"`
	SamplingRate int        `json:"samplingRate,omitempty" xml:"samplingRate,attr,omitempty"`
	Bitrate      int        `json:"bitrate,omitempty" xml:"bitrate,attr,omitempty"`
	Language     string     `json:"language,omitempty" xml:"language,attr,omitempty"`
}

// IsSelected reports whether the server flagged this stream as selected.
func (s *AudioStream) IsSelected() bool { return s.Selected }

// SubtitleStream is a subtitle stream and the server's plan for it.
type SubtitleStream struct {
	ID         int64         `json:"id,omitempty" xml:"id,attr,omitempty"`
	StreamType StreamType    `json:"streamType" xml:"streamType,attr"`
	Codec      SubtitleCodec `json:"codec" xml:"codec,attr"`
	Selected   bool          `json:"selected,omitempty" xml:"selected,attr,omitempty"`
	Decision   Decision      `json:"decision,omitempty" xml:"decision,attr,omitempty"`
	Language   string        `json:"language,omitempty" xml:"language,attr,omitempty"`
	Forced     bool          `json:"forced,omitempty" xml:"forced,attr,omitempty"`
}

// IsSelected reports whether the server flagged this stream as selected.
func (s *SubtitleStream) IsSelected() bool { return s.Selected }
