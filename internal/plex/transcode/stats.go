package transcode

import "github.com/plexfetch/plexfetch/internal/plex/media"

// SessionStats is the server's live report on a transcode session, as
// returned by the sessions endpoint and embedded into queue items while they
// are processing.
type SessionStats struct {
	Key              string                `json:"key"`
	Throttled        bool                  `json:"throttled,omitempty"`
	Complete         bool                  `json:"complete,omitempty"`
	Progress         float64               `json:"progress,omitempty"`
	Size             int64                 `json:"size,omitempty"`
	Speed            float64               `json:"speed,omitempty"`
	Error            bool                  `json:"error,omitempty"`
	Duration         int64                 `json:"duration,omitempty"`
	Remaining        *int                  `json:"remaining,omitempty"`
	Context          Context               `json:"context,omitempty"`
	SourceVideoCodec media.VideoCodec      `json:"sourceVideoCodec,omitempty"`
	SourceAudioCodec media.AudioCodec      `json:"sourceAudioCodec,omitempty"`
	VideoDecision    media.Decision        `json:"videoDecision,omitempty"`
	AudioDecision    media.Decision        `json:"audioDecision,omitempty"`
	SubtitleDecision media.Decision        `json:"subtitleDecision,omitempty"`
	Protocol         media.Protocol        `json:"protocol,omitempty"`
	Container        media.ContainerFormat `json:"container,omitempty"`
	VideoCodec       media.VideoCodec      `json:"videoCodec,omitempty"`
	AudioCodec       media.AudioCodec      `json:"audioCodec,omitempty"`
	Width            int                   `json:"width,omitempty"`
	Height           int                   `json:"height,omitempty"`
	OfflineTranscode bool                  `json:"offlineTranscode,omitempty"`
}

// State classifies a session's progress.
type State string

const (
	StateTranscoding State = "transcoding"
	StateComplete    State = "complete"
	StateError       State = "error"
)

// Status is a condensed view of the session stats.
type Status struct {
	State State
	// Progress is the percent complete, 0-100, possibly fractional. Only
	// meaningful while transcoding.
	Progress float64
	// Remaining is the server's estimate of seconds left, -1 when unknown.
	Remaining int
}

func statusFromStats(stats *SessionStats) Status {
	switch {
	case stats.Error:
		return Status{State: StateError}
	case stats.Complete:
		return Status{State: StateComplete}
	default:
		remaining := -1
		if stats.Remaining != nil {
			remaining = *stats.Remaining
		}
		return Status{
			State:     StateTranscoding,
			Progress:  stats.Progress,
			Remaining: remaining,
		}
	}
}
