package transcode

import (
	"strings"
	"testing"

	"github.com/plexfetch/plexfetch/internal/plex/media"
)

func TestDirective_String(t *testing.T) {
	d := Directive{
		Name: "add-transcode-target",
		Attrs: []Attr{
			{"type", "videoProfile"},
			{"container", "mp4"},
			{"subtitleCodec", ""},
		},
	}

	want := "add-transcode-target(type=videoProfile&container=mp4&subtitleCodec=)"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestProfile_String(t *testing.T) {
	p := Profile{
		{Name: "a", Attrs: []Attr{{"k", "1"}}},
		{Name: "b", Attrs: []Attr{{"k", "2"}}},
	}
	if got := p.String(); got != "a(k=1)+b(k=2)" {
		t.Errorf("String() = %q", got)
	}

	if got := Profile(nil).String(); got != "" {
		t.Errorf("empty profile String() = %q, want empty", got)
	}
}

func TestVideoOptions_Profile(t *testing.T) {
	opts := DefaultVideoOptions()
	p := opts.profile(ContextStatic, media.ProtocolHTTP)

	if len(p) != 2 {
		t.Fatalf("profile has %d directives, want transcode target plus direct play", len(p))
	}

	want := "add-transcode-target(type=videoProfile&context=static&protocol=http" +
		"&container=mp4&videoCodec=h264&audioCodec=aac&subtitleCodec=&replace=true)" +
		"+add-direct-play-profile(type=videoProfile&container=mp4&videoCodec=h264" +
		"&audioCodec=aac&subtitleCodec=&replace=true)"
	if got := p.String(); got != want {
		t.Errorf("profile = %q\nwant      %q", got, want)
	}
}

func TestVideoOptions_Profile_MultipleTargets(t *testing.T) {
	opts := DefaultVideoOptions()
	opts.Containers = []media.ContainerFormat{media.ContainerMP4, media.ContainerMKV}
	opts.VideoCodecs = []media.VideoCodec{media.VideoCodecH264, media.VideoCodecHEVC}
	opts.AudioCodecs = []media.AudioCodec{media.AudioCodecAAC, media.AudioCodecAC3}

	p := opts.profile(ContextStatic, media.ProtocolHTTP)

	// 4 transcode targets in preference order, 1 direct play for the first.
	if len(p) != 5 {
		t.Fatalf("profile has %d directives, want 5", len(p))
	}
	if p[0].Name != "add-transcode-target" || p[1].Name != "add-direct-play-profile" {
		t.Errorf("directives 0,1 = %s,%s", p[0].Name, p[1].Name)
	}
	for _, d := range p[2:] {
		if d.Name != "add-transcode-target" {
			t.Errorf("trailing directive = %s, want add-transcode-target", d.Name)
		}
	}

	s := p.String()
	if !strings.Contains(s, "audioCodec=aac,ac3") {
		t.Errorf("audio codecs should be comma joined in %q", s)
	}
	first := strings.Index(s, "container=mp4")
	second := strings.Index(s, "container=mkv")
	if first == -1 || second == -1 || first > second {
		t.Errorf("container preference order lost in %q", s)
	}
}

func TestMusicOptions_Profile(t *testing.T) {
	opts := DefaultMusicOptions()
	p := opts.profile(ContextStatic, media.ProtocolHTTP)

	if len(p) != 2 {
		t.Fatalf("profile has %d directives, want 2", len(p))
	}

	want := "add-transcode-target(type=musicProfile&context=static&protocol=http" +
		"&container=mp3&audioCodec=mp3&replace=true)" +
		"+add-direct-play-profile(type=musicProfile&container=mp3&audioCodec=mp3&replace=true)"
	if got := p.String(); got != want {
		t.Errorf("profile = %q\nwant      %q", got, want)
	}
}

func TestParams_Video(t *testing.T) {
	opts := DefaultVideoOptions()
	q := Params("session-1", ContextStatic, media.ProtocolHTTP, -1, -1, opts)

	want := map[string]string{
		"session":            "session-1",
		"transcodeSessionId": "session-1",
		"transcodeType":      "video",
		"directPlay":         "0",
		"directStream":       "1",
		"directStreamAudio":  "1",
		"context":            "static",
		"protocol":           "http",
		"mediaIndex":         "all",
		"partIndex":          "all",
		"maxVideoBitrate":    "2000",
		"videoBitrate":       "2000",
		"videoResolution":    "1280x720",
		"subtitles":          "burn",
		"subtitleSize":       "100",
	}
	for key, value := range want {
		if q.Get(key) != value {
			t.Errorf("param %s = %q, want %q", key, q.Get(key), value)
		}
	}
	if q.Get("X-Plex-Client-Profile-Extra") == "" {
		t.Error("profile extra param missing")
	}
}

func TestParams_Indices(t *testing.T) {
	opts := DefaultVideoOptions()
	q := Params("s", ContextStatic, media.ProtocolHTTP, 0, 2, opts)

	if q.Get("mediaIndex") != "0" {
		t.Errorf("mediaIndex = %q, want %q", q.Get("mediaIndex"), "0")
	}
	if q.Get("partIndex") != "2" {
		t.Errorf("partIndex = %q, want %q", q.Get("partIndex"), "2")
	}
}

func TestParams_Music(t *testing.T) {
	opts := DefaultMusicOptions()
	q := Params("s", ContextStreaming, media.ProtocolHLS, -1, -1, opts)

	if q.Get("transcodeType") != "music" {
		t.Errorf("transcodeType = %q, want music", q.Get("transcodeType"))
	}
	if q.Get("musicBitrate") != "192" {
		t.Errorf("musicBitrate = %q, want 192", q.Get("musicBitrate"))
	}
	if q.Get("protocol") != "hls" || q.Get("context") != "streaming" {
		t.Errorf("protocol/context = %q/%q", q.Get("protocol"), q.Get("context"))
	}
	if q.Get("maxVideoBitrate") != "" {
		t.Error("video params leaked into a music negotiation")
	}
}

func TestParams_NoResolutionWithoutDimensions(t *testing.T) {
	opts := DefaultVideoOptions()
	opts.Width, opts.Height = 0, 0
	q := Params("s", ContextStatic, media.ProtocolHTTP, -1, -1, opts)

	if _, ok := q["videoResolution"]; ok {
		t.Error("videoResolution sent without both dimensions set")
	}
}
