package media

import (
	"encoding/json"
	"encoding/xml"
	"testing"
)

func TestStream_UnmarshalJSON(t *testing.T) {
	data := `[
		{"id": 101, "streamType": 1, "codec": "h264", "selected": true, "decision": "transcode", "width": 1920, "height": 1080},
		{"id": 102, "streamType": 2, "codec": "aac", "selected": true, "decision": "copy", "channels": 6, "language": "English"},
		{"id": 103, "streamType": 3, "codec": "srt", "decision": "burn", "language": "French"},
		{"id": 104, "streamType": 7}
	]`

	var streams []Stream
	if err := json.Unmarshal([]byte(data), &streams); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(streams) != 4 {
		t.Fatalf("decoded %d streams, want 4", len(streams))
	}

	video := streams[0]
	if video.Type != StreamTypeVideo || video.Video == nil {
		t.Fatalf("streams[0] not decoded as video: %+v", video)
	}
	if video.Video.Codec != VideoCodecH264 || !video.Video.Selected || video.Video.Decision != DecisionTranscode {
		t.Errorf("video stream = %+v, want h264/selected/transcode", video.Video)
	}
	if video.Video.Width != 1920 || video.Video.Height != 1080 {
		t.Errorf("video dimensions = %dx%d, want 1920x1080", video.Video.Width, video.Video.Height)
	}

	audio := streams[1]
	if audio.Type != StreamTypeAudio || audio.Audio == nil {
		t.Fatalf("streams[1] not decoded as audio: %+v", audio)
	}
	if audio.Audio.Codec != AudioCodecAAC || audio.Audio.Channels != 6 {
		t.Errorf("audio stream = %+v, want aac with 6 channels", audio.Audio)
	}

	subtitle := streams[2]
	if subtitle.Type != StreamTypeSubtitle || subtitle.Subtitle == nil {
		t.Fatalf("streams[2] not decoded as subtitle: %+v", subtitle)
	}
	if subtitle.Subtitle.Decision != DecisionBurn || subtitle.Subtitle.Language != "French" {
		t.Errorf("subtitle stream = %+v, want burn/French", subtitle.Subtitle)
	}

	// Unknown stream types keep the type tag and nothing else.
	unknown := streams[3]
	if unknown.Type != 7 {
		t.Errorf("streams[3].Type = %d, want 7", unknown.Type)
	}
	if unknown.Video != nil || unknown.Audio != nil || unknown.Subtitle != nil {
		t.Error("unknown stream type should not populate any variant")
	}
}

func TestStream_MarshalJSON(t *testing.T) {
	s := Stream{
		Type:  StreamTypeAudio,
		Audio: &AudioStream{ID: 5, StreamType: StreamTypeAudio, Codec: AudioCodecMP3},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var round Stream
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if round.Audio == nil || round.Audio.ID != 5 || round.Audio.Codec != AudioCodecMP3 {
		t.Errorf("round trip = %+v, want the audio variant preserved", round)
	}
}

func TestMetadata_DecodeTree_XML(t *testing.T) {
	// The XML form of the same tree carries every scalar as an attribute and
	// names metadata entries after their media type.
	data := `<Video key="/library/metadata/159637" ratingKey="159637" title="Interstate 60" type="movie">
		<Media id="289907" selected="1" protocol="http" container="mp4">
			<Part id="289908" selected="1">
				<Stream id="1" streamType="1" codec="h264" selected="1" decision="transcode"/>
				<Stream id="2" streamType="2" codec="aac" selected="1" decision="copy"/>
				<Stream id="3" streamType="7"/>
			</Part>
		</Media>
	</Video>`

	var md Metadata
	if err := xml.Unmarshal([]byte(data), &md); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if md.Key != "/library/metadata/159637" || md.Title != "Interstate 60" || md.Type != "movie" {
		t.Errorf("metadata attributes lost: %+v", md)
	}
	if len(md.Media) != 1 || !md.Media[0].Selected || md.Media[0].Container != ContainerMP4 {
		t.Fatalf("media not decoded: %+v", md.Media)
	}

	part, ok := md.Media[0].SelectedPart()
	if !ok {
		t.Fatal("SelectedPart() ok = false")
	}
	video, ok := SelectStream(part.VideoStreams())
	if !ok || video.Codec != VideoCodecH264 || video.Decision != DecisionTranscode || !video.Selected {
		t.Errorf("video selection = %v %+v, want selected h264/transcode", ok, video)
	}
	audio, ok := SelectStream(part.AudioStreams())
	if !ok || audio.Codec != AudioCodecAAC || audio.Decision != DecisionCopy {
		t.Errorf("audio selection = %v %+v, want aac/copy", ok, audio)
	}

	// The unknown stream type is kept as a bare tag, same as the JSON path.
	if len(part.Streams) != 3 {
		t.Fatalf("decoded %d streams, want 3", len(part.Streams))
	}
	unknown := part.Streams[2]
	if unknown.Type != 7 || unknown.Video != nil || unknown.Audio != nil || unknown.Subtitle != nil {
		t.Errorf("unknown stream = %+v, want only the type tag", unknown)
	}
}

func TestMetadata_DecodeTree(t *testing.T) {
	data := `{
		"key": "/library/metadata/159637",
		"ratingKey": "159637",
		"title": "Interstate 60",
		"type": "movie",
		"Media": [{
			"id": 289907,
			"selected": true,
			"protocol": "http",
			"container": "mp4",
			"Part": [{
				"id": 289908,
				"selected": true,
				"Stream": [
					{"id": 1, "streamType": 1, "codec": "h264", "selected": true, "decision": "transcode"},
					{"id": 2, "streamType": 2, "codec": "aac", "selected": true, "decision": "copy"}
				]
			}]
		}]
	}`

	var md Metadata
	if err := json.Unmarshal([]byte(data), &md); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if md.Key != "/library/metadata/159637" || md.Type != "movie" {
		t.Errorf("metadata = %+v", md)
	}
	if len(md.Media) != 1 || !md.Media[0].Selected {
		t.Fatalf("media not decoded: %+v", md.Media)
	}

	part, ok := md.Media[0].SelectedPart()
	if !ok {
		t.Fatal("SelectedPart() ok = false")
	}
	video, ok := SelectStream(part.VideoStreams())
	if !ok || video.Decision != DecisionTranscode {
		t.Errorf("video selection = %v %+v, want the transcoded stream", ok, video)
	}
	audio, ok := SelectStream(part.AudioStreams())
	if !ok || audio.Decision != DecisionCopy {
		t.Errorf("audio selection = %v %+v, want the copied stream", ok, audio)
	}
}
