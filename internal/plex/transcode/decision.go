package transcode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/plexfetch/plexfetch/internal/plex"
	"github.com/plexfetch/plexfetch/internal/plex/media"
)

// The server reuses the numeric sentinel 1000 with two different meanings
// depending on where it appears, so each gets its own named constant.
const (
	// codeDownloadsDisallowed is the generalDecisionCode the server returns
	// when offline downloads require a subscription feature the account does
	// not have. Only authoritative together with the matching text.
	codeDownloadsDisallowed = 2011
	textDownloadsDisallowed = "Downloads not allowed"

	// codeNegotiationRefused is the directPlayDecisionCode on the decision
	// endpoint meaning the server declines to transcode this content at all.
	codeNegotiationRefused = 1000

	// codeDirectPlaySelected is the same numeric value carried by a queue
	// item's decision result, where it instead means the server picked direct
	// play and no transcode will happen for that item.
	codeDirectPlaySelected = 1000
)

// DecisionResult is the server's verdict on a negotiation. Zero codes mean
// the server did not include the field.
type DecisionResult struct {
	GeneralDecisionCode    int    `json:"generalDecisionCode,omitempty"`
	GeneralDecisionText    string `json:"generalDecisionText,omitempty"`
	DirectPlayDecisionCode int    `json:"directPlayDecisionCode,omitempty"`
	DirectPlayDecisionText string `json:"directPlayDecisionText,omitempty"`
	MDEDecisionCode        int    `json:"mdeDecisionCode,omitempty"`
	MDEDecisionText        string `json:"mdeDecisionText,omitempty"`
	TranscodeDecisionCode  int    `json:"transcodeDecisionCode,omitempty"`
	TranscodeDecisionText  string `json:"transcodeDecisionText,omitempty"`
}

// DirectPlaySelected reports whether this result, as attached to a download
// queue item, means the original media file will be served unmodified. This
// is the item-scoped reading of the sentinel; the decision endpoint reads the
// same code as a refusal of the whole negotiation.
func (d *DecisionResult) DirectPlaySelected() bool {
	return d.DirectPlayDecisionCode == codeDirectPlaySelected
}

type decisionContainer struct {
	DecisionResult

	AllowSync           string           `json:"allowSync,omitempty"`
	LibrarySectionID    json.Number      `json:"librarySectionID,omitempty"`
	LibrarySectionTitle string           `json:"librarySectionTitle,omitempty"`
	LibrarySectionUUID  string           `json:"librarySectionUUID,omitempty"`
	MediaTagPrefix      string           `json:"mediaTagPrefix,omitempty"`
	MediaTagVersion     json.Number      `json:"mediaTagVersion,omitempty"`
	ResourceSession     string           `json:"resourceSession,omitempty"`
	Size                int              `json:"size,omitempty"`
	Identifier          string           `json:"identifier,omitempty"`
	Metadata            []media.Metadata `json:"Metadata,omitempty"`
}

type decisionResponse struct {
	MediaContainer decisionContainer `json:"MediaContainer"`
}

// transcodeDecision runs the negotiation and returns the media entry the
// server selected. The refusal codes are checked before any stream selection:
// they are authoritative and naive selection on a refused response would
// return a nonsensical result.
func transcodeDecision(ctx context.Context, client *plex.Client, params url.Values) (*media.Media, error) {
	resp, err := client.Get(decisionPath).
		Query(params).
		Header("Accept", "application/json").
		Send(ctx)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, plex.ResponseError(resp)
	}

	body, err := resp.Bytes()
	if err != nil {
		return nil, err
	}

	var wrapper decisionResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	mc := wrapper.MediaContainer

	if mc.GeneralDecisionCode == codeDownloadsDisallowed && mc.GeneralDecisionText == textDownloadsDisallowed {
		return nil, plex.ErrSubscriptionRequired
	}
	if mc.DirectPlayDecisionCode == codeNegotiationRefused {
		return nil, plex.ErrTranscodeRefused
	}

	if len(mc.Metadata) > 0 {
		md := mc.Metadata[0]
		for i := range md.Media {
			if md.Media[i].Selected {
				return &md.Media[i], nil
			}
		}
	}

	if mc.TranscodeDecisionText != "" {
		return nil, &plex.TranscodeError{Reason: mc.TranscodeDecisionText}
	}
	return nil, &plex.UnexpectedResponseError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
