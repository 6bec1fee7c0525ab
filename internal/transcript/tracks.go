package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"channel_digest/internal/domain"
)

const (
	captionTracksKey = `"captionTracks":`
	youtubeOrigin    = "https://www.youtube.com"
)

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	// Kind is "asr" for automatically generated captions.
	Kind string `json:"kind"`
}

func (t captionTrack) URL() string {
	if strings.HasPrefix(t.BaseURL, "/") {
		return youtubeOrigin + t.BaseURL
	}
	return t.BaseURL
}

// findCaptionTracks scans the inline scripts of a watch page for the player's
// captionTracks array. A page without one yields no tracks and no error.
func findCaptionTracks(page []byte) ([]captionTrack, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: parse watch page: %v", domain.ErrCaptionParse, err)
	}

	var (
		tracks   []captionTrack
		parseErr error
	)
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		idx := strings.Index(text, captionTracksKey)
		if idx < 0 {
			return true
		}

		dec := json.NewDecoder(strings.NewReader(text[idx+len(captionTracksKey):]))
		if err := dec.Decode(&tracks); err != nil {
			parseErr = fmt.Errorf("%w: decode caption tracks: %v", domain.ErrCaptionParse, err)
		}
		return false
	})
	if parseErr != nil {
		return nil, parseErr
	}

	usable := tracks[:0]
	for _, t := range tracks {
		if t.BaseURL != "" {
			usable = append(usable, t)
		}
	}
	return usable, nil
}

// pickTrack prefers a manual track in language, then a generated one, then a
// regional variant of language, then the first track.
func pickTrack(tracks []captionTrack, language string) captionTrack {
	if language == "" {
		return tracks[0]
	}

	var generated, regional *captionTrack
	for i := range tracks {
		t := &tracks[i]
		switch {
		case strings.EqualFold(t.LanguageCode, language):
			if t.Kind != "asr" {
				return *t
			}
			if generated == nil {
				generated = t
			}
		case regional == nil && strings.HasPrefix(strings.ToLower(t.LanguageCode), strings.ToLower(language)+"-"):
			regional = t
		}
	}

	if generated != nil {
		return *generated
	}
	if regional != nil {
		return *regional
	}
	return tracks[0]
}
