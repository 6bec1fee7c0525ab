package transcript

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"

	"channel_digest/internal/domain"
)

// captionDocument covers both caption payloads served by the timedtext
// endpoint: the legacy <transcript><text start dur> layout with times in
// seconds and format 3 <timedtext><body><p t d> with times in milliseconds.
type captionDocument struct {
	XMLName xml.Name
	Texts   []legacyCue `xml:"text"`
	Body    struct {
		Paragraphs []timedCue `xml:"p"`
	} `xml:"body"`
}

type legacyCue struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

type timedCue struct {
	T     string `xml:"t,attr"`
	D     string `xml:"d,attr"`
	Text  string `xml:",chardata"`
	Words []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

// ParseCaptions decodes a caption document into ordered segments. It returns
// domain.ErrCaptionParse for malformed documents and for documents without a
// single cue, never partial data.
func ParseCaptions(raw []byte) ([]domain.Segment, error) {
	var doc captionDocument
	if err := xml.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCaptionParse, err)
	}

	var (
		segments []domain.Segment
		err      error
	)
	switch doc.XMLName.Local {
	case "transcript":
		segments, err = legacySegments(doc.Texts)
	case "timedtext":
		segments, err = timedSegments(doc.Body.Paragraphs)
	default:
		return nil, fmt.Errorf("%w: unexpected root element <%s>", domain.ErrCaptionParse, doc.XMLName.Local)
	}
	if err != nil {
		return nil, err
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no caption segments", domain.ErrCaptionParse)
	}
	return segments, nil
}

func legacySegments(cues []legacyCue) ([]domain.Segment, error) {
	segments := make([]domain.Segment, 0, len(cues))
	for i, c := range cues {
		start, err := parseSeconds(c.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: cue %d start: %v", domain.ErrCaptionParse, i, err)
		}
		dur, err := parseSeconds(c.Dur)
		if err != nil {
			return nil, fmt.Errorf("%w: cue %d dur: %v", domain.ErrCaptionParse, i, err)
		}

		text := cleanText(c.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{Text: text, Start: start, Duration: dur})
	}
	return segments, nil
}

func timedSegments(cues []timedCue) ([]domain.Segment, error) {
	segments := make([]domain.Segment, 0, len(cues))
	for i, c := range cues {
		start, err := parseMillis(c.T)
		if err != nil {
			return nil, fmt.Errorf("%w: cue %d t: %v", domain.ErrCaptionParse, i, err)
		}
		dur, err := parseMillis(c.D)
		if err != nil {
			return nil, fmt.Errorf("%w: cue %d d: %v", domain.ErrCaptionParse, i, err)
		}

		raw := c.Text
		if len(c.Words) > 0 {
			var b strings.Builder
			for _, w := range c.Words {
				b.WriteString(w.Text)
			}
			raw = b.String()
		}

		text := cleanText(raw)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{Text: text, Start: start, Duration: dur})
	}
	return segments, nil
}

// parseSeconds treats a missing duration as zero.
func parseSeconds(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func parseMillis(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return ms / 1000, nil
}

// cleanText undoes the second layer of entity escaping found in caption
// payloads and collapses whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
