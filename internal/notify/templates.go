package notify

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"

	"channel_digest/internal/domain"
)

var artifactTemplate = template.Must(template.New("artifact").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }
h1 { font-size: 1.5em; margin-bottom: 4px; }
h2 { font-size: 1.1em; color: #e67e22; margin-top: 24px; }
.meta { color: #7f8c8d; font-size: 0.9em; margin-bottom: 20px; }
.thumb { max-width: 100%; height: auto; border-radius: 8px; }
.section { white-space: pre-wrap; }
.disclaimer { margin-top: 30px; padding-top: 15px; border-top: 1px solid #ddd; font-size: 0.85em; color: #7f8c8d; }
a { color: #e67e22; text-decoration: none; }
@media (prefers-color-scheme: dark) {
body { background: #1a1a1a; color: #e0e0e0; }
.meta, .disclaimer { color: #a0a0a0; }
h2, a { color: #ff8c42; }
}
</style>
</head>
<body>
<h1>{{.Summary.Title}}</h1>
<div class="meta">{{.ChannelName}} &bull; <a href="{{.SourceURL}}">{{.VideoTitle}}</a>{{if not .PublishedAt.IsZero}} &bull; {{.PublishedAt.UTC.Format "Jan 2, 2006"}}{{end}}</div>
{{if .ThumbnailURL}}<a href="{{.SourceURL}}"><img class="thumb" src="{{.ThumbnailURL}}" alt="{{.VideoTitle}}"></a>{{end}}
{{range .Sections}}<h2>{{.Heading}}</h2>
<div class="section">{{.Body}}</div>
{{end}}{{if .Tokens}}<h2>Mentioned tokens</h2>
<div class="section">{{.Tokens}}</div>
{{end}}<div class="disclaimer">{{.Summary.Disclaimer}}</div>
</body>
</html>`))

type emailSection struct {
	Heading string
	Body    string
}

type emailView struct {
	*domain.Artifact
	ThumbnailURL string
	Sections     []emailSection
	Tokens       string
}

func renderArtifact(a *domain.Artifact) (string, error) {
	view := emailView{
		Artifact: a,
		Sections: []emailSection{
			{Heading: "Overview", Body: a.Summary.Overview},
			{Heading: "Market update", Body: a.Summary.MarketUpdate},
			{Heading: "Technical corner", Body: a.Summary.TechnicalCorner},
			{Heading: "Project spotlight", Body: a.Summary.ProjectSpotlight},
			{Heading: "Key takeaway", Body: a.Summary.KeyTakeaway},
		},
		Tokens: mentionedTokens(a.Summary.MentionedTokens),
	}
	if a.ThumbnailURL != nil {
		view.ThumbnailURL = *a.ThumbnailURL
	}

	var buf bytes.Buffer
	if err := artifactTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// mentionedTokens renders a list of ticker strings as "BTC, ETH". Anything
// else is rendered as its raw JSON.
func mentionedTokens(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return string(raw)
	}
	return strings.Join(tokens, ", ")
}
