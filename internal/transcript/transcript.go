// Package transcript renders archived sessions as standalone HTML pages.
package transcript

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"chatelly/internal/content"
	"chatelly/internal/models"
)

var page = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"ts": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05 UTC") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Chat {{.ID}}</title>
</head>
<body>
<h1>Chat with {{if .VisitorName}}{{.VisitorName}}{{else}}{{.VisitorID}}{{end}}</h1>
<dl>
<dt>Session</dt><dd>{{.ID}}</dd>
<dt>Website</dt><dd>{{.WebsiteID}}</dd>
{{- if .VisitorEmail}}
<dt>Email</dt><dd>{{.VisitorEmail}}</dd>
{{- end}}
<dt>Status</dt><dd>{{.Status}}</dd>
<dt>Started</dt><dd>{{ts .StartedAt}}</dd>
{{- if .EndedAt}}
<dt>Ended</dt><dd>{{ts .EndedAt}}</dd>
{{- end}}
</dl>
<ol class="messages">
{{- range .Messages}}
<li class="{{.Sender}}">
<time>{{ts .Timestamp}}</time> <strong>{{.Sender}}</strong>{{if .Translated}} <em>({{.Language}})</em>{{end}}
<div class="body">{{.Body}}</div>
</li>
{{- end}}
</ol>
</body>
</html>
`))

type view struct {
	models.ChatSession
	Messages []message
}

type message struct {
	models.ChatMessage
	Body template.HTML
}

// Render writes the session as an HTML document. Message bodies are rendered
// as markdown and sanitized; everything else is escaped by the template.
func Render(w io.Writer, session models.ChatSession) error {
	v := view{
		ChatSession: session,
		Messages:    make([]message, 0, len(session.Messages)),
	}
	for _, msg := range session.Messages {
		body, err := content.RenderMarkdown(msg.Content)
		if err != nil {
			return fmt.Errorf("failed to render message %s: %w", msg.ID, err)
		}
		v.Messages = append(v.Messages, message{
			ChatMessage: msg,
			Body:        template.HTML(body),
		})
	}

	if err := page.Execute(w, v); err != nil {
		return fmt.Errorf("failed to render transcript %s: %w", session.ID, err)
	}
	return nil
}
