package transcript

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"chatelly/internal/models"
)

func TestRender(t *testing.T) {
	started := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)
	session := models.ChatSession{
		ID:          "s1",
		WebsiteID:   "site1",
		VisitorID:   "v1",
		VisitorName: `<b>Eve</b>`,
		Status:      models.SessionStatusArchived,
		StartedAt:   started,
		EndedAt:     &ended,
		Messages: []models.ChatMessage{
			{ID: "m1", Content: "**hello**", Sender: models.SenderVisitor, Timestamp: started},
			{ID: "m2", Content: `<script>alert(1)</script>bye`, Sender: models.SenderUser, Timestamp: started.Add(time.Minute)},
			{ID: "m3", Content: "hola", Sender: models.SenderVisitor, Timestamp: started, Translated: true, Language: "es"},
		},
	}

	var buf bytes.Buffer
	if err := Render(&buf, session); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<strong>hello</strong>",
		"&lt;b&gt;Eve&lt;/b&gt;",
		"2026-02-01 10:00:00 UTC",
		"2026-02-01 11:00:00 UTC",
		"(es)",
		"bye",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
	if strings.Contains(out, "<script>") {
		t.Error("transcript must not contain script tags")
	}
	if strings.Count(out, "<li class=") != 3 {
		t.Errorf("expected 3 messages, got %d", strings.Count(out, "<li class="))
	}
}

func TestRender_OpenSession(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, models.ChatSession{ID: "s2", VisitorID: "v2", StartedAt: time.Now()})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(buf.String(), "Ended") {
		t.Error("open session must not show an end time")
	}
	if !strings.Contains(buf.String(), "Chat with v2") {
		t.Error("expected visitor id as fallback name")
	}
}
