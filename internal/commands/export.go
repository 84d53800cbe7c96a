package commands

import (
	"fmt"
	"io"

	"chatelly/internal/config"
	"chatelly/internal/storage"
	"chatelly/internal/transcript"
)

// ExportTranscript writes the HTML transcript of an archived session to w.
func ExportTranscript(w io.Writer, sessionID string, cfg *config.Config) error {
	bbStorage, err := storage.NewBboltStorage(cfg.ArchiveDB)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w. Is the console running?", err)
	}
	defer func() {
		_ = bbStorage.Close()
	}()

	session, err := bbStorage.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	return transcript.Render(w, session)
}
