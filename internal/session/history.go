package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nextlevelbuilder/goforge/internal/providers"
)

// SaveHistory writes the agent's full history as JSONL, one message per
// line, via temp-write-then-rename so readers never see a partial file.
func (s *Session) SaveHistory(agent string, history []providers.Message) error {
	path := s.HistoryPath(agent)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, msg := range history {
		line, err := json.Marshal(msg)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("save history: marshal: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("save history: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save history: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadHistory reads the agent's JSONL history. A missing file returns an
// empty history. Unparseable lines are skipped rather than failing the
// whole load.
func (s *Session) LoadHistory(agent string) ([]providers.Message, error) {
	f, err := os.Open(s.HistoryPath(agent))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer f.Close()

	var history []providers.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg providers.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		history = append(history, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// AppendTranscript appends the full pre-compaction history to
// transcript.jsonl, one message per line.
func (s *Session) AppendTranscript(history []providers.Message) error {
	f, err := os.OpenFile(s.TranscriptPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, msg := range history {
		line, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("append transcript: marshal: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}
