package artifact

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore is the JSONL variant: one file per (session, thread), one record
// per interaction. It satisfies the same contract as SQLiteStore bit-for-bit.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

type interactionRecord struct {
	Number int               `json:"number"`
	Tools  map[string][]byte `json:"tools,omitempty"`
}

func NewFile(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) OpenInteraction(_ context.Context, sessionID, threadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(sessionID, threadID)
	if err != nil {
		return 0, err
	}

	number := 1
	if len(records) > 0 {
		number = records[len(records)-1].Number + 1
	}

	records = append(records, interactionRecord{
		Number: number,
		Tools:  map[string][]byte{},
	})

	if err = s.save(sessionID, threadID, records); err != nil {
		return 0, err
	}

	return number, nil
}

func (s *FileStore) Put(_ context.Context, sessionID, threadID, tool string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(sessionID, threadID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no open interaction for %s/%s", sessionID, threadID)
	}

	last := &records[len(records)-1]
	if last.Tools == nil {
		last.Tools = map[string][]byte{}
	}
	last.Tools[tool] = payload

	return s.save(sessionID, threadID, records)
}

func (s *FileStore) Get(_ context.Context, sessionID, threadID, tool string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load(sessionID, threadID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	if payload, ok := records[len(records)-1].Tools[tool]; ok && payload != nil {
		return payload, nil
	}

	if len(records) < 2 {
		return nil, nil
	}

	return records[len(records)-2].Tools[tool], nil
}

func (s *FileStore) path(sessionID, threadID string) string {
	name := url.PathEscape(sessionID) + "__" + url.PathEscape(threadID) + ".jsonl"
	return filepath.Join(s.dir, name)
}

func (s *FileStore) load(sessionID, threadID string) ([]interactionRecord, error) {
	file, err := os.Open(s.path(sessionID, threadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact log: %w", err)
	}
	defer file.Close()

	var records []interactionRecord

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record interactionRecord
		if err = json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("failed to parse artifact record: %w", err)
		}
		records = append(records, record)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading artifact log: %w", err)
	}

	return records, nil
}

func (s *FileStore) save(sessionID, threadID string, records []interactionRecord) error {
	file, err := os.OpenFile(s.path(sessionID, threadID), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create artifact log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal artifact record: %w", err)
		}
		if _, err = writer.WriteString(string(data) + "\n"); err != nil {
			return fmt.Errorf("failed to write artifact record: %w", err)
		}
	}

	if err = writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	return nil
}
