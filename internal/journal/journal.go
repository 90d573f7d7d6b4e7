// Package journal keeps a local append-only record of every fiscal
// operation the service performed, backed by a JSON file. The journal is
// the source for the daily sales book export and for answering "what
// did we print" questions without touching the printer archive.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one journaled fiscal operation.
type Entry struct {
	ID               string    `json:"id"`
	Time             time.Time `json:"time"`
	Operation        string    `json:"operation"`
	DocumentNumber   string    `json:"document_number,omitempty"`
	PrinterNumber    string    `json:"printer_number,omitempty"`
	DocumentType     string    `json:"document_type,omitempty"`
	CustomerCRIB     string    `json:"customer_crib,omitempty"`
	Total            string    `json:"total,omitempty"`
	ReportsCompleted int       `json:"reports_completed,omitempty"`
	Software         string    `json:"software,omitempty"`
	POSName          string    `json:"pos_name,omitempty"`
}

// Journal is the persistence port for fiscal operation records.
type Journal interface {
	Append(e Entry) (Entry, error)
	Entries() ([]Entry, error)
	ByDateRange(start, end time.Time) ([]Entry, error)
	ByDocumentNumber(number string) (*Entry, error)
}

// FileJournal implements Journal on a single JSON file guarded by a
// mutex. The whole file is rewritten on every append, which is fine for
// the volume a single fiscal printer produces.
type FileJournal struct {
	mu       sync.Mutex
	filePath string
	entries  []Entry
}

// NewFileJournal opens or creates the journal at filePath.
func NewFileJournal(filePath string) (*FileJournal, error) {
	j := &FileJournal{filePath: filePath}
	if err := j.loadFromFile(); err != nil {
		return nil, fmt.Errorf("journal init: %w", err)
	}
	return j, nil
}

// Append records one operation, filling in the id and timestamp when
// the caller left them empty, and returns the stored entry.
func (j *FileJournal) Append(e Entry) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	j.entries = append(j.entries, e)
	if err := j.saveToFile(); err != nil {
		j.entries = j.entries[:len(j.entries)-1]
		return Entry{}, err
	}
	return e, nil
}

// Entries returns a copy of all journaled operations, oldest first.
func (j *FileJournal) Entries() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out, nil
}

// ByDateRange returns the entries with start <= Time < end of the next
// day after end, i.e. both bounds are inclusive calendar dates.
func (j *FileJournal) ByDateRange(start, end time.Time) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := end.AddDate(0, 0, 1)
	var out []Entry
	for _, e := range j.entries {
		if !e.Time.Before(start) && e.Time.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ByDocumentNumber finds the entry for a fiscal document number, nil
// when the number was never journaled.
func (j *FileJournal) ByDocumentNumber(number string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i := range j.entries {
		if j.entries[i].DocumentNumber == number {
			e := j.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (j *FileJournal) loadFromFile() error {
	data, err := os.ReadFile(j.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			j.entries = nil
			return nil
		}
		return err
	}
	if len(data) == 0 {
		j.entries = nil
		return nil
	}
	return json.Unmarshal(data, &j.entries)
}

func (j *FileJournal) saveToFile() error {
	if dir := filepath.Dir(j.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(j.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.filePath, data, 0o644)
}

var _ Journal = (*FileJournal)(nil)
