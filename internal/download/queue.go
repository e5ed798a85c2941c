// Package download tracks the URLs of a batch run.
package download

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kilimcininkoroglu/dogan/internal/engine"
	"github.com/kilimcininkoroglu/dogan/internal/media"
)

// QueueItem is one line of a batch file
type QueueItem struct {
	ID         int
	Line       int
	URL        string
	Mode       media.Mode
	Quality    string // label such as "720p" or a raw format id; empty = auto
	Status     QueueStatus
	Error      error
	OutputPath string
	StartTime  time.Time
	EndTime    time.Time
}

// Duration returns how long the item ran
func (i QueueItem) Duration() time.Duration {
	if i.StartTime.IsZero() || i.EndTime.IsZero() {
		return 0
	}
	return i.EndTime.Sub(i.StartTime)
}

// QueueStatus is the state of a queue item
type QueueStatus int

const (
	QueueStatusPending QueueStatus = iota
	QueueStatusRunning
	QueueStatusCompleted
	QueueStatusFailed
	QueueStatusSkipped
)

func (s QueueStatus) String() string {
	switch s {
	case QueueStatusPending:
		return "pending"
	case QueueStatusRunning:
		return "running"
	case QueueStatusCompleted:
		return "completed"
	case QueueStatusFailed:
		return "failed"
	case QueueStatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// QueueStats counts items per status
type QueueStats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Skipped   int
}

// Queue holds the items of a batch run
type Queue struct {
	items       []*QueueItem
	defaultMode media.Mode
	mu          sync.RWMutex
}

// NewQueue creates an empty queue. Lines without a mode use defaultMode.
func NewQueue(defaultMode media.Mode) *Queue {
	return &Queue{defaultMode: defaultMode}
}

// Add appends a URL
func (q *Queue) Add(rawURL string, mode media.Mode, quality string) error {
	rawURL = strings.TrimSpace(rawURL)
	if err := engine.ValidateURL(rawURL); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, &QueueItem{
		ID:      len(q.items),
		URL:     rawURL,
		Mode:    mode,
		Quality: quality,
		Status:  QueueStatusPending,
	})
	return nil
}

// LoadFromFile reads a batch file
func (q *Queue) LoadFromFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return q.Load(f)
}

// Load reads batch lines from r.
//
// Each line is "URL [video|audio] [quality]" separated by spaces or "|".
// Blank lines and lines starting with # are ignored.
func (q *Queue) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var fields []string
		if strings.Contains(line, "|") {
			for _, part := range strings.Split(line, "|") {
				fields = append(fields, strings.TrimSpace(part))
			}
		} else {
			fields = strings.Fields(line)
		}

		mode := q.defaultMode
		quality := ""
		rest := fields[1:]
		if len(rest) > 0 && rest[0] != "" {
			if m, err := media.ParseMode(rest[0]); err == nil {
				mode = m
				rest = rest[1:]
			}
		} else if len(rest) > 0 {
			rest = rest[1:]
		}
		if len(rest) > 0 {
			quality = rest[0]
		}
		if len(rest) > 1 {
			return fmt.Errorf("line %d: too many fields", lineNum)
		}

		if err := q.Add(fields[0], mode, quality); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		q.mu.Lock()
		q.items[len(q.items)-1].Line = lineNum
		q.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	return nil
}

// Items returns a snapshot of all items
func (q *Queue) Items() []QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	items := make([]QueueItem, len(q.items))
	for i, item := range q.items {
		items[i] = *item
	}
	return items
}

// NextPending returns the first pending item
func (q *Queue) NextPending() (QueueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if item.Status == QueueStatusPending {
			return *item, true
		}
	}
	return QueueItem{}, false
}

func (q *Queue) update(id int, fn func(*QueueItem)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id >= 0 && id < len(q.items) {
		fn(q.items[id])
	}
}

// Start marks an item as running
func (q *Queue) Start(id int) {
	q.update(id, func(it *QueueItem) {
		it.Status = QueueStatusRunning
		it.StartTime = time.Now()
	})
}

// Complete marks an item as finished
func (q *Queue) Complete(id int, outputPath string) {
	q.update(id, func(it *QueueItem) {
		it.Status = QueueStatusCompleted
		it.OutputPath = outputPath
		it.EndTime = time.Now()
	})
}

// Fail marks an item as failed
func (q *Queue) Fail(id int, err error) {
	q.update(id, func(it *QueueItem) {
		it.Status = QueueStatusFailed
		it.Error = err
		it.EndTime = time.Now()
	})
}

// SkipPending marks every pending item as skipped, e.g. after an interrupt
func (q *Queue) SkipPending() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if it.Status == QueueStatusPending {
			it.Status = QueueStatusSkipped
		}
	}
}

// Stats counts items per status
func (q *Queue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := QueueStats{Total: len(q.items)}
	for _, item := range q.items {
		switch item.Status {
		case QueueStatusPending:
			stats.Pending++
		case QueueStatusRunning:
			stats.Running++
		case QueueStatusCompleted:
			stats.Completed++
		case QueueStatusFailed:
			stats.Failed++
		case QueueStatusSkipped:
			stats.Skipped++
		}
	}
	return stats
}

// IsComplete reports whether no item is pending or running
func (q *Queue) IsComplete() bool {
	s := q.Stats()
	return s.Pending == 0 && s.Running == 0
}

// Count returns the number of items
func (q *Queue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}
