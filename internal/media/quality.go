package media

import "fmt"

// AutoLabel returns the label of the synthetic first entry for a mode.
func AutoLabel(mode Mode, maxHeight int) string {
	if mode == ModeAudio {
		return "Auto (best quality)"
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return fmt.Sprintf("Auto (up to %dp)", maxHeight)
}

// QualityList is the list presented to the user together with the current
// selection. It always starts with the Auto entry.
type QualityList struct {
	entries   []FormatEntry
	selectors map[string]string
	selected  int
}

// NewQualityList builds a list with the Auto entry followed by entries.
// Auto is selected.
func NewQualityList(autoLabel string, entries []FormatEntry) QualityList {
	all := make([]FormatEntry, 0, len(entries)+1)
	all = append(all, FormatEntry{Label: autoLabel})
	selectors := map[string]string{autoLabel: ""}

	for _, e := range entries {
		if _, dup := selectors[e.Label]; dup {
			continue
		}
		selectors[e.Label] = e.Selector
		all = append(all, e)
	}

	return QualityList{entries: all, selectors: selectors}
}

// Placeholder returns the list holding only the Auto entry for mode.
func Placeholder(mode Mode, maxHeight int) QualityList {
	return NewQualityList(AutoLabel(mode, maxHeight), nil)
}

// Labels returns the displayed labels in order.
func (q QualityList) Labels() []string {
	labels := make([]string, len(q.entries))
	for i, e := range q.entries {
		labels[i] = e.Label
	}
	return labels
}

// Entries returns a copy of the entries in order.
func (q QualityList) Entries() []FormatEntry {
	return append([]FormatEntry(nil), q.entries...)
}

// Len returns the number of entries, Auto included.
func (q QualityList) Len() int {
	return len(q.entries)
}

// Index returns the position of the selected entry.
func (q QualityList) Index() int {
	return q.selected
}

// Selected returns the selected entry.
func (q QualityList) Selected() FormatEntry {
	if len(q.entries) == 0 {
		return FormatEntry{}
	}
	return q.entries[q.selected]
}

// Selector returns the selector mapped to label.
func (q QualityList) Selector(label string) (string, bool) {
	s, ok := q.selectors[label]
	return s, ok
}

// Select makes the entry with label current.
func (q *QualityList) Select(label string) bool {
	for i, e := range q.entries {
		if e.Label == label {
			q.selected = i
			return true
		}
	}
	return false
}

// Move shifts the selection by delta, clamped to the list bounds.
func (q *QualityList) Move(delta int) {
	if len(q.entries) == 0 {
		return
	}
	q.selected += delta
	if q.selected < 0 {
		q.selected = 0
	}
	if q.selected >= len(q.entries) {
		q.selected = len(q.entries) - 1
	}
}

// Resolve finds the selector for a user supplied choice: a label from the
// list, or a raw format id that appears as a selector.
func (q QualityList) Resolve(choice string) (string, bool) {
	if choice == "" {
		return "", true
	}
	if s, ok := q.selectors[choice]; ok {
		return s, true
	}
	for _, e := range q.entries {
		if e.Selector != "" && e.Selector == choice {
			return e.Selector, true
		}
	}
	return "", false
}
