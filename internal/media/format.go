// Package media discovers the encodings a URL offers and reduces them to a
// short, ranked list of qualities a user can pick from.
package media

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Mode selects what kind of stream is wanted.
type Mode int

const (
	ModeVideo Mode = iota
	ModeAudio
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeAudio {
		return "audio"
	}
	return "video"
}

// ParseMode parses "video"/"v" or "audio"/"a".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "video", "v":
		return ModeVideo, nil
	case "audio", "a":
		return ModeAudio, nil
	default:
		return ModeVideo, fmt.Errorf("unknown mode %q (want video or audio)", s)
	}
}

// DefaultContainer is the only container offered in video mode unless configured.
const DefaultContainer = "mp4"

// DefaultMaxHeight caps the automatic video selection.
const DefaultMaxHeight = 1080

// FormatEntry is one selectable quality.
// An empty Selector lets the transfer tool pick its own default.
type FormatEntry struct {
	Label    string
	Selector string
}

// IsAuto reports whether the entry defers the choice to the transfer tool.
func (e FormatEntry) IsAuto() bool {
	return e.Selector == ""
}

// Format mirrors one element of the metadata "formats" array.
// Absent fields decode to their zero value.
type Format struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext"`
	VCodec   string  `json:"vcodec"`
	ACodec   string  `json:"acodec"`
	Height   float64 `json:"height"`
	ABR      float64 `json:"abr"`
	ASR      float64 `json:"asr"`
}

// HasVideo reports whether the format carries a video stream.
// A missing codec field is treated as present.
func (f Format) HasVideo() bool {
	return f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio stream.
func (f Format) HasAudio() bool {
	return f.ACodec != "none"
}

// Info is the subset of the metadata document that is used.
type Info struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Duration float64  `json:"duration"`
	Formats  []Format `json:"formats"`
}

type ranked struct {
	entry FormatEntry
	key   int
}

// Reduce turns the raw format list into unique labels sorted by descending
// quality. When two formats share a label the first one seen wins.
func Reduce(formats []Format, mode Mode, container string) []FormatEntry {
	if container == "" {
		container = DefaultContainer
	}

	var candidates []ranked
	seen := make(map[string]bool)

	for _, f := range formats {
		var r ranked
		var ok bool
		if mode == ModeAudio {
			r, ok = audioEntry(f)
		} else {
			r, ok = videoEntry(f, container)
		}
		if !ok || seen[r.entry.Label] {
			continue
		}
		seen[r.entry.Label] = true
		candidates = append(candidates, r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].key > candidates[j].key
	})

	entries := make([]FormatEntry, len(candidates))
	for i, c := range candidates {
		entries[i] = c.entry
	}
	return entries
}

func videoEntry(f Format, container string) (ranked, bool) {
	if f.Ext != container || !f.HasVideo() {
		return ranked{}, false
	}
	height := int(f.Height)
	if height <= 0 {
		return ranked{}, false
	}
	return ranked{
		entry: FormatEntry{Label: fmt.Sprintf("%dp", height), Selector: f.FormatID},
		key:   height,
	}, true
}

func audioEntry(f Format) (ranked, bool) {
	if !f.HasAudio() {
		return ranked{}, false
	}

	var label string
	switch {
	case f.ABR > 0:
		label = fmt.Sprintf("%dkbps", int(f.ABR))
	case f.ASR > 0:
		label = fmt.Sprintf("%dkHz", int(f.ASR/1000))
	default:
		return ranked{}, false
	}

	return ranked{
		entry: FormatEntry{Label: label, Selector: f.FormatID},
		key:   LabelQuality(label),
	}, true
}

// LabelQuality returns the leading integer of a label such as "720p" or
// "128kbps", or 0 when there is none.
func LabelQuality(label string) int {
	end := 0
	for end < len(label) && label[end] >= '0' && label[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(label[:end])
	if err != nil {
		return 0
	}
	return n
}
