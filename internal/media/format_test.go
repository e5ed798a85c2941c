package media

import (
	"reflect"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"video", ModeVideo, false},
		{"v", ModeVideo, false},
		{"", ModeVideo, false},
		{"Audio", ModeAudio, false},
		{"a", ModeAudio, false},
		{"podcast", ModeVideo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestReduce_Video(t *testing.T) {
	formats := []Format{
		{FormatID: "18", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Height: 360},
		{FormatID: "136", Ext: "mp4", VCodec: "avc1", ACodec: "none", Height: 720},
		{FormatID: "247", Ext: "webm", VCodec: "vp9", ACodec: "none", Height: 720},
		{FormatID: "137", Ext: "mp4", VCodec: "avc1", ACodec: "none", Height: 1080},
		{FormatID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", ABR: 128},
		{FormatID: "sb0", Ext: "mp4", VCodec: "none", ACodec: "none"},
		{FormatID: "nohd", Ext: "mp4", VCodec: "avc1"},
	}

	got := Reduce(formats, ModeVideo, "mp4")
	want := []FormatEntry{
		{Label: "1080p", Selector: "137"},
		{Label: "720p", Selector: "136"},
		{Label: "360p", Selector: "18"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reduce() = %v, want %v", got, want)
	}
}

func TestReduce_VideoFirstSeenWins(t *testing.T) {
	formats := []Format{
		{FormatID: "398", Ext: "mp4", VCodec: "av01", Height: 720},
		{FormatID: "136", Ext: "mp4", VCodec: "avc1", Height: 720},
	}

	got := Reduce(formats, ModeVideo, "")
	if len(got) != 1 {
		t.Fatalf("Reduce() returned %d entries, want 1", len(got))
	}
	if got[0].Selector != "398" {
		t.Errorf("surviving selector = %q, want 398", got[0].Selector)
	}
}

func TestReduce_Audio(t *testing.T) {
	formats := []Format{
		{FormatID: "249", Ext: "webm", VCodec: "none", ACodec: "opus", ABR: 50.4, ASR: 48000},
		{FormatID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", ABR: 129.5, ASR: 44100},
		{FormatID: "hls", Ext: "mp4", VCodec: "none", ACodec: "mp4a", ASR: 44100},
		{FormatID: "mute", Ext: "mp4", VCodec: "avc1", ACodec: "none", ABR: 256},
		{FormatID: "bare", Ext: "mp4", ACodec: "mp4a"},
		{FormatID: "141", Ext: "m4a", VCodec: "none", ACodec: "mp4a", ABR: 129.9},
	}

	got := Reduce(formats, ModeAudio, "mp4")
	want := []FormatEntry{
		{Label: "129kbps", Selector: "140"},
		{Label: "50kbps", Selector: "249"},
		{Label: "44kHz", Selector: "hls"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reduce() = %v, want %v", got, want)
	}
}

func TestReduce_AudioLabels(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   string
		keep   bool
	}{
		{"bitrate wins", Format{ACodec: "mp4a", ABR: 128, ASR: 44100}, "128kbps", true},
		{"sample rate fallback", Format{ACodec: "mp4a", ASR: 44100}, "44kHz", true},
		{"no quality signal", Format{ACodec: "mp4a"}, "", false},
		{"no audio", Format{ACodec: "none", ABR: 128}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce([]Format{tt.format}, ModeAudio, "")
			if !tt.keep {
				if len(got) != 0 {
					t.Errorf("Reduce() = %v, want no entries", got)
				}
				return
			}
			if len(got) != 1 || got[0].Label != tt.want {
				t.Errorf("Reduce() = %v, want label %q", got, tt.want)
			}
		})
	}
}

func TestReduce_UniqueDescending(t *testing.T) {
	var formats []Format
	for _, h := range []float64{480, 1440, 240, 720, 1080, 720, 144, 2160, 480} {
		formats = append(formats, Format{Ext: "mp4", VCodec: "avc1", Height: h})
	}

	got := Reduce(formats, ModeVideo, "mp4")
	seen := make(map[string]bool)
	for i, e := range got {
		if seen[e.Label] {
			t.Errorf("duplicate label %q", e.Label)
		}
		seen[e.Label] = true
		if i > 0 && LabelQuality(got[i-1].Label) <= LabelQuality(e.Label) {
			t.Errorf("entries not strictly descending at %d: %v", i, got)
		}
	}
}

func TestLabelQuality(t *testing.T) {
	tests := map[string]int{
		"1080p":               1080,
		"128kbps":             128,
		"44kHz":               44,
		"Auto (best quality)": 0,
		"":                    0,
	}
	for label, want := range tests {
		if got := LabelQuality(label); got != want {
			t.Errorf("LabelQuality(%q) = %d, want %d", label, got, want)
		}
	}
}
