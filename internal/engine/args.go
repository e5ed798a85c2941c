package engine

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/kilimcininkoroglu/dogan/internal/media"
)

// OutputTemplate is the file name template handed to the transfer tool.
const OutputTemplate = "%(title)s.%(ext)s"

const (
	videoFallback = "ba/b[ext=mp4]"
	audioChain    = "ba[ext=m4a]/ba[ext=mp3]"
)

// FormatSelector returns the -f expression for a job.
func FormatSelector(mode media.Mode, selector string, maxHeight int) string {
	if mode == media.ModeAudio {
		if selector != "" {
			return selector + "/" + audioChain
		}
		return audioChain
	}

	if selector != "" {
		return selector + "+" + videoFallback
	}
	if maxHeight <= 0 {
		maxHeight = media.DefaultMaxHeight
	}
	return fmt.Sprintf("bv*[ext=mp4][height<=%d]+%s", maxHeight, videoFallback)
}

// SortDirective returns the -S expression for a mode.
func SortDirective(mode media.Mode) string {
	if mode == media.ModeAudio {
		return "asr,abr"
	}
	return "ext:webm:none"
}

// Args returns the transfer command line for job, without the binary.
func (r *Runner) Args(job Job) []string {
	args := []string{
		"-f", FormatSelector(job.Mode, job.Selector, r.maxHeight),
		"-S", SortDirective(job.Mode),
		"--no-playlist",
		"--newline",
		"-o", filepath.Join(job.Destination, OutputTemplate),
	}

	if r.rateLimit > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(r.rateLimit, 10))
	}
	if r.proxy != "" {
		args = append(args, "--proxy", r.proxy)
	}
	if r.ffmpeg != "" {
		args = append(args, "--ffmpeg-location", r.ffmpeg)
	}
	args = append(args, r.extraArgs...)

	return append(args, "--", job.URL)
}
