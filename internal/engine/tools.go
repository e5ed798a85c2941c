package engine

import (
	"fmt"
	"os/exec"
)

// ToolStatus is the result of looking a binary up on PATH.
type ToolStatus struct {
	Name string
	Path string
	Err  error
}

// Found reports whether the binary was located.
func (s ToolStatus) Found() bool {
	return s.Err == nil
}

// LookupTool resolves name on PATH.
func LookupTool(name string) ToolStatus {
	path, err := exec.LookPath(name)
	if err != nil {
		return ToolStatus{Name: name, Err: fmt.Errorf("%s not found in PATH: %w", name, err)}
	}
	return ToolStatus{Name: name, Path: path}
}

// MuxerWarning returns a warning when the muxer is missing, or "".
// Transfers are still attempted without it.
func MuxerWarning(ffmpeg string) string {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if st := LookupTool(ffmpeg); !st.Found() {
		return fmt.Sprintf("%s was not found; merged video and audio extraction may fail", ffmpeg)
	}
	return ""
}
