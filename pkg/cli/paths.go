package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the voxpal directory structure.
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base directory (~/.voxpal).
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.voxpal/config.yaml).
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// TranscriptDir returns the transcript database directory
// (~/.voxpal/transcripts).
func (p *Paths) TranscriptDir() string {
	return filepath.Join(p.BaseDir(), "transcripts")
}

// RecordingsDir returns the recording archive root (~/.voxpal/recordings).
func (p *Paths) RecordingsDir() string {
	return filepath.Join(p.BaseDir(), "recordings")
}

// LogDir returns the log directory (~/.voxpal/logs).
func (p *Paths) LogDir() string {
	return filepath.Join(p.BaseDir(), "logs")
}

// EnsureTranscriptDir creates the transcript directory if needed.
func (p *Paths) EnsureTranscriptDir() error {
	return os.MkdirAll(p.TranscriptDir(), 0755)
}

// EnsureRecordingsDir creates the recordings directory if needed.
func (p *Paths) EnsureRecordingsDir() error {
	return os.MkdirAll(p.RecordingsDir(), 0755)
}

// EnsureLogDir creates the log directory if needed.
func (p *Paths) EnsureLogDir() error {
	return os.MkdirAll(p.LogDir(), 0755)
}

// LogPath returns a path within the log directory.
func (p *Paths) LogPath(name string) string {
	return filepath.Join(p.LogDir(), name)
}
