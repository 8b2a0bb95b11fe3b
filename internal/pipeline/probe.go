package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// FileActivityProbe decides a session is still receiving while anything
// under its staging directory was modified within the quiet period.
type FileActivityProbe struct {
	QuietPeriod time.Duration
}

func NewFileActivityProbe(quietPeriod time.Duration) *FileActivityProbe {
	return &FileActivityProbe{QuietPeriod: quietPeriod}
}

func (p *FileActivityProbe) IsReceiving(ctx context.Context, location string) (bool, error) {
	cutoff := time.Now().Add(-p.QuietPeriod)
	active := false

	err := filepath.WalkDir(location, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			active = true
			return filepath.SkipAll
		}
		return nil
	})
	if os.IsNotExist(err) {
		// Nothing on disk yet; the uploader registered the record before
		// writing any files.
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return active, nil
}
