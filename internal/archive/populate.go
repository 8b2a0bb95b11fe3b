package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/pipeline"
)

// ManifestName is the metadata file the uploader writes alongside the
// session's scan directories.
const ManifestName = "session.json"

type manifest struct {
	Label    string `json:"label"`
	Modality string `json:"modality"`
	Scans    []struct {
		Label string `json:"label"`
		Type  string `json:"type"`
	} `json:"scans"`
}

// ManifestPopulator builds a structured session from the session.json
// manifest in a staging directory, counting the files of each scan on disk.
type ManifestPopulator struct{}

var _ pipeline.MetadataPopulator = (*ManifestPopulator)(nil)

func NewManifestPopulator() *ManifestPopulator {
	return &ManifestPopulator{}
}

func (p *ManifestPopulator) Populate(ctx context.Context, sourceDir, project string) (*model.StructuredSession, error) {
	data, err := os.ReadFile(filepath.Join(sourceDir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("read session manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse session manifest: %w", err)
	}
	if len(m.Scans) == 0 {
		return nil, fmt.Errorf("session manifest lists no scans")
	}

	label := m.Label
	if label == "" {
		label = filepath.Base(sourceDir)
	}

	session := &model.StructuredSession{
		ID:       uuid.NewString(),
		Label:    label,
		Project:  project,
		Modality: m.Modality,
	}

	for _, sc := range m.Scans {
		if sc.Label == "" {
			return nil, fmt.Errorf("session manifest has a scan without a label")
		}
		count, err := countFiles(filepath.Join(sourceDir, sc.Label))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", sc.Label, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("scan %s has no files", sc.Label)
		}
		session.Scans = append(session.Scans, model.Scan{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Label:     sc.Label,
			Type:      sc.Type,
			FileCount: count,
		})
	}

	return session, nil
}

func countFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
