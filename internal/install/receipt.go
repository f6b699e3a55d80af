package install

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// MarkerName is the completion receipt written as the last step of staging.
// Its presence inside a destination directory is what marks the install as
// complete; a destination without it is treated as absent.
const MarkerName = ".install-complete"

// Receipt records a completed install. It is written inside the staging
// directory before the atomic swap, so it becomes visible only together
// with the files it describes.
type Receipt struct {
	SchemaVersion   int       `json:"schema_version"`
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Platform        string    `json:"platform"`
	ArtifactVersion string    `json:"artifact_version"`
	InstalledAt     time.Time `json:"installed_at"`
	Files           []string  `json:"files"`
}

func newReceipt(kind, platformID, version string, files []string) *Receipt {
	return &Receipt{
		SchemaVersion:   1,
		ID:              uuid.New().String(),
		Kind:            kind,
		Platform:        platformID,
		ArtifactVersion: version,
		InstalledAt:     time.Now().UTC(),
		Files:           files,
	}
}

// write persists the receipt into dir using write-then-rename, then syncs
// the directory so the marker is durable before the swap makes it visible.
func (r *Receipt) write(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	finalPath := filepath.Join(dir, MarkerName)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename receipt: %w", err)
	}

	if df, err := os.Open(dir); err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync receipt directory: %w", syncErr)
		}
		df.Close()
	}
	return nil
}

// ReadReceipt loads the completion receipt from an install directory.
// An error means the directory is not a valid completed install.
func ReadReceipt(dir string) (*Receipt, error) {
	data, err := os.ReadFile(filepath.Join(dir, MarkerName))
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &r, nil
}
