package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataFilename is written into the output directory after every run.
// Its name never matches the artifact convention, so the pruner ignores it.
const MetadataFilename = "metadata.json"

// RunMetadata is the on-disk record of one orchestrator run.
type RunMetadata struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Backups     []BackupResult `json:"backups"`
}

// Write serializes the metadata into dirPath as indented JSON.
func (m *RunMetadata) Write(dirPath string) error {
	filePath := filepath.Join(dirPath, MetadataFilename)

	jsonFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create metadata file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	encoder := json.NewEncoder(jsonFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("encode metadata JSON: %w", err)
	}
	return nil
}

// Load reads run metadata back from dirPath.
func (m *RunMetadata) Load(dirPath string) error {
	filePath := filepath.Join(dirPath, MetadataFilename)

	jsonFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("couldn't open metadata file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	decoder := json.NewDecoder(jsonFile)
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("decode metadata JSON: %w", err)
	}
	return nil
}
