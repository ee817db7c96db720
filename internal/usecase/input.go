package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"finetune-orchestrator/internal/domain"
)

// Upload descriptors are written next to the datasets by the (external)
// upload pipeline once an artifact has been pushed to the remote API.
const (
	repairedDescriptor    = "repaired_upload.json"
	quarantinedDescriptor = "quarantined_upload.json"
)

type uploadDescriptor struct {
	FileID string `json:"file_id"`
	Bytes  int64  `json:"bytes"`
}

type inputSource struct {
	name    string
	resolve func() (string, bool)
}

// ResolveTrainingFile picks exactly one training-file reference for the
// lineage by fixed precedence: an explicit override, then the repaired
// dataset's upload, then the quarantined dataset's upload when it clears the
// minimum-size floor. Returns domain.ErrNoAcceptableInput when nothing
// qualifies. The chosen reference is immutable for the whole lineage.
func ResolveTrainingFile(override, artifactDir string, minQuarantinedBytes int64) (string, error) {
	sources := []inputSource{
		{
			name: "override",
			resolve: func() (string, bool) {
				return override, override != ""
			},
		},
		{
			name: "repaired",
			resolve: func() (string, bool) {
				d, err := readUploadDescriptor(filepath.Join(artifactDir, repairedDescriptor))
				if err != nil || d.FileID == "" {
					return "", false
				}
				return d.FileID, true
			},
		},
		{
			name: "quarantined",
			resolve: func() (string, bool) {
				d, err := readUploadDescriptor(filepath.Join(artifactDir, quarantinedDescriptor))
				if err != nil || d.FileID == "" || d.Bytes < minQuarantinedBytes {
					return "", false
				}
				return d.FileID, true
			},
		},
	}

	for _, src := range sources {
		if ref, ok := src.resolve(); ok {
			return ref, nil
		}
	}
	return "", domain.ErrNoAcceptableInput
}

func readUploadDescriptor(path string) (*uploadDescriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d uploadDescriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &d, nil
}
