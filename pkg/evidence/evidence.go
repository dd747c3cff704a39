// Package evidence exports finished pipeline runs to disk for later review.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/zen-systems/socflow/pkg/adapter"
	"github.com/zen-systems/socflow/pkg/completion"
	"github.com/zen-systems/socflow/pkg/pipeline"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID             string            `json:"id"`
	Pipeline       string            `json:"pipeline"`
	Status         string            `json:"status"`
	FailedStage    string            `json:"failed_stage,omitempty"`
	Error          string            `json:"error,omitempty"`
	AlertHash      string            `json:"alert_hash"`
	AlertRef       string            `json:"alert_ref,omitempty"`
	Order          []string          `json:"order"`
	Terminal       string            `json:"terminal"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	DurationMillis int64             `json:"duration_ms"`
	Usage          adapter.Usage     `json:"usage"`
	Cost           *pipeline.Cost    `json:"cost,omitempty"`
	ToolVersions   map[string]string `json:"tool_versions,omitempty"`
}

// StageRecord captures evidence for a single stage.
type StageRecord struct {
	ID              string                      `json:"id"`
	DependsOn       []string                    `json:"depends_on,omitempty"`
	Provider        string                      `json:"provider,omitempty"`
	Model           string                      `json:"model,omitempty"`
	Output          string                      `json:"output"`
	OutputHash      string                      `json:"output_hash"`
	CompletedAt     time.Time                   `json:"completed_at"`
	DurationMillis  int64                       `json:"duration_ms"`
	Usage           adapter.Usage               `json:"usage"`
	CapabilityCalls []completion.CapabilityCall `json:"capability_calls,omitempty"`
}

// Writer writes evidence bundles to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	for _, dir := range []string{runDir, filepath.Join(runDir, "stages"), filepath.Join(runDir, "blobs")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		if err := os.Chmod(dir, 0700); err != nil {
			return nil, err
		}
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStage writes a stage record to stages/<stage>.json.
func (w *Writer) WriteStage(record StageRecord) error {
	if record.ID == "" || strings.ContainsAny(record.ID, `/\`) {
		return fmt.Errorf("invalid stage id %q", record.ID)
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%s.json", record.ID))
	return writeJSON(path, record)
}

// WriteBlob stores content under blobs/<kind>-<sha256>.txt and returns the
// path relative to the run directory and the hex digest. Writing the same
// content twice yields the same reference.
func (w *Writer) WriteBlob(kind string, content []byte) (string, string, error) {
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])
	ref := filepath.ToSlash(filepath.Join("blobs", fmt.Sprintf("%s-%s.txt", sanitizeKind(kind), sha)))

	path := filepath.Join(w.runDir, filepath.FromSlash(ref))
	if _, err := os.Stat(path); err == nil {
		return ref, sha, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", "", err
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", "", err
	}
	return ref, sha, nil
}

// WriteFile stores an auxiliary file such as a rendered report.
func (w *Writer) WriteFile(name string, content []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(w.runDir, name)
	return path, os.WriteFile(path, content, 0600)
}

// Export writes run.json, one stage record per completed stage, and the alert
// as a blob. It returns the run directory.
func Export(baseDir string, run *pipeline.Run) (string, error) {
	if run == nil {
		return "", fmt.Errorf("run is required")
	}
	w, err := NewWriter(baseDir, run.ID)
	if err != nil {
		return "", err
	}

	alertRef, alertHash, err := w.WriteBlob("alert", []byte(run.Alert))
	if err != nil {
		return "", fmt.Errorf("write alert: %w", err)
	}

	record := RunRecord{
		ID:             run.ID,
		Status:         string(run.Status),
		FailedStage:    run.FailedStage,
		AlertHash:      alertHash,
		AlertRef:       alertRef,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		DurationMillis: run.Duration().Milliseconds(),
		Usage:          run.Usage(),
		Cost:           run.Cost,
		ToolVersions:   map[string]string{"go": runtime.Version()},
	}
	if run.Pipeline != nil {
		record.Pipeline = run.Pipeline.Name()
		record.Order = run.Pipeline.Order()
		record.Terminal = run.Pipeline.Terminal()
	}
	if run.Err != nil {
		record.Error = run.Err.Error()
	}
	if err := w.WriteRun(record); err != nil {
		return "", err
	}

	for _, out := range run.Outputs() {
		stage := StageRecord{
			ID:              out.StageID,
			Provider:        out.Provider,
			Model:           out.Model,
			Output:          out.Text,
			OutputHash:      hashString(out.Text),
			CompletedAt:     out.CompletedAt,
			DurationMillis:  out.Duration.Milliseconds(),
			Usage:           out.Usage,
			CapabilityCalls: out.CapabilityCalls,
		}
		if run.Pipeline != nil {
			if s, ok := run.Pipeline.Stage(out.StageID); ok {
				stage.DependsOn = s.DependsOn
			}
		}
		if err := w.WriteStage(stage); err != nil {
			return "", err
		}
	}
	return w.RunDir(), nil
}

func sanitizeKind(kind string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(kind) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "blob"
	}
	return b.String()
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
