package storage

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
)

// LocalExporter writes finished PDFs to a directory on disk. Used when no
// S3 bucket is configured.
type LocalExporter struct {
    dir string
}

func NewLocalExporter(dir string) *LocalExporter {
    if dir == "" { dir = filepath.Join("uploads", "results") }
    return &LocalExporter{dir: dir}
}

// Export writes the PDF to dir/jobID_filename and returns the local path.
func (e *LocalExporter) Export(_ context.Context, jobID, filename string, data []byte) (string, error) {
    if err := os.MkdirAll(e.dir, 0o755); err != nil { return "", err }
    p := filepath.Join(e.dir, fmt.Sprintf("%s_%s", jobID, filename))
    if err := os.WriteFile(p, data, 0o644); err != nil { return "", err }
    return p, nil
}
