package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/amishk599/boardfeed/internal/model"
)

// WriteStubs writes the crawl result as an indented JSON array.
func WriteStubs(w io.Writer, stubs []model.JobStub) error {
	if stubs == nil {
		stubs = []model.JobStub{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(stubs); err != nil {
		return fmt.Errorf("encode stubs: %w", err)
	}
	return nil
}

// ReadStubs reads a checkpoint written by WriteStubs.
func ReadStubs(r io.Reader) ([]model.JobStub, error) {
	var stubs []model.JobStub
	if err := json.NewDecoder(r).Decode(&stubs); err != nil {
		return nil, fmt.Errorf("decode stubs: %w", err)
	}
	return stubs, nil
}

// WriteFile writes path through a temporary file in the same directory and
// renames it into place, so readers never see a partial file.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
