package dump

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/achilleasa/treelet/errors"
	"github.com/achilleasa/treelet/treelet"
)

const (
	headerFileName           = "HEADER"
	staticAllocationFileName = "STATIC0_pre"
	treeletFilePattern       = "treelet_%08d.bin"
)

// WriteDir writes result's treelets, header and static allocation table to
// dir as a directory of flat files, one per record (spec section 4.5,
// point 4). Adapted from the teacher's scene/writer zip container: a real
// archive format buys nothing here since every record is already
// independently addressable by treelet id (C6 loads one at a time), so a
// plain directory replaces archive/zip + encoding/gob outright.
func WriteDir(dir string, result *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errors.IoError{Path: dir, Err: err}
	}

	for _, t := range result.GeometryTreelets {
		if err := writeTreelet(dir, t); err != nil {
			return err
		}
	}
	for _, t := range result.MaterialTreelets {
		if err := writeTreelet(dir, t); err != nil {
			return err
		}
	}

	headerPath := filepath.Join(dir, headerFileName)
	if err := os.WriteFile(headerPath, EncodeHeader(result.Header), 0o644); err != nil {
		return &errors.IoError{Path: headerPath, Err: err}
	}

	staticPath := filepath.Join(dir, staticAllocationFileName)
	if err := os.WriteFile(staticPath, EncodeStaticAllocation(result.StaticAllocation), 0o644); err != nil {
		return &errors.IoError{Path: staticPath, Err: err}
	}
	return nil
}

func writeTreelet(dir string, t *treelet.Treelet) error {
	path := treeletPath(dir, t.ID)
	if err := os.WriteFile(path, treelet.Encode(t), 0o644); err != nil {
		return &errors.IoError{Path: path, Err: err}
	}
	return nil
}

func treeletPath(dir string, id uint32) string {
	return filepath.Join(dir, fmt.Sprintf(treeletFilePattern, id))
}

// DirLoader implements residency.Loader by reading treelet records
// previously written by WriteDir.
type DirLoader struct {
	dir string
}

// NewDirLoader returns a loader serving treelet files out of dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

// Load reads the on-disk record for id.
func (l *DirLoader) Load(id uint32) ([]byte, error) {
	path := treeletPath(l.dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.IoError{Path: path, Err: err}
	}
	return data, nil
}

// ReadHeader loads the HEADER record dumped alongside the treelet files.
func ReadHeader(dir string) (Header, error) {
	path := filepath.Join(dir, headerFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, &errors.IoError{Path: path, Err: err}
	}
	return DecodeHeader(data)
}

// ReadStaticAllocation loads the STATIC0_pre table dumped alongside the
// treelet files.
func ReadStaticAllocation(dir string) ([]StaticAllocationEntry, error) {
	path := filepath.Join(dir, staticAllocationFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.IoError{Path: path, Err: err}
	}
	return DecodeStaticAllocation(data)
}
