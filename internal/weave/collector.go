package weave

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/specs-feup/weaver/internal/model"
)

// OutputDir is the subdirectory of a session the tool writes its results to.
const OutputDir = "woven_code"

// Collect reads every regular file of sessionDir/woven_code in directory
// listing order. The listing is not sorted, the main file fallback picks
// whatever entry the filesystem returns first.
//
// A missing or unreadable output directory returns an error together with a
// failed result.
func Collect(sessionDir, sourceFilename string) (model.JobResult, error) {
	dir := filepath.Join(sessionDir, OutputDir)
	entries, err := readDirUnsorted(dir)
	if err != nil {
		return model.FailedResult(""), fmt.Errorf("reading directory %s: %w", dir, err)
	}

	res := model.JobResult{
		FileNames:     make([]string, 0, len(entries)),
		Outputs:       make([]string, 0, len(entries)),
		MainFileIndex: -1,
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return model.FailedResult(""), fmt.Errorf("reading output %s: %w", entry.Name(), err)
		}
		if sourceFilename != "" && entry.Name() == sourceFilename {
			res.MainFileIndex = len(res.FileNames)
		}
		res.FileNames = append(res.FileNames, entry.Name())
		res.Outputs = append(res.Outputs, string(data))
	}
	if res.MainFileIndex == -1 && len(res.FileNames) > 0 {
		res.MainFileIndex = 0
	}
	return res, nil
}

// readDirUnsorted is os.ReadDir without the sort.
func readDirUnsorted(dir string) ([]os.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir(-1)
}
