package weave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/specs-feup/weaver/internal/model"
)

// Exporter stores output files of a job below a directory. Names are
// resolved through an os.Root, a file name can not escape the directory.
type Exporter struct {
	root *os.Root
}

func NewExporter(path string) (*Exporter, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &Exporter{root: root}, nil
}

func (x *Exporter) Export(ctx context.Context, res model.JobResult) error {
	if x.root == nil {
		return errors.New("exporter already closed")
	}
	if len(res.FileNames) != len(res.Outputs) {
		return fmt.Errorf("malformed result: %d names, %d outputs", len(res.FileNames), len(res.Outputs))
	}

	for i, name := range res.FileNames {
		f, err := x.root.Create(name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		_, err = f.WriteString(res.Outputs[i])
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("saving %s: %w", name, err)
		}
		err = f.Close()
		if err != nil {
			return fmt.Errorf("closing %s: %w", name, err)
		}
		slog.DebugContext(ctx, "output saved", "path", name)
	}
	return nil
}

func (x *Exporter) Close() error {
	if x.root == nil {
		return errors.New("exporter already closed")
	}
	err := x.root.Close()
	x.root = nil
	return err
}
