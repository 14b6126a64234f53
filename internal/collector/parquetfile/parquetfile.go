// Package parquetfile loads bars from a single Parquet file written by
// bars.WriteFile.
package parquetfile

import (
	"context"
	"errors"
	"os"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/storage/bars"
)

// File implements collector.Source over one Parquet file.
type File struct {
	path string
}

// New creates a source reading path.
func New(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string {
	return "parquet"
}

func (f *File) FetchBars(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.WrapError(core.ErrCancelled, err)
	}
	all, err := bars.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapError(core.ErrNotFound, err)
		}
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}
	selected := core.Normalize(all, req.Start, req.End)
	if len(selected) == 0 {
		return nil, core.Errorf(core.ErrDataUnavailable, "no bars in %s for the requested range", f.path)
	}
	return core.NewSeries(req.Symbol, req.Interval, selected)
}
