package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mgpai22/cutline/internal/export"
	"github.com/mgpai22/cutline/internal/timeline"
)

// Output is one written (or skipped) file.
type Output struct {
	Format  export.Format
	Path    string
	Skipped bool
}

// Write encodes tl in every format concurrently into outDir/base<ext>. The
// first failure is returned after all writers finish. Subtitle formats are
// skipped when the timeline has no cues.
func (e *Exporter) Write(
	ctx context.Context,
	tl *timeline.Timeline,
	formats []export.Format,
	outDir, base string,
) ([]Output, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputs := make([]Output, len(formats))
	encoders := make([]export.Encoder, len(formats))
	for i, f := range formats {
		enc, err := export.New(f, e.Export)
		if err != nil {
			return nil, err
		}
		encoders[i] = enc
		outputs[i] = Output{Format: f, Path: filepath.Join(outDir, base+f.Extension())}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := range formats {
		if formats[i].NeedsCues() && !tl.HasCues() {
			outputs[i].Skipped = true
			e.log().Warnw("Skipping subtitle format without captions", "format", formats[i])
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := writeFile(outputs[i].Path, encoders[i], tl); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to write %s: %w", formats[i], err)
				}
				mu.Unlock()
				return
			}
			e.log().Infow("Wrote export", "format", formats[i], "path", outputs[i].Path)
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// writeFile encodes into a temp file next to path and renames it into place.
func writeFile(path string, enc export.Encoder, tl *timeline.Timeline) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = enc.Encode(w, tl); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
