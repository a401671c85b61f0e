package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"cardsync/internal/logging"
)

const partialSuffix = ".partial"

// errSkipped marks files never attempted because the batch was canceled.
var errSkipped = errors.New("skipped: sync canceled")

// Result records one copy attempt.
type Result struct {
	Source      string
	Destination string
	Bytes       int64
	Duration    time.Duration
	Err         error
}

// OK reports whether the copy succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Skipped reports whether the file was never attempted because the batch
// was canceled.
func (r Result) Skipped() bool { return errors.Is(r.Err, errSkipped) }

// CopyAll copies each file into dest under its basename, sequentially. A
// failed copy is logged and the batch moves on. onResult, if set, is called
// after every file. Files left when ctx is canceled are reported as skipped.
func CopyAll(ctx context.Context, copier Copier, files []string, dest string, logger *slog.Logger, onResult func(Result)) []Result {
	logger = logging.NewComponentLogger(logger, "transfer")
	results := make([]Result, 0, len(files))
	for i, src := range files {
		target := filepath.Join(dest, filepath.Base(src))
		var res Result
		if ctx.Err() != nil {
			res = Result{Source: src, Destination: target, Err: errSkipped}
		} else {
			logger.Info("copying video",
				logging.String("source", src),
				logging.String("destination", target),
				logging.Int("index", i+1),
				logging.Int("total", len(files)),
			)
			res = copyOne(ctx, copier, src, target)
			if res.OK() {
				logger.Info("video copied",
					logging.String("source", src),
					logging.String("size", humanize.Bytes(uint64(res.Bytes))),
					logging.Duration("elapsed", res.Duration),
					logging.String(logging.FieldEventType, "video_copied"),
				)
			} else {
				logging.ErrorWithContext(logger, "video copy failed; continuing with next file", "video_copy_failed",
					logging.String("source", src),
					logging.String("destination", target),
					logging.Error(res.Err),
					logging.String(logging.FieldErrorHint, "check archive free space and card health"),
				)
			}
		}
		results = append(results, res)
		if onResult != nil {
			onResult(res)
		}
	}
	return results
}

func copyOne(ctx context.Context, copier Copier, src, target string) Result {
	start := time.Now()
	res := Result{Source: src, Destination: target}
	partial := target + partialSuffix

	written, err := copier.Copy(ctx, src, partial)
	if err == nil {
		if renameErr := os.Rename(partial, target); renameErr != nil {
			err = fmt.Errorf("move into place: %w", renameErr)
		}
	}
	if err != nil {
		_ = os.Remove(partial)
		res.Err = err
	} else {
		res.Bytes = written
	}
	res.Duration = time.Since(start)
	return res
}
