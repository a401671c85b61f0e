// Package fileutil holds the in-process file copy routines used by the
// native and verified copy methods.
package fileutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
)

// ctxReader stops a copy between reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// CopyFile streams src to dst (created or truncated, mode 0o644) and returns
// the number of bytes written. The destination is synced before returning.
func CopyFile(ctx context.Context, src, dst string) (int64, error) {
	return copyHashing(ctx, src, dst, nil)
}

// CopyFileVerified copies src to dst, then re-reads dst and compares its
// size and SHA-256 with what was read from src. dst is removed on mismatch.
func CopyFileVerified(ctx context.Context, src, dst string) (int64, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	srcHash := sha256.New()
	written, err := copyHashing(ctx, src, dst, srcHash)
	if err != nil {
		return written, err
	}
	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return written, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}

	dstSum, err := fileSHA256(ctx, dst)
	if err != nil {
		_ = os.Remove(dst)
		return written, fmt.Errorf("hash destination: %w", err)
	}
	if !bytes.Equal(srcHash.Sum(nil), dstSum) {
		_ = os.Remove(dst)
		return written, fmt.Errorf("copy hash mismatch: %s differs from source after copy", dst)
	}
	return written, nil
}

func copyHashing(ctx context.Context, src, dst string, h hash.Hash) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	var reader io.Reader = ctxReader{ctx: ctx, r: in}
	if h != nil {
		reader = io.TeeReader(reader, h)
	}
	written, err := io.Copy(out, reader)
	if err != nil {
		return written, err
	}
	if err := out.Sync(); err != nil {
		return written, err
	}
	return written, out.Close()
}

func fileSHA256(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, ctxReader{ctx: ctx, r: f}); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
