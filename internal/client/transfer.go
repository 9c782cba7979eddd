package client

import (
	"bh/internal/application/common"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// ResolveArtifactOutput returns the local path an artifact called name is written to.
// Only the last element of name is used: "dir/report.zip" and
// "../report.zip" both become "report.zip", so a server-chosen name cannot
// place files outside the output directory. An existing directory gets that
// base name joined to it, any other output is used as given, and an empty
// output means the current directory.
func ResolveArtifactOutput(output, name string) (string, error) {
	return resolveOutput(output, filepath.Base(filepath.FromSlash(name)))
}

// ResolveBlobOutput returns the local path the blob at src is written to,
// following the same rules as ResolveArtifactOutput.
func ResolveBlobOutput(output, src string) (string, error) {
	return resolveOutput(output, path.Base(src))
}

func resolveOutput(output, base string) (string, error) {
	if base == "" || base == "." || base == "/" || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("cannot derive a file name from %q", base)
	}

	if output == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, base), nil
	}

	info, err := os.Stat(output)
	if err == nil && info.IsDir() {
		return filepath.Join(output, base), nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return output, nil
}

// IsDirectory reports whether p names an existing directory.
func IsDirectory(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// WriteFile streams r into a newly created file at dst and returns the bytes written.
// A partially written file is removed.
func WriteFile(ctx context.Context, r io.Reader, dst string) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, common.WrapServiceError(common.OpCreateFile, err)
	}

	n, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return n, common.WrapServiceError(common.OpWriteFile, err)
	}
	return n, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
