package local

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// File is one rendered output document.
type File struct {
	Path string
	Data []byte
}

// ReadFile reads the whole file at path.
func ReadFile(fsys afero.Fs, path string) ([]byte, error) {
	return afero.ReadFile(fsys, path)
}

// WriteAtomic writes every file to a temporary sibling and renames them into
// place only once all of them were written. On failure the temporary files are
// removed and no target is left half-written.
func WriteAtomic(fsys afero.Fs, files []File) (err error) {
	temps := make([]string, 0, len(files))
	defer func() {
		if err == nil {
			return
		}
		for _, tmp := range temps {
			if rmErr := fsys.Remove(tmp); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = multierror.Append(err, rmErr)
			}
		}
	}()

	for _, f := range files {
		tmp, werr := writeTemp(fsys, f)
		if werr != nil {
			return werr
		}
		temps = append(temps, tmp)
	}
	for i, f := range files {
		if rerr := fsys.Rename(temps[i], f.Path); rerr != nil {
			return rerr
		}
	}
	return nil
}

func writeTemp(fsys afero.Fs, f File) (string, error) {
	dir, base := filepath.Split(f.Path)
	if dir == "" {
		dir = "."
	}
	tf, err := afero.TempFile(fsys, dir, "."+base+".tmp-*")
	if err != nil {
		return "", err
	}
	name := tf.Name()
	if _, err := tf.Write(f.Data); err != nil {
		_ = tf.Close()
		_ = fsys.Remove(name)
		return "", err
	}
	if err := tf.Close(); err != nil {
		_ = fsys.Remove(name)
		return "", err
	}
	return name, nil
}

// Sink stores rendered documents on a filesystem.
type Sink struct {
	Fs afero.Fs
}

func (s Sink) Store(ctx context.Context, files []File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteAtomic(s.Fs, files)
}
