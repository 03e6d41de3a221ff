// Package rnxio provides a transparent-decompression file opener shared by
// the RINEX Nav/Obs, SP3 and ANTEX stream readers: RINEX-family products
// are routinely distributed gzipped or Unix-compressed, and every one of
// this module's format decoders just wants a plain io.Reader.
package rnxio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
)

// compressedExt lists the filename suffixes this opener recognizes as
// compressed, mirroring the teacher's cmd/rnxgo decompress-before-parse
// step (archiver.DecompressFile) generalized to every stream reader.
var compressedExt = []string{".gz", ".Z", ".zip", ".bz2"}

// isCompressed reports whether path carries one of compressedExt's suffixes.
func isCompressed(path string) bool {
	for _, ext := range compressedExt {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// tempFileReader wraps a decompressed temp file so Close both closes the
// file handle and removes the temp file backing it.
type tempFileReader struct {
	*os.File
	tmpPath string
}

func (r *tempFileReader) Close() error {
	cerr := r.File.Close()
	rerr := os.Remove(r.tmpPath)
	if cerr != nil {
		return cerr
	}
	return rerr
}

// Open returns a reader for path, transparently decompressing it first if
// its extension names a compressed format archiver/v3 recognizes
// (".gz"/".zip"/".bz2"; ".Z" Unix-compress support depends on the formats
// archiver/v3 registers and is not guaranteed — see DESIGN.md). The caller
// must Close the returned reader.
func Open(path string) (io.ReadCloser, error) {
	if !isCompressed(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("rnxio: open %s: %w", path, err)
		}
		return f, nil
	}

	tmp, err := os.CreateTemp("", "rnxio-*"+filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	if err != nil {
		return nil, fmt.Errorf("rnxio: create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := archiver.DecompressFile(path, tmpPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rnxio: decompress %s: %w", path, err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rnxio: open decompressed %s: %w", tmpPath, err)
	}
	return &tempFileReader{File: f, tmpPath: tmpPath}, nil
}
