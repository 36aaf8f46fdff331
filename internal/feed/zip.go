package feed

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// archiveEntry is a reader over a single file inside a zip archive that
// closes the archive along with the entry.
type archiveEntry struct {
	io.Reader
	closers []io.Closer
}

func (a *archiveEntry) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openSource opens a feed source for streaming. A .zip path is opened as an
// archive and the entry matching the archive's base name (allCountries.zip
// holds allCountries.txt) is streamed without extraction; any other path is
// opened as a plain text file. Returns the reader and the uncompressed size
// for progress reporting.
func openSource(path string) (io.ReadCloser, int64, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return openZipEntry(path, entryName(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "feed: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, eris.Wrapf(err, "feed: stat %s", path)
	}
	return f, info.Size(), nil
}

// entryName maps an archive path to the dump file it contains.
func entryName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
}

func openZipEntry(path, name string) (io.ReadCloser, int64, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "feed: open archive %s", path)
	}

	for _, f := range r.File {
		if f.Name != name || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			r.Close()
			return nil, 0, eris.Wrapf(err, "feed: open entry %s", name)
		}
		return &archiveEntry{
			Reader:  rc,
			closers: []io.Closer{rc, r},
		}, int64(f.UncompressedSize64), nil
	}

	r.Close()
	return nil, 0, eris.Errorf("feed: entry %q not found in %s", name, path)
}
