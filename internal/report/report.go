// Package report exports the location index as a CSV file.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
)

// Header is the first CSV row.
var Header = []string{"uniquelocationid", "name", "latitude", "longitude", "linkedEvents", "patchedEvents"}

// Writer writes reports into a directory.
type Writer struct {
	dir string
	now func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the time used in file names.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates a Writer for dir. An empty dir means the working directory.
func NewWriter(dir string, opts ...Option) *Writer {
	if dir == "" {
		dir = constants.DefaultReportDir
	}
	w := &Writer{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FileName returns the report file name for t.
func FileName(t time.Time) string {
	return constants.ReportFilePrefix + t.Format(constants.TimeFormatFilename) + ".csv"
}

// Write creates the report file and returns its path.
func (w *Writer) Write(locs []*locations.Location) (string, error) {
	if err := os.MkdirAll(w.dir, constants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", w.dir, err)
	}

	path := filepath.Join(w.dir, FileName(w.now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return "", errors.WrapIO("create", path, err)
	}

	if err := Encode(f, locs); err != nil {
		_ = f.Close()
		return "", errors.WrapIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return "", errors.WrapIO("write", path, err)
	}
	return path, nil
}

// Encode writes the header and one row per location, in order.
func Encode(out io.Writer, locs []*locations.Location) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, loc := range locs {
		if err := cw.Write(Row(loc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders one location.
func Row(loc *locations.Location) []string {
	return []string{
		loc.CanonicalID,
		loc.Name,
		formatCoord(loc.Latitude),
		formatCoord(loc.Longitude),
		strings.Join(loc.EventIDs(), ","),
		strings.Join(loc.PatchedEventIDs(), ","),
	}
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
