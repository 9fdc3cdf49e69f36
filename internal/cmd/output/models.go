package output

import (
	"io"
	"strconv"
	"strings"

	"github.com/openagenda-tools/uniqloc/pkg/locations"
)

// LocationsToTableData renders locations one per row. Wide adds the event
// lists.
func LocationsToTableData(locs []*locations.Location, wide bool) Data {
	headers := []string{"ID", "NAME", "LATITUDE", "LONGITUDE", "EVENTS", "PATCHED"}
	align := []Align{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight}
	if wide {
		headers = append(headers, "EVENT IDS")
		align = append(align, AlignLeft)
	}

	rows := make([][]string, 0, len(locs))
	for _, loc := range locs {
		id := loc.CanonicalID
		if id == "" {
			id = "-"
		}
		patched := loc.PatchedEventIDs()
		row := []string{
			id,
			loc.Name,
			coord(loc.Latitude),
			coord(loc.Longitude),
			strconv.Itoa(len(loc.LinkedEvents)),
			strconv.Itoa(len(patched)),
		}
		if wide {
			row = append(row, strings.Join(loc.EventIDs(), ","))
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// FormatLocations writes locs to w in format.
func FormatLocations(w io.Writer, locs []*locations.Location, format Format) error {
	if locs == nil {
		locs = []*locations.Location{}
	}
	var data any = locs
	if format == FormatTable || format == FormatWide || format == "" {
		data = LocationsToTableData(locs, format == FormatWide)
	}
	return NewFormatter(format).Format(w, data)
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
