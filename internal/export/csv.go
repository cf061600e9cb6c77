// Package export writes a viewer's accomplishments as CSV, either to a
// file or attached to a MIME message.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

// Header is the first row of every export.
var Header = []string{"Title", "Description", "Date", "Created At"}

// Filename returns the export file name for the given day, e.g.
// accomplishments-2024-03-07.csv.
func Filename(now time.Time) string {
	return "accomplishments-" + now.Format(model.DateLayout) + ".csv"
}

// Row renders one record. The date is written as stored; the creation
// time is rendered as M/D/YYYY in loc.
func Row(r model.Accomplishment, loc *time.Location) []string {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.In(loc).Format(model.LocaleDateLayout)
	}
	return []string{r.Title, r.Description, r.Date, created}
}

// WriteCSV writes the header and one row per record, in the order given.
// Fields containing a comma, quote or line break are quoted with inner
// quotes doubled.
func WriteCSV(w io.Writer, records []model.Accomplishment) error {
	return WriteCSVIn(w, records, time.Local)
}

// WriteCSVIn is WriteCSV with creation times rendered in loc.
func WriteCSVIn(w io.Writer, records []model.Accomplishment, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(Row(r, loc)); err != nil {
			return fmt.Errorf("writing csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
