// Package report turns saved monitoring sessions into exports: the CSV
// ledger, summary statistics, and chart/plot renderings.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/roadmetrics/trafficwatch/internal/db"
)

// CSVHeader is the session ledger column layout. One row is appended per
// saved session.
var CSVHeader = []string{"Timestamp", "Source", "Duration", "Cars", "Motorcycles", "Buses", "Trucks", "Total"}

// formatDuration renders a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func sessionRecord(s db.Session) []string {
	return []string{
		s.SavedAt.Format("2006-01-02 15:04:05"),
		s.Source,
		formatDuration(s.Duration),
		strconv.Itoa(s.Cars),
		strconv.Itoa(s.Motorcycles),
		strconv.Itoa(s.Buses),
		strconv.Itoa(s.Trucks),
		strconv.Itoa(s.Total),
	}
}

// AppendSessionCSV appends one session row to the CSV ledger at path,
// writing the header first when the file does not exist yet.
func AppendSessionCSV(path string, s db.Session) error {
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(CSVHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}
	if err := w.Write(sessionRecord(s)); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// WriteSessionsCSV writes a full CSV export (header plus one row per
// session) to w.
func WriteSessionsCSV(w io.Writer, sessions []db.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range sessions {
		if err := cw.Write(sessionRecord(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
