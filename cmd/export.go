package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/evgrid/pkg/export"
)

// writeExport writes v as JSON or, for a .csv path, through writeCSV.
func writeExport(path string, v any, writeCSV func(io.Writer) error) error {
	format, err := export.Format(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if format == "csv" {
		err = writeCSV(f)
	} else {
		err = export.WriteJSON(f, v)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}

// writeFile creates path, fills it with write and reports the close error,
// which carries any deferred write failure.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
