// Package spreadsheet reads contact lists from and writes outcome reports to
// xlsx workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"hde_orchestrator/internal/phone"
)

// ReadContacts returns the non-blank values of column A of the first sheet
// that contain at least one digit, in row order. There is no header row.
func ReadContacts(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	contacts := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		value := strings.TrimSpace(row[0])
		if value == "" || !phone.HasDigit(value) {
			continue
		}
		contacts = append(contacts, value)
	}

	return contacts, nil
}

// ReadContactsFile reads contacts from the workbook at path.
func ReadContactsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contacts: %w", err)
	}
	defer file.Close()

	return ReadContacts(file)
}
