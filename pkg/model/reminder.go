package model

import "strings"

const (
	DefaultIcon   = "reminder"
	DefaultStatus = "To Do"
)

// Candidate is a reminder proposed by the model from a transcript. It is
// never persisted directly; the syncer merges it into the sheet.
type Candidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"`
}

// Record is a persisted reminder row in the backing sheet. Icon and Status
// are operator-owned fields: reconciliation carries existing values forward
// and only supplies defaults on first creation.
type Record struct {
	Title       string
	DueDate     string
	Description string
	Icon        string
	Status      string

	// Row is the 1-based sheet row this record was read from, header
	// row included in the numbering.
	Row int
}

// NormalizeTitle produces the identity key used to match candidates against
// existing records: whitespace-trimmed and lowercased.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// RecordFromCells decodes a positional A:E row. Missing trailing cells
// decode as empty strings; extra cells are ignored.
func RecordFromCells(row int, cells []string) *Record {
	cell := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}

	return &Record{
		Title:       cell(0),
		DueDate:     cell(1),
		Description: cell(2),
		Icon:        cell(3),
		Status:      cell(4),
		Row:         row,
	}
}

// Cells encodes the record back into positional A:E order.
func (r *Record) Cells() []string {
	return []string{r.Title, r.DueDate, r.Description, r.Icon, r.Status}
}
