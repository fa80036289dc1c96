// Package syncer reconciles extracted reminder candidates against the
// backing sheet: update by normalized title, append otherwise.
package syncer

import (
	"context"
	"errors"
	"strings"

	"github.com/kyohei-s/oboegaki/pkg/adapter"
	"github.com/kyohei-s/oboegaki/pkg/model"
	"github.com/kyohei-s/oboegaki/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type Syncer struct {
	sheets        adapter.Sheets
	defaultIcon   string
	defaultStatus string
}

type Option func(*Syncer)

func WithDefaultIcon(icon string) Option {
	return func(s *Syncer) {
		s.defaultIcon = icon
	}
}

func WithDefaultStatus(status string) Option {
	return func(s *Syncer) {
		s.defaultStatus = status
	}
}

func New(sheets adapter.Sheets, opts ...Option) *Syncer {
	s := &Syncer{
		sheets:        sheets,
		defaultIcon:   model.DefaultIcon,
		defaultStatus: model.DefaultStatus,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile merges candidates into the sheet. Existing rows win their
// operator-owned fields (icon, status); title, due date and description are
// overwritten from the candidate. A failed read aborts with no writes.
// The update batch and the append batch are independent write phases: a
// failure in one is reported but does not stop the other.
func (s *Syncer) Reconcile(ctx context.Context, candidates []*model.Candidate) error {
	logger := logging.From(ctx)

	rows, err := s.sheets.ReadRows(ctx)
	if err != nil {
		// Never fall back to an empty table: that would re-append
		// every reminder already on the sheet
		return goerr.Wrap(err, "failed to load existing reminders")
	}

	index := buildIndex(rows)

	var updates []adapter.RowUpdate
	var appends [][]string
	for _, c := range candidates {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			logger.Info("skipping candidate without title", "description", c.Description)
			continue
		}

		existing, ok := index[model.NormalizeTitle(title)]
		if !ok {
			appends = append(appends, (&model.Record{
				Title:       title,
				DueDate:     c.DueDate,
				Description: c.Description,
				Icon:        s.defaultIcon,
				Status:      s.defaultStatus,
			}).Cells())
			continue
		}

		updates = append(updates, adapter.RowUpdate{
			Row: existing.Row,
			Cells: (&model.Record{
				Title:       title,
				DueDate:     c.DueDate,
				Description: c.Description,
				Icon:        orDefault(existing.Icon, s.defaultIcon),
				Status:      orDefault(existing.Status, s.defaultStatus),
			}).Cells(),
		})
	}

	var updateErr, appendErr error
	if len(updates) > 0 {
		if err := s.sheets.BatchUpdate(ctx, updates); err != nil {
			updateErr = goerr.Wrap(err, "failed to update existing reminders", goerr.V("count", len(updates)))
			logger.Error("reminder update batch failed", "error", updateErr)
		} else {
			logger.Info("updated reminders", "count", len(updates))
		}
	}
	if len(appends) > 0 {
		if err := s.sheets.Append(ctx, appends); err != nil {
			appendErr = goerr.Wrap(err, "failed to append new reminders", goerr.V("count", len(appends)))
			logger.Error("reminder append failed", "error", appendErr)
		} else {
			logger.Info("appended reminders", "count", len(appends))
		}
	}

	return errors.Join(updateErr, appendErr)
}

// buildIndex maps normalized titles to their record, first stored row wins.
// Row numbering is 1-based with the header at row 1, so data starts at 2.
func buildIndex(rows [][]string) map[string]*model.Record {
	index := make(map[string]*model.Record)
	for i, cells := range rows {
		if i == 0 {
			continue
		}
		rec := model.RecordFromCells(i+1, cells)
		key := model.NormalizeTitle(rec.Title)
		if key == "" {
			continue
		}
		if _, ok := index[key]; ok {
			// Later duplicates are invisible to reconciliation
			continue
		}
		index[key] = rec
	}
	return index
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
