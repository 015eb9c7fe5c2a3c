// Package query selects and orders ledger records. Every function is pure
// and leaves its input untouched.
package query

import (
	"cmp"
	"slices"
	"strings"

	"ledger/internal/core"
)

// FilterByDateRange keeps records with start <= date <= end. A nil bound
// is open. Stored order is preserved.
func FilterByDateRange(records []core.Record, start, end *core.Date) ([]core.Record, error) {
	if start != nil && end != nil && start.After(*end) {
		return nil, core.ErrInvalidRange
	}
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if start != nil && r.Date.Before(*start) {
			continue
		}
		if end != nil && r.Date.After(*end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseRange parses optional YYYY-MM-DD bounds. Blank text is an open
// bound. Ordering of the bounds is checked by FilterByDateRange.
func ParseRange(startText, endText string) (start, end *core.Date, err error) {
	if start, err = parseBound(startText, "start"); err != nil {
		return nil, nil, err
	}
	if end, err = parseBound(endText, "end"); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseBound(text, field string) (*core.Date, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	d, err := core.ParseDate(text)
	if err != nil {
		return nil, &core.ValidationError{Field: field, Message: "invalid date: use YYYY-MM-DD"}
	}
	return &d, nil
}

// SortByDateDesc returns a newest-first copy. Records of the same day keep
// their stored order.
func SortByDateDesc(records []core.Record) []core.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b core.Record) int {
		return cmp.Compare(b.Date.String(), a.Date.String())
	})
	return out
}
