package core

import (
	"errors"
	"strings"
	"testing"
)

func TestRecordInputParse(t *testing.T) {
	in := RecordInput{
		Date:     "2024-01-05",
		Kind:     "Expense",
		Category: " Food ",
		Amount:   "120,00",
		Note:     "lunch",
	}
	r, err := in.Parse()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if r.Date.String() != "2024-01-05" || r.Kind != Expense || r.Category != "Food" || r.Amount.Text() != "120" || r.Note != "lunch" {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.ID != "" {
		t.Fatalf("parse must not assign an id")
	}
}

func TestRecordInputParseRejects(t *testing.T) {
	base := RecordInput{Date: "2024-01-05", Kind: "Income", Category: "Salary", Amount: "5000"}
	cases := []struct {
		name  string
		edit  func(*RecordInput)
		field string
	}{
		{"missing date", func(in *RecordInput) { in.Date = "" }, "date"},
		{"bad date format", func(in *RecordInput) { in.Date = "05/01/2024" }, "date"},
		{"impossible date", func(in *RecordInput) { in.Date = "2024-02-30" }, "date"},
		{"missing kind", func(in *RecordInput) { in.Kind = " " }, "kind"},
		{"unknown kind", func(in *RecordInput) { in.Kind = "Transfer" }, "kind"},
		{"missing category", func(in *RecordInput) { in.Category = "" }, "category"},
		{"missing amount", func(in *RecordInput) { in.Amount = "" }, "amount"},
		{"zero amount", func(in *RecordInput) { in.Amount = "0" }, "amount"},
		{"negative amount", func(in *RecordInput) { in.Amount = "-4" }, "amount"},
		{"text amount", func(in *RecordInput) { in.Amount = "ten" }, "amount"},
		{"long note", func(in *RecordInput) { in.Note = strings.Repeat("x", 501) }, "note"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.edit(&in)
			_, err := in.Parse()
			if err == nil {
				t.Fatalf("expected error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, verr.Field, err)
			}
		})
	}
}
