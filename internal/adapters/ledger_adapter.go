// Package adapters exposes the ledger to a presentation layer as plain
// data: every operation returns a Result instead of an error, and views
// carry amounts as text.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ledger/internal/attachments"
	"ledger/internal/categories"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/query"
	"ledger/internal/report"
	"ledger/internal/services"
)

// Result is the outcome of one operation. Kind is empty on success and an
// error-type label otherwise.
type Result struct {
	OK      bool
	Kind    string
	Message string
}

// RecordView is a record with every field as display text.
type RecordView struct {
	ID       string
	Date     string
	Kind     string
	Category string
	Amount   string
	Note     string
	ImageRef string
}

type CategoryShareView struct {
	Name    string
	Amount  string
	Percent float64
}

type MonthView struct {
	Month   string
	Income  string
	Expense string
	Balance string
}

// ViewData is everything a list/summary screen shows for one date range.
type ViewData struct {
	Records    []RecordView
	Income     string
	Expense    string
	Balance    string
	Categories []CategoryShareView
	Months     []MonthView
	Warning    string
	Error      string
}

// LedgerAdapter wires the ledger service, category vocabulary and
// attachment store behind one facade.
type LedgerAdapter struct {
	service    *services.LedgerService
	categories *categories.Store
	images     *attachments.Store
	logger     *log.Logger
}

func NewLedgerAdapter(service *services.LedgerService, cats *categories.Store, images *attachments.Store, logger *log.Logger) *LedgerAdapter {
	if logger == nil {
		logger = log.Default()
	}
	return &LedgerAdapter{
		service:    service,
		categories: cats,
		images:     images,
		logger:     logger.WithComponent(log.ComponentApp),
	}
}

// Startup upgrades a legacy ledger, then creates the ledger and loads the
// categories concurrently. Nothing else may run before it succeeds.
func (a *LedgerAdapter) Startup(ctx context.Context) Result {
	res, err := a.service.Migrate(ctx)
	if err != nil {
		return failure(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.service.EnsureInitialized(gctx)
	})
	g.Go(func() error {
		_, err := a.categories.Load(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.Outcome(ctx, "startup failed", log.OpStartup, nil, err)
		return failure(err)
	}

	msg := "Ledger ready"
	if res.Migrated {
		msg = fmt.Sprintf("Ledger upgraded from %d to %d columns (%d rows)", res.FromColumns, res.ToColumns, res.Rows)
		if res.BackupPath != "" {
			msg += "; backup at " + res.BackupPath
		}
	}
	a.logger.InfoContext(ctx, msg, log.FieldOperation, log.OpStartup)
	return success(msg)
}

// Close releases the backend.
func (a *LedgerAdapter) Close() error {
	return a.service.Close()
}

// Categories returns the vocabulary. On a read failure it still returns
// the defaults alongside the failed Result.
func (a *LedgerAdapter) Categories(ctx context.Context) ([]string, Result) {
	cats, err := a.categories.Load(ctx)
	if err != nil {
		return cats, failure(err)
	}
	return cats, success("")
}

func (a *LedgerAdapter) SaveCategories(ctx context.Context, names []string) Result {
	if err := a.categories.Save(ctx, names); err != nil {
		return failure(err)
	}
	return success("Categories saved")
}

func (a *LedgerAdapter) AddCategory(ctx context.Context, name string) ([]string, Result) {
	cats, err := a.categories.Add(ctx, name)
	if err != nil {
		return nil, failure(err)
	}
	return cats, success("Category added")
}

func (a *LedgerAdapter) RemoveCategory(ctx context.Context, name string) ([]string, Result) {
	cats, err := a.categories.Remove(ctx, name)
	if err != nil {
		return nil, failure(err)
	}
	return cats, success("Category removed")
}

// AddRecord validates the form and appends it. An unknown category is
// accepted; the message then names the closest known one.
func (a *LedgerAdapter) AddRecord(ctx context.Context, in core.RecordInput) (RecordView, Result) {
	r, err := in.Parse()
	if err != nil {
		return RecordView{}, failure(err)
	}
	saved, err := a.service.Append(ctx, r)
	if err != nil {
		return RecordView{}, failure(err)
	}
	return toView(saved), success(a.savedMessage(ctx, saved.Category))
}

// UpdateRecord replaces the record old shows with the form content.
func (a *LedgerAdapter) UpdateRecord(ctx context.Context, old RecordView, in core.RecordInput) (RecordView, Result) {
	target, err := fromView(old)
	if err != nil {
		return RecordView{}, failure(err)
	}
	r, err := in.Parse()
	if err != nil {
		return RecordView{}, failure(err)
	}
	saved, err := a.service.Update(ctx, target, r)
	if err != nil {
		return RecordView{}, failure(err)
	}
	return toView(saved), success(a.savedMessage(ctx, saved.Category))
}

func (a *LedgerAdapter) DeleteRecord(ctx context.Context, v RecordView) Result {
	target, err := fromView(v)
	if err != nil {
		return failure(err)
	}
	if _, err := a.service.Delete(ctx, target); err != nil {
		return failure(err)
	}
	return success("Record deleted")
}

// AttachImage copies an image into the attachment store and returns the
// ref to put in a record form.
func (a *LedgerAdapter) AttachImage(ctx context.Context, sourcePath string) (string, Result) {
	ref, err := a.images.Attach(ctx, sourcePath)
	if err != nil {
		return "", failure(err)
	}
	return ref, success("Image attached")
}

// ResolveImage returns the file path of a record's image.
func (a *LedgerAdapter) ResolveImage(ref string) (string, Result) {
	p, err := a.images.Resolve(ref)
	if err != nil {
		return "", failure(err)
	}
	return p, success("")
}

// PruneImages deletes attachment files no record references.
func (a *LedgerAdapter) PruneImages(ctx context.Context) ([]string, Result) {
	refs, err := a.service.ImageRefs(ctx)
	if err != nil {
		return nil, failure(err)
	}
	removed, err := a.images.Prune(ctx, refs)
	if err != nil {
		return removed, failure(err)
	}
	return removed, success(fmt.Sprintf("%d unused images removed", len(removed)))
}

// View reads the ledger and summarizes the records inside the range.
// Empty bounds are open. An invalid range shows all records with a
// warning; a failed read shows nothing but the error.
func (a *LedgerAdapter) View(ctx context.Context, startText, endText string) ViewData {
	records, err := a.service.ReadAll(ctx)
	if err != nil {
		return ViewData{Error: err.Error(), Income: "0", Expense: "0", Balance: "0"}
	}

	var data ViewData
	start, end, err := query.ParseRange(startText, endText)
	if err == nil {
		var filtered []core.Record
		if filtered, err = query.FilterByDateRange(records, start, end); err == nil {
			records = filtered
		}
	}
	if err != nil {
		data.Warning = "Showing all records: " + err.Error()
		a.logger.Outcome(ctx, "range rejected", log.OpFilter, nil, err)
	}

	for _, r := range query.SortByDateDesc(records) {
		data.Records = append(data.Records, toView(r))
	}

	totals := report.Totals(records)
	data.Income = totals.Income.String()
	data.Expense = totals.Expense.String()
	data.Balance = totals.Balance.String()

	for _, c := range report.CategoryShares(records, core.Expense) {
		data.Categories = append(data.Categories, CategoryShareView{Name: c.Name, Amount: c.Amount.String(), Percent: c.Percent})
	}
	for _, m := range report.MonthsDescending(report.ByMonth(records)) {
		data.Months = append(data.Months, MonthView{
			Month:   m.Month,
			Income:  m.Income.String(),
			Expense: m.Expense.String(),
			Balance: m.Balance.String(),
		})
	}
	return data
}

func (a *LedgerAdapter) savedMessage(ctx context.Context, category string) string {
	known, err := a.categories.Load(ctx)
	if err != nil {
		return "Record saved"
	}
	if s, ok := categories.Suggest(category, known); ok {
		return fmt.Sprintf("Record saved; category %q is not in the list, did you mean %q?", category, s)
	}
	return "Record saved"
}

func toView(r core.Record) RecordView {
	return RecordView{
		ID:       r.ID,
		Date:     r.Date.String(),
		Kind:     r.Kind.String(),
		Category: r.Category,
		Amount:   r.Amount.Text(),
		Note:     r.Note,
		ImageRef: r.ImageRef,
	}
}

// fromView rebuilds the record a view shows, for matching against storage.
func fromView(v RecordView) (core.Record, error) {
	date, err := core.ParseDate(v.Date)
	if err != nil {
		return core.Record{}, err
	}
	kind, err := core.ParseKind(v.Kind)
	if err != nil {
		return core.Record{}, err
	}
	amount, err := core.ParseStoredAmount(v.Amount)
	if err != nil {
		return core.Record{}, &core.ValidationError{Field: "amount", Message: "invalid amount " + v.Amount}
	}
	return core.Record{
		ID:       v.ID,
		Date:     date,
		Kind:     kind,
		Category: v.Category,
		Amount:   amount,
		Note:     v.Note,
		ImageRef: v.ImageRef,
	}, nil
}

func success(msg string) Result {
	return Result{OK: true, Message: msg}
}

func failure(err error) Result {
	msg := err.Error()
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	return Result{Kind: core.ErrorType(err), Message: msg}
}
