package adapters

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/attachments"
	"ledger/internal/categories"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
	"ledger/internal/storage/csvfile"
	"ledger/internal/storage/memory"
)

func newAdapter(t *testing.T, backend storage.RecordBackend, migrator storage.Migrator) (*LedgerAdapter, string) {
	t.Helper()
	dataDir := t.TempDir()
	images := attachments.New(dataDir, "invoices", attachments.PolicyRemove, log.Discard())
	svc := services.NewLedgerService(backend, migrator, images, log.Discard())
	cats := categories.New(filepath.Join(dataDir, "categories.txt"), []string{"Food", "Salary", "Transport"}, log.Discard())
	return NewLedgerAdapter(svc, cats, images, log.Discard()), dataDir
}

func input(date, kind, category, amount, note string) core.RecordInput {
	return core.RecordInput{Date: date, Kind: kind, Category: category, Amount: amount, Note: note}
}

func TestStartupSeedsCategories(t *testing.T) {
	a, dataDir := newAdapter(t, memory.New(), nil)
	res := a.Startup(context.Background())
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "Ledger ready", res.Message)

	_, err := os.Stat(filepath.Join(dataDir, "categories.txt"))
	assert.NoError(t, err)
	cats, res := a.Categories(context.Background())
	assert.True(t, res.OK)
	assert.Equal(t, []string{"Food", "Salary", "Transport"}, cats)
}

func TestStartupMigratesLegacyLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte("日期,類別,金額,備註,圖片\n2024-01-05,Food,120,,\n"), 0o644))

	store := csvfile.New(path, csvfile.Options{LockTimeout: time.Second}, log.Discard())
	a, _ := newAdapter(t, store, csvfile.NewMigrator(path, store.Locker(), log.Discard()))

	res := a.Startup(ctx)
	require.True(t, res.OK, res.Message)
	assert.Contains(t, res.Message, "upgraded from 5 to 7 columns")
	assert.Contains(t, res.Message, ".bak")

	_, res = a.AddRecord(ctx, input("2024-01-06", "Expense", "Food", "3", ""))
	require.True(t, res.OK, res.Message)
	view := a.View(ctx, "", "")
	assert.Len(t, view.Records, 2)
	assert.Equal(t, "123", view.Expense)
}

func TestStartupReportsMigrationFailure(t *testing.T) {
	a, _ := newAdapter(t, memory.New(), failingMigrator{})
	res := a.Startup(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, core.ErrorTypeMigration, res.Kind)
}

func TestWorkedExample(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, memory.New(), nil)
	require.True(t, a.Startup(ctx).OK)

	_, res := a.AddRecord(ctx, input("2024-01-05", "Expense", "Food", "120", ""))
	require.True(t, res.OK, res.Message)
	_, res = a.AddRecord(ctx, input("2024-02-01", "Income", "Salary", "5000", ""))
	require.True(t, res.OK, res.Message)

	view := a.View(ctx, "", "")
	assert.Empty(t, view.Warning)
	assert.Empty(t, view.Error)
	assert.Equal(t, "5000", view.Income)
	assert.Equal(t, "120", view.Expense)
	assert.Equal(t, "4880", view.Balance)

	require.Len(t, view.Records, 2)
	assert.Equal(t, "2024-02-01", view.Records[0].Date, "newest first")
	assert.Equal(t, []CategoryShareView{{Name: "Food", Amount: "120", Percent: 100}}, view.Categories)

	require.Len(t, view.Months, 2)
	assert.Equal(t, "2024-02", view.Months[0].Month)
	assert.Equal(t, "5000", view.Months[0].Balance)
	assert.Equal(t, "2024-01", view.Months[1].Month)
	assert.Equal(t, "-120", view.Months[1].Balance)
}

func TestViewRange(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, memory.New(), nil)
	for _, in := range []core.RecordInput{
		input("2024-01-05", "Expense", "Food", "10", ""),
		input("2024-01-31", "Expense", "Food", "20", ""),
		input("2024-02-01", "Expense", "Food", "40", ""),
	} {
		_, res := a.AddRecord(ctx, in)
		require.True(t, res.OK, res.Message)
	}

	view := a.View(ctx, "2024-01-05", "2024-01-31")
	assert.Len(t, view.Records, 2, "bounds are inclusive")
	assert.Equal(t, "30", view.Expense)

	view = a.View(ctx, "2024-02-01", "2024-01-01")
	assert.NotEmpty(t, view.Warning)
	assert.Len(t, view.Records, 3, "an invalid range shows everything")
	assert.Equal(t, "70", view.Expense)

	view = a.View(ctx, "yesterday", "")
	assert.Contains(t, view.Warning, "start")
	assert.Len(t, view.Records, 3)
}

func TestViewReadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(csvfile.Header, ",")+"\n2024-13-45,Expense,Food,1,,,x\n"), 0o644))
	a, _ := newAdapter(t, csvfile.New(path, csvfile.Options{}, log.Discard()), nil)

	view := a.View(context.Background(), "", "")
	assert.NotEmpty(t, view.Error)
	assert.Empty(t, view.Records)
	assert.Equal(t, "0", view.Balance)
}

func TestAddRecordValidation(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, memory.New(), nil)

	tests := []struct {
		name  string
		in    core.RecordInput
		field string
	}{
		{"bad date", input("2024-02-30", "Expense", "Food", "1", ""), "date"},
		{"zero amount", input("2024-01-05", "Expense", "Food", "0", ""), "amount"},
		{"negative amount", input("2024-01-05", "Expense", "Food", "-3", ""), "amount"},
		{"no category", input("2024-01-05", "Expense", "", "1", ""), "category"},
		{"bad kind", input("2024-01-05", "Transfer", "Food", "1", ""), "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res := a.AddRecord(ctx, tt.in)
			assert.False(t, res.OK)
			assert.Equal(t, core.ErrorTypeValidation, res.Kind)
			assert.NotEmpty(t, res.Message)
		})
	}
	assert.Empty(t, a.View(ctx, "", "").Records)
}

func TestAddRecordSuggestsCategory(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, memory.New(), nil)
	require.True(t, a.Startup(ctx).OK)

	_, res := a.AddRecord(ctx, input("2024-01-05", "Expense", "Fod", "1", ""))
	require.True(t, res.OK)
	assert.Contains(t, res.Message, `"Food"`)

	_, res = a.AddRecord(ctx, input("2024-01-05", "Expense", "Food", "1", ""))
	assert.Equal(t, "Record saved", res.Message)
}

func TestUpdateAndDeleteRecord(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, memory.New(), nil)

	first, res := a.AddRecord(ctx, input("2024-01-05", "Expense", "Food", "5", "same"))
	require.True(t, res.OK)
	second, res := a.AddRecord(ctx, input("2024-01-05", "Expense", "Food", "5", "same"))
	require.True(t, res.OK)

	updated, res := a.UpdateRecord(ctx, second, input("2024-01-05", "Expense", "Food", "7.50", "changed"))
	require.True(t, res.OK, res.Message)
	assert.Equal(t, second.ID, updated.ID)
	assert.Equal(t, "7.5", updated.Amount)

	require.True(t, a.DeleteRecord(ctx, first).OK)
	view := a.View(ctx, "", "")
	require.Len(t, view.Records, 1)
	assert.Equal(t, second.ID, view.Records[0].ID)

	res = a.DeleteRecord(ctx, first)
	assert.False(t, res.OK)
	assert.Equal(t, core.ErrorTypeNotFound, res.Kind)

	res = a.DeleteRecord(ctx, RecordView{Date: "2024-01-05", Kind: "Expense", Category: "Food", Amount: "abc"})
	assert.Equal(t, core.ErrorTypeValidation, res.Kind)
}

func TestCategoryOperations(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, memory.New(), nil)

	cats, res := a.AddCategory(ctx, " Gifts ")
	require.True(t, res.OK)
	assert.Equal(t, []string{"Food", "Gifts", "Salary", "Transport"}, cats)

	cats, res = a.RemoveCategory(ctx, "Salary")
	require.True(t, res.OK)
	assert.Equal(t, []string{"Food", "Gifts", "Transport"}, cats)

	require.True(t, a.SaveCategories(ctx, []string{"b", "a", "b"}).OK)
	cats, _ = a.Categories(ctx)
	assert.Equal(t, []string{"a", "b"}, cats)

	_, res = a.AddCategory(ctx, "  ")
	assert.Equal(t, core.ErrorTypeValidation, res.Kind)
}

func TestImagesLifecycle(t *testing.T) {
	ctx := context.Background()
	a, dataDir := newAdapter(t, memory.New(), nil)

	src := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0o644))

	ref, res := a.AttachImage(ctx, src)
	require.True(t, res.OK, res.Message)
	assert.True(t, strings.HasPrefix(ref, "invoices/"))

	orphan, res := a.AttachImage(ctx, src)
	require.True(t, res.OK)

	in := input("2024-01-05", "Expense", "Food", "5", "")
	in.ImageRef = ref
	view, res := a.AddRecord(ctx, in)
	require.True(t, res.OK, res.Message)

	removed, res := a.PruneImages(ctx)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, []string{orphan}, removed)

	p, res := a.ResolveImage(ref)
	require.True(t, res.OK)
	assert.Equal(t, filepath.Join(dataDir, filepath.FromSlash(ref)), p)

	require.True(t, a.DeleteRecord(ctx, view).OK)
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err), "an unreferenced image is released with its record")

	_, res = a.ResolveImage("../escape.png")
	assert.Equal(t, core.ErrorTypeValidation, res.Kind)
}

type failingMigrator struct{}

func (failingMigrator) Migrate(context.Context) (storage.MigrationResult, error) {
	return storage.MigrationResult{}, core.ErrMigration
}
