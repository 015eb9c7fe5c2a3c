package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/log"
)

const currentHeader = "date,kind,category,amount,note,image_ref,id\n"

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	return New(path, Options{LockTimeout: time.Second, CacheSize: 2, CacheTTL: time.Minute}, log.Discard()), path
}

func record(id, date string, kind core.Kind, category, amount, note string) core.Record {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	m, err := core.ParseStoredAmount(amount)
	if err != nil {
		panic(err)
	}
	return core.Record{ID: id, Date: d, Kind: kind, Category: category, Amount: m, Note: note}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestEnsureInitialized(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureInitialized(ctx))
	assert.Equal(t, currentHeader, readFile(t, path))

	require.NoError(t, s.EnsureInitialized(ctx))
	assert.Equal(t, currentHeader, readFile(t, path))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEnsureInitializedFillsEmptyFile(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, s.EnsureInitialized(context.Background()))
	assert.Equal(t, currentHeader, readFile(t, path))
}

func TestEnsureInitializedKeepsExistingData(t *testing.T) {
	s, path := newTestStore(t)
	content := currentHeader + "2024-01-05,Expense,Food,120,lunch,,a1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, s.EnsureInitialized(context.Background()))
	assert.Equal(t, content, readFile(t, path))
}

func TestReadAllMissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	records, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendReadRoundTrip(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureInitialized(ctx))

	food := record("a1", "2024-01-05", core.Expense, "Food", "120.50", `lunch, "big" one`)
	salary := record("a2", "2024-02-01", core.Income, "Salary", "5000", "line1\nline2")
	salary.ImageRef = "invoices/20240201_101010_slip.png"

	require.NoError(t, s.Append(ctx, food))
	require.NoError(t, s.Append(ctx, salary))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].SameFields(food))
	assert.Equal(t, "a1", records[0].ID)
	assert.True(t, records[1].SameFields(salary))
	assert.Equal(t, "120.5", records[0].Amount.Text())

	assert.Contains(t, readFile(t, path), "2024-01-05,Expense,Food,120.5,\"lunch, \"\"big\"\" one\",,a1\n")
}

func TestAppendCreatesMissingFile(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Append(context.Background(), record("a1", "2024-01-05", core.Expense, "Food", "120", "")))
	assert.Equal(t, currentHeader+"2024-01-05,Expense,Food,120,,,a1\n", readFile(t, path))
}

func TestAppendAddsMissingTrailingNewline(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(currentHeader+"2024-01-05,Expense,Food,120,,,a1"), 0o644))

	require.NoError(t, s.Append(context.Background(), record("a2", "2024-01-06", core.Expense, "Food", "5", "")))

	records, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAppendRefusesLegacyLayout(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("date,kind,category,amount,note,image_ref\n"), 0o644))

	err := s.Append(context.Background(), record("a1", "2024-01-05", core.Expense, "Food", "120", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIntegrity)
}

func TestAppendReorderedHeader(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(path, []byte("id,date,kind,category,amount,note,image_ref\n"+
		"a1,2024-01-05,Expense,Food,120,,\n"), 0o644))

	require.NoError(t, s.Append(ctx, record("a2", "2024-02-02", core.Income, "Salary", "100", "")))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0].ID)
	assert.Equal(t, "Food", records[0].Category)
	assert.Equal(t, "a2", records[1].ID)
	assert.Equal(t, core.Income, records[1].Kind)
	assert.Equal(t, currentHeader+
		"2024-01-05,Expense,Food,120,,,a1\n"+
		"2024-02-02,Income,Salary,100,,,a2\n", readFile(t, path))
}

func TestReplaceAll(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("a1", "2024-01-05", core.Expense, "Food", "120", "")))
	_, err := s.ReadAll(ctx)
	require.NoError(t, err)

	replacement := []core.Record{record("b1", "2024-03-01", core.Income, "Gift", "10", "")}
	require.NoError(t, s.ReplaceAll(ctx, replacement))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b1", records[0].ID)
	assert.Equal(t, currentHeader+"2024-03-01,Income,Gift,10,,,b1\n", readFile(t, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestReadAllSkipsBlankRows(t *testing.T) {
	s, path := newTestStore(t)
	content := currentHeader + "2024-01-05,Expense,Food,120,,,a1\n\n,,,,,,\n2024-01-06,Income,Salary,5,,,a2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadAllMalformedRow(t *testing.T) {
	cases := map[string]string{
		"amount": "2024-01-05,Expense,Food,abc,,,a1\n",
		"date":   "2024-13-05,Expense,Food,12,,,a1\n",
		"kind":   "2024-01-05,Transfer,Food,12,,,a1\n",
	}
	for field, row := range cases {
		t.Run(field, func(t *testing.T) {
			s, path := newTestStore(t)
			require.NoError(t, os.WriteFile(path, []byte(currentHeader+row), 0o644))

			_, err := s.ReadAll(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrMalformedRow)
			assert.ErrorIs(t, err, core.ErrIntegrity)
			assert.Contains(t, err.Error(), "row 2")
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestReadAllLocalizedHeader(t *testing.T) {
	s, path := newTestStore(t)
	content := "日期,類型,類別,金額,備註,圖片\n2024-01-05,支出,Food,120,午餐,\n2024-01-31,收入,Salary,5000,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, core.Expense, records[0].Kind)
	assert.Equal(t, "午餐", records[0].Note)
	assert.Equal(t, core.Income, records[1].Kind)
}

func TestReadAllSeesExternalEdits(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("a1", "2024-01-05", core.Expense, "Food", "120", "")))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	content := currentHeader + "2024-01-05,Expense,Food,120,,,a1\n2024-01-06,Expense,Food,7,,,a2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err = s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadAllReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("a1", "2024-01-05", core.Expense, "Food", "120", "")))

	first, err := s.ReadAll(ctx)
	require.NoError(t, err)
	first[0].Category = "changed"

	second, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Food", second[0].Category)
}

func TestMutationTimesOutOnHeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	holder := NewFileLock(path, time.Second)
	release, err := holder.Lock(context.Background())
	require.NoError(t, err)
	defer release()

	s := New(path, Options{LockTimeout: 100 * time.Millisecond}, log.Discard())
	err = s.Append(context.Background(), record("a1", "2024-01-05", core.Expense, "Food", "1", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.True(t, errors.Is(err, core.ErrStorage))

	release()
	require.NoError(t, s.Append(context.Background(), record("a1", "2024-01-05", core.Expense, "Food", "1", "")))
}

func TestModify(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("a1", "2024-01-05", core.Expense, "Food", "120", "")))
	require.NoError(t, s.Append(ctx, record("a2", "2024-02-01", core.Income, "Salary", "5000", "")))
	_, err := s.ReadAll(ctx)
	require.NoError(t, err)

	err = s.Modify(ctx, func(records []core.Record) ([]core.Record, error) {
		require.Len(t, records, 2)
		records[0].Note = "lunch"
		return records[:1], nil
	})
	require.NoError(t, err)
	assert.Equal(t, currentHeader+"2024-01-05,Expense,Food,120,lunch,,a1\n", readFile(t, path))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "the cache must not serve the old content")
	assert.Equal(t, "lunch", records[0].Note)
}

func TestModifyErrorLeavesFile(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("a1", "2024-01-05", core.Expense, "Food", "120", "")))
	before := readFile(t, path)

	err := s.Modify(ctx, func([]core.Record) ([]core.Record, error) {
		return nil, core.ErrNotFound
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, before, readFile(t, path))
}
