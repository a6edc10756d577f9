package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/nopenaltycalc/internal/db"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty/sqlstore"
)

// create the minimal host gradebook tables (not part of our migration) and seed them.
func ensureHostTablesAndSeed(t *testing.T, dbh *sql.DB) {
	t.Helper()

	if _, err := dbh.Exec(`
CREATE TABLE IF NOT EXISTS grade_items (
  id INTEGER PRIMARY KEY,
  itemtype TEXT NOT NULL,
  grademin REAL NOT NULL DEFAULT 0,
  grademax REAL NOT NULL DEFAULT 100
);
CREATE TABLE IF NOT EXISTS grade_grades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  itemid INTEGER NOT NULL,
  userid INTEGER NOT NULL,
  finalgrade REAL,
  deductedmark REAL NOT NULL DEFAULT 0,
  overridden INTEGER NOT NULL DEFAULT 0
);`); err != nil {
		t.Fatalf("create host tables: %v", err)
	}

	if _, err := dbh.Exec(`INSERT INTO grade_items (id, itemtype, grademin, grademax) VALUES
		(1, 'mod', 0, 100),
		(2, 'mod', 0, 10),
		(3, 'mod', 0, 10),
		(7, 'category', 0, 50),
		(100, 'course', 0, 100)`); err != nil {
		t.Fatalf("seed grade_items: %v", err)
	}
	if _, err := dbh.Exec(`INSERT INTO grade_grades (itemid, userid, finalgrade, deductedmark, overridden) VALUES
		(1, 5, 50, 10, 0),
		(2, 5, 8, 1.5, 1700000000),
		(3, 5, NULL, 0, 0),
		(7, 5, 40, 0, 0),
		(1, 6, 90, 0, 0)`); err != nil {
		t.Fatalf("seed grade_grades: %v", err)
	}
}

func openStore(t *testing.T) (*sql.DB, *sqlstore.Store) {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "np.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	ensureHostTablesAndSeed(t, dbh)
	return dbh, sqlstore.New(dbh)
}

func TestStore_FindDeductions(t *testing.T) {
	_, st := openStore(t)
	ctx := context.Background()

	got, err := st.FindDeductions(ctx, 5, []int64{1, 2, 3, 4, 7})
	require.NoError(t, err)
	require.Len(t, got, 4, "item 4 has no grade row")

	assert.Equal(t, 10.0, got[1].DeductedMark)
	assert.Equal(t, nopenalty.ItemTypeMod, got[1].ItemType)
	assert.False(t, got[1].Overridden)
	require.NotNil(t, got[1].FinalGrade)
	assert.Equal(t, 50.0, *got[1].FinalGrade)

	assert.True(t, got[2].Overridden)
	assert.Nil(t, got[3].FinalGrade)
	assert.Equal(t, nopenalty.ItemTypeCategory, got[7].ItemType)

	empty, err := st.FindDeductions(ctx, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_UpsertRoundTrip(t *testing.T) {
	_, st := openStore(t)
	ctx := context.Background()

	rec := nopenalty.Record{
		CourseID: 2, UserID: 5, ItemID: 100, ItemType: nopenalty.ItemTypeCourse,
		GradeMin: 0, GradeMax: 100, FinalGrade: 72.5, UserModified: 9,
	}
	first, err := st.UpsertRecord(ctx, rec)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := st.UpsertRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := st.GetRecord(ctx, 2, 5, 100)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	all, err := st.ListRecords(ctx, 2, 5)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_UpsertUpdatesInPlace(t *testing.T) {
	_, st := openStore(t)
	ctx := context.Background()

	first, err := st.UpsertRecord(ctx, nopenalty.Record{
		CourseID: 2, UserID: 5, ItemID: 7, ItemType: nopenalty.ItemTypeCategory,
		GradeMin: 0, GradeMax: 50, FinalGrade: 40, UserModified: 9,
	})
	require.NoError(t, err)

	updated, err := st.UpsertRecord(ctx, nopenalty.Record{
		CourseID: 2, UserID: 5, ItemID: 7, ItemType: nopenalty.ItemTypeCourse,
		GradeMin: 0, GradeMax: 60, FinalGrade: 45, UserModified: 11,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, nopenalty.ItemTypeCategory, updated.ItemType, "itemtype is set on insert only")
	assert.Equal(t, 60.0, updated.GradeMax)
	assert.Equal(t, 45.0, updated.FinalGrade)
	assert.Equal(t, int64(11), updated.UserModified)
}

func TestStore_GetRecordNotFound(t *testing.T) {
	_, st := openStore(t)
	_, err := st.GetRecord(context.Background(), 2, 5, 404)
	assert.True(t, errors.Is(err, nopenalty.ErrNotFound))
}

// The hook runs inside the host transaction; a rollback discards the record.
func TestStore_InsideTransaction(t *testing.T) {
	dbh, _ := openStore(t)
	ctx := context.Background()

	tx, err := dbh.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = sqlstore.New(tx).UpsertRecord(ctx, nopenalty.Record{
		CourseID: 2, UserID: 5, ItemID: 100, ItemType: nopenalty.ItemTypeCourse, GradeMax: 100, FinalGrade: 1,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = sqlstore.New(dbh).GetRecord(ctx, 2, 5, 100)
	assert.ErrorIs(t, err, nopenalty.ErrNotFound)
}

// End to end: the aggregator against the SQL store.
type meanEngine struct{}

func (meanEngine) CanApplyLimitRules() bool { return false }
func (meanEngine) ApplyLimitRules(v []nopenalty.ItemValue, _ map[int64]nopenalty.GradeItem) []nopenalty.ItemValue {
	return v
}
func (meanEngine) Aggregate(values []nopenalty.ItemValue, _ map[int64]nopenalty.GradeItem, _ map[int64]float64, _, _ map[int64]float64) nopenalty.AggregateResult {
	var sum float64
	for _, v := range values {
		sum += v.Value
	}
	return nopenalty.AggregateResult{Grade: sum / float64(len(values)), GradeMin: 0, GradeMax: 100}
}
func (meanEngine) BoundedGrade(g float64) float64 { return g }

func TestAggregatorWithSQLStore(t *testing.T) {
	_, st := openStore(t)
	ctx := context.Background()

	ev := nopenalty.Event{
		UserID:  5,
		ActorID: 9,
		Category: nopenalty.Category{
			CourseID:    2,
			Aggregation: nopenalty.AggregateMean,
			Item:        nopenalty.GradeItem{ID: 100, ItemType: nopenalty.ItemTypeCourse, GradeMax: 100},
			Engine:      meanEngine{},
		},
		Values: []nopenalty.ItemValue{{ItemID: 1, Value: 0.5}},
		Items: map[int64]nopenalty.GradeItem{
			1: {ID: 1, ItemType: nopenalty.ItemTypeMod, GradeMax: 100},
		},
	}
	out, err := nopenalty.New(st, nil).AfterCategoryAggregation(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 1, out.PenalizedItems)

	got, err := st.GetRecord(ctx, 2, 5, 100)
	require.NoError(t, err)
	assert.InDelta(t, 60, got.FinalGrade, 1e-9)
	assert.Equal(t, int64(9), got.UserModified)
}
