package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so the hook can run inside
// the host's grade recalculation transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct{ DB DBTX }

func New(db DBTX) *Store { return &Store{DB: db} }

func (s *Store) FindDeductions(ctx context.Context, userID int64, itemIDs []int64) (map[int64]nopenalty.Deduction, error) {
	out := make(map[int64]nopenalty.Deduction, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, userID)
	marks := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		args = append(args, id)
		marks[i] = fmt.Sprintf("$%d", i+2)
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT gg.itemid, gg.deductedmark, gi.itemtype, gg.overridden, gg.finalgrade
		  FROM grade_grades gg
		  JOIN grade_items gi ON gg.itemid = gi.id
		 WHERE gg.userid=$1 AND gg.itemid IN (`+strings.Join(marks, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d          nopenalty.Deduction
			mark       sql.NullFloat64
			overridden sql.NullInt64
			final      sql.NullFloat64
		)
		if err := rows.Scan(&d.ItemID, &mark, &d.ItemType, &overridden, &final); err != nil {
			return nil, err
		}
		d.DeductedMark = mark.Float64
		d.Overridden = overridden.Int64 != 0
		if final.Valid {
			f := final.Float64
			d.FinalGrade = &f
		}
		out[d.ItemID] = d
	}
	return out, rows.Err()
}

func (s *Store) ListRecords(ctx context.Context, courseID, userID int64) ([]nopenalty.Record, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, courseid, userid, itemid, itemtype, grademin, grademax, finalgrade, usermodified
		  FROM no_penalty_finalgrades
		 WHERE courseid=$1 AND userid=$2
		 ORDER BY itemid`, courseID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []nopenalty.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetRecord(ctx context.Context, courseID, userID, itemID int64) (nopenalty.Record, error) {
	rec, err := scanRecord(s.DB.QueryRowContext(ctx, `
		SELECT id, courseid, userid, itemid, itemtype, grademin, grademax, finalgrade, usermodified
		  FROM no_penalty_finalgrades
		 WHERE courseid=$1 AND userid=$2 AND itemid=$3`, courseID, userID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nopenalty.Record{}, nopenalty.ErrNotFound
	}
	return rec, err
}

// UpsertRecord inserts the record or overwrites grademin, grademax,
// finalgrade and usermodified of the existing (courseid, userid, itemid) row.
// itemtype is only written on insert.
func (s *Store) UpsertRecord(ctx context.Context, rec nopenalty.Record) (nopenalty.Record, error) {
	return scanRecord(s.DB.QueryRowContext(ctx, `
		INSERT INTO no_penalty_finalgrades (courseid, userid, itemid, itemtype, grademin, grademax, finalgrade, usermodified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (courseid, userid, itemid)
		DO UPDATE SET
			grademin=EXCLUDED.grademin,
			grademax=EXCLUDED.grademax,
			finalgrade=EXCLUDED.finalgrade,
			usermodified=EXCLUDED.usermodified
		RETURNING id, courseid, userid, itemid, itemtype, grademin, grademax, finalgrade, usermodified`,
		rec.CourseID, rec.UserID, rec.ItemID, string(rec.ItemType), rec.GradeMin, rec.GradeMax, rec.FinalGrade, rec.UserModified))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (nopenalty.Record, error) {
	var rec nopenalty.Record
	err := row.Scan(&rec.ID, &rec.CourseID, &rec.UserID, &rec.ItemID, &rec.ItemType,
		&rec.GradeMin, &rec.GradeMax, &rec.FinalGrade, &rec.UserModified)
	return rec, err
}
