// Package nopenalty recomputes category grades with per-item mark deductions
// removed, every time the host grading engine aggregates a category for a
// user, and keeps the result in no_penalty_finalgrades.
package nopenalty

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

type Aggregator struct {
	Store  Store
	Logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{Store: store, Logger: logger}
}

// AfterCategoryAggregation is the hook callback. It is called once per
// (category, user) after the host has computed the pre-limit values.
func (a *Aggregator) AfterCategoryAggregation(ctx context.Context, ev Event) (Outcome, error) {
	if ev.Category.Engine == nil {
		return Outcome{}, errors.New("category has no engine")
	}
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(
		zap.Int64("course_id", ev.Category.CourseID),
		zap.Int64("user_id", ev.UserID),
		zap.Int64("item_id", ev.Category.Item.ID),
	)

	ids := make([]int64, 0, len(ev.Values))
	for _, v := range ev.Values {
		ids = append(ids, v.ItemID)
	}
	deductions, err := a.Store.FindDeductions(ctx, ev.UserID, ids)
	if err != nil {
		return Outcome{}, fmt.Errorf("find deductions: %w", err)
	}

	var out Outcome
	values := make([]ItemValue, len(ev.Values))
	var adjusted []int64
	for i, v := range ev.Values {
		values[i] = v
		d, ok := deductions[v.ItemID]
		if !ok || d.Overridden || d.FinalGrade == nil {
			continue
		}
		lo, hi, ok := ev.itemBounds(v.ItemID)
		if !ok {
			log.Debug("item not in catalog; leaving value as is", zap.Int64("grade_item", v.ItemID))
			continue
		}
		frac := Standardise(d.DeductedMark, lo, hi, 0, 1)
		if frac > 0 {
			out.PenalizedItems++
		}
		values[i].Value = v.Value + frac
		adjusted = append(adjusted, v.ItemID)
	}

	// The course total is always refreshed: nested categories may carry
	// penalties that have to roll up even when this level has none.
	if !ev.Category.IsCourse() && out.PenalizedItems == 0 {
		log.Debug("no penalties in category")
		return out, nil
	}

	stored, err := a.Store.ListRecords(ctx, ev.Category.CourseID, ev.UserID)
	if err != nil {
		return out, fmt.Errorf("list no-penalty records: %w", err)
	}
	byItem := make(map[int64]Record, len(stored))
	for _, r := range stored {
		byItem[r.ItemID] = r
	}
	subcats := normaliseSubcategories(ev, adjusted, deductions, byItem)

	sortAscending(values)
	eng := ev.Category.Engine
	if eng.CanApplyLimitRules() {
		values = eng.ApplyLimitRules(values, ev.Items)
	}
	merged := mergeValues(subcats, values)

	res := eng.Aggregate(merged, ev.Items, ev.Weights, ev.MinOverrides, ev.MaxOverrides)
	if ev.Category.Aggregation == AggregateSum {
		// Natural aggregation always shows a category range from 0, the grade
		// itself may still go negative.
		res.GradeMin = 0
	}
	final := eng.BoundedGrade(Standardise(res.Grade, 0, 1, res.GradeMin, res.GradeMax))

	rec, err := a.Store.UpsertRecord(ctx, Record{
		CourseID:     ev.Category.CourseID,
		UserID:       ev.UserID,
		ItemID:       ev.Category.Item.ID,
		ItemType:     ev.Category.Item.ItemType,
		GradeMin:     res.GradeMin,
		GradeMax:     res.GradeMax,
		FinalGrade:   final,
		UserModified: ev.ActorID,
	})
	if err != nil {
		return out, fmt.Errorf("save no-penalty grade: %w", err)
	}
	log.Debug("no-penalty grade saved",
		zap.Int("penalized_items", out.PenalizedItems),
		zap.Float64("finalgrade", rec.FinalGrade),
		zap.Float64("grademin", rec.GradeMin),
		zap.Float64("grademax", rec.GradeMax),
	)
	out.Persisted = true
	out.Record = rec
	return out, nil
}

// itemBounds resolves an item's range, user overrides first.
func (ev Event) itemBounds(itemID int64) (lo, hi float64, ok bool) {
	item, known := ev.Items[itemID]
	lo, okLo := ev.MinOverrides[itemID]
	if !okLo {
		if !known {
			return 0, 0, false
		}
		lo = item.GradeMin
	}
	hi, okHi := ev.MaxOverrides[itemID]
	if !okHi {
		if !known {
			return 0, 0, false
		}
		hi = item.GradeMax
	}
	return lo, hi, true
}

// normaliseSubcategories maps the un-penalized grade of every nested
// category among itemIDs into [0,1].
func normaliseSubcategories(ev Event, itemIDs []int64, deductions map[int64]Deduction, stored map[int64]Record) []ItemValue {
	var out []ItemValue
	for _, id := range itemIDs {
		rec, hasRec := stored[id]
		var v float64
		switch {
		case hasRec:
			v = rec.FinalGrade
		case deductions[id].ItemType == ItemTypeCategory:
			v = *deductions[id].FinalGrade
		default:
			continue
		}

		// The stored range is ignored; the catalog range or a user
		// override always applies.
		item := ev.Items[id]
		lo, hi := item.GradeMin, item.GradeMax
		if o, ok := ev.MinOverrides[id]; ok {
			lo = o
		}
		if o, ok := ev.MaxOverrides[id]; ok {
			hi = o
		}
		if ev.Category.Aggregation == AggregateSum {
			// Keep the sign of negative sub-totals.
			lo = 0
		}
		out = append(out, ItemValue{ItemID: id, Value: Standardise(v, lo, hi, 0, 1)})
	}
	return out
}

// sortAscending orders by value; equal values keep their relative order.
func sortAscending(values []ItemValue) {
	slices.SortStableFunc(values, func(a, b ItemValue) int {
		return cmp.Compare(a.Value, b.Value)
	})
}

// mergeValues returns first followed by the entries of rest whose item is
// not already in first.
func mergeValues(first, rest []ItemValue) []ItemValue {
	seen := make(map[int64]struct{}, len(first))
	out := make([]ItemValue, 0, len(first)+len(rest))
	for _, v := range first {
		seen[v.ItemID] = struct{}{}
		out = append(out, v)
	}
	for _, v := range rest {
		if _, dup := seen[v.ItemID]; dup {
			continue
		}
		out = append(out, v)
	}
	return out
}
