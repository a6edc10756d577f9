package nopenalty

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no no-penalty record matches.
var ErrNotFound = errors.New("no-penalty record not found")

type ItemType string

const (
	ItemTypeCourse   ItemType = "course"
	ItemTypeCategory ItemType = "category"
	ItemTypeMod      ItemType = "mod"
	ItemTypeManual   ItemType = "manual"
)

// Aggregation is the host's numeric aggregation strategy id.
type Aggregation int

const (
	AggregateMean            Aggregation = 0
	AggregateMedian          Aggregation = 2
	AggregateMin             Aggregation = 4
	AggregateMax             Aggregation = 6
	AggregateMode            Aggregation = 8
	AggregateWeightedMean    Aggregation = 10
	AggregateWeightedMean2   Aggregation = 11
	AggregateExtraCreditMean Aggregation = 12
	AggregateSum             Aggregation = 13 // natural
)

type GradeItem struct {
	ID       int64
	ItemType ItemType
	GradeMin float64
	GradeMax float64
}

// Deduction is a user's raw grade row for one item, joined with its item type.
type Deduction struct {
	ItemID       int64
	DeductedMark float64
	ItemType     ItemType
	Overridden   bool
	FinalGrade   *float64 // nil when ungraded
}

// Record is a row of no_penalty_finalgrades.
type Record struct {
	ID           int64    `json:"id"`
	CourseID     int64    `json:"courseid"`
	UserID       int64    `json:"userid"`
	ItemID       int64    `json:"itemid"`
	ItemType     ItemType `json:"itemtype"`
	GradeMin     float64  `json:"grademin"`
	GradeMax     float64  `json:"grademax"`
	FinalGrade   float64  `json:"finalgrade"`
	UserModified int64    `json:"usermodified"`
}

type ItemValue struct {
	ItemID int64
	Value  float64
}

type AggregateResult struct {
	Grade    float64
	GradeMin float64
	GradeMax float64
}

// Engine is the host grading engine's behaviour for one category.
type Engine interface {
	CanApplyLimitRules() bool
	// ApplyLimitRules returns values with limit rules (drop lowest, keep
	// highest, ...) applied. The input is sorted ascending by value.
	ApplyLimitRules(values []ItemValue, items map[int64]GradeItem) []ItemValue
	Aggregate(values []ItemValue, items map[int64]GradeItem, weights map[int64]float64,
		minOverrides, maxOverrides map[int64]float64) AggregateResult
	// BoundedGrade clamps and rounds grade to the category item's range.
	BoundedGrade(grade float64) float64
}

type Category struct {
	CourseID    int64
	Aggregation Aggregation
	Item        GradeItem // the category's own grade item
	Engine      Engine
}

func (c Category) IsCourse() bool { return c.Item.ItemType == ItemTypeCourse }

// Event is what the host hands over once a category's pre-limit values are known.
type Event struct {
	UserID       int64
	ActorID      int64 // written to usermodified
	Category     Category
	Values       []ItemValue // pre-limit, in host order
	Items        map[int64]GradeItem
	Weights      map[int64]float64
	MinOverrides map[int64]float64
	MaxOverrides map[int64]float64
}

// Outcome reports what a single hook invocation did.
type Outcome struct {
	PenalizedItems int
	Persisted      bool
	Record         Record
}

// Store: implement this in the host, or use pkg/nopenalty/sqlstore.Store
type Store interface {
	FindDeductions(ctx context.Context, userID int64, itemIDs []int64) (map[int64]Deduction, error)
	ListRecords(ctx context.Context, courseID, userID int64) ([]Record, error)
	UpsertRecord(ctx context.Context, rec Record) (Record, error)
}
