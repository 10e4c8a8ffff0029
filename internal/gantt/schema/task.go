// Package schema provides the task record exchanged with the Gantt client
// and persisted by the task stores.
package schema

import (
	"fmt"
)

// Task is one row of the Gantt task tree.
//
// The tree is flat: a task only knows its parent's id, and siblings are
// ordered by ParentIndex. Nil optional fields are omitted from JSON.
type Task struct {
	// ===== Identification =====
	ID int64 `json:"id" yaml:"id" db:"id"`

	// PhantomID is the client's placeholder id for a task it just created.
	// It is echoed once in the sync response and never stored.
	PhantomID string `json:"$PhantomId,omitempty" yaml:"-" db:"-"`

	// ===== Content =====
	Name string `json:"name" yaml:"name" db:"name"`

	// ===== Scheduling =====
	StartDate   *Time    `json:"startDate,omitempty" yaml:"startDate,omitempty" db:"start_date"`
	EndDate     *Time    `json:"endDate,omitempty" yaml:"endDate,omitempty" db:"end_date"`
	Duration    *float64 `json:"duration,omitempty" yaml:"duration,omitempty" db:"duration"`
	PercentDone *float64 `json:"percentDone,omitempty" yaml:"percentDone,omitempty" db:"percent_done"`

	// ===== Tree position =====
	ParentID    *int64 `json:"parentId,omitempty" yaml:"parentId,omitempty" db:"parent_id"`
	ParentIndex *int64 `json:"parentIndex,omitempty" yaml:"parentIndex,omitempty" db:"parent_index"`

	// ===== Flags =====
	Expanded          *bool `json:"expanded,omitempty" yaml:"expanded,omitempty" db:"expanded"`
	Rollup            *bool `json:"rollup,omitempty" yaml:"rollup,omitempty" db:"rollup"`
	ManuallyScheduled *bool `json:"manuallyScheduled,omitempty" yaml:"manuallyScheduled,omitempty" db:"manually_scheduled"`

	Effort *int64 `json:"effort,omitempty" yaml:"effort,omitempty" db:"effort"`
}

// NewTask returns a draft carrying the column defaults.
func NewTask() *Task {
	return &Task{
		PercentDone:       Float(0),
		Expanded:          Bool(true),
		Rollup:            Bool(false),
		ManuallyScheduled: Bool(true),
	}
}

// SetDefaults fills nil fields that have a default value. Fields that are
// already set, including ones explicitly cleared later by a patch, are not
// touched.
func (t *Task) SetDefaults() {
	if t.PercentDone == nil {
		t.PercentDone = Float(0)
	}
	if t.Expanded == nil {
		t.Expanded = Bool(true)
	}
	if t.Rollup == nil {
		t.Rollup = Bool(false)
	}
	if t.ManuallyScheduled == nil {
		t.ManuallyScheduled = Bool(true)
	}
}

// Validate checks field values that no store should accept.
func (t *Task) Validate() error {
	if t.ID < 0 {
		return fmt.Errorf("id must not be negative (got %d)", t.ID)
	}
	if t.ParentID != nil && t.ID != 0 && *t.ParentID == t.ID {
		return fmt.Errorf("task %d cannot be its own parent", t.ID)
	}
	if t.PercentDone != nil && (*t.PercentDone < 0 || *t.PercentDone > 100) {
		return fmt.Errorf("percentDone must be between 0 and 100 (got %g)", *t.PercentDone)
	}
	return nil
}

// IsRoot reports whether the task sits at the top level of the tree.
func (t *Task) IsRoot() bool {
	return t.ParentID == nil
}

// Clone returns a deep copy so callers can hand tasks out without sharing
// the pointed-to optional values.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.StartDate != nil {
		v := *t.StartDate
		out.StartDate = &v
	}
	if t.EndDate != nil {
		v := *t.EndDate
		out.EndDate = &v
	}
	out.Duration = cloneFloat(t.Duration)
	out.PercentDone = cloneFloat(t.PercentDone)
	out.Effort = cloneInt(t.Effort)
	out.ParentID = cloneInt(t.ParentID)
	out.ParentIndex = cloneInt(t.ParentIndex)
	out.Expanded = cloneBool(t.Expanded)
	out.Rollup = cloneBool(t.Rollup)
	out.ManuallyScheduled = cloneBool(t.ManuallyScheduled)
	return &out
}

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return Int(*p)
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	return Bool(*p)
}
