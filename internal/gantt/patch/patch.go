package patch

import (
	"fmt"
	"strings"

	"github.com/ganttd/ganttd/internal/gantt/schema"
)

// Field names a mutable task column.
type Field int

const (
	FieldName Field = iota
	FieldStartDate
	FieldEndDate
	FieldDuration
	FieldPercentDone
	FieldParentID
	FieldParentIndex
	FieldExpanded
	FieldRollup
	FieldManuallyScheduled
	FieldEffort
)

var fieldInfo = [...]struct {
	json   string
	column string
}{
	FieldName:              {"name", "name"},
	FieldStartDate:         {"startDate", "start_date"},
	FieldEndDate:           {"endDate", "end_date"},
	FieldDuration:          {"duration", "duration"},
	FieldPercentDone:       {"percentDone", "percent_done"},
	FieldParentID:          {"parentId", "parent_id"},
	FieldParentIndex:       {"parentIndex", "parent_index"},
	FieldExpanded:          {"expanded", "expanded"},
	FieldRollup:            {"rollup", "rollup"},
	FieldManuallyScheduled: {"manuallyScheduled", "manually_scheduled"},
	FieldEffort:            {"effort", "effort"},
}

// String returns the JSON key of the field.
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldInfo) {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldInfo[f].json
}

// Column returns the storage column of the field.
func (f Field) Column() string {
	return fieldInfo[f].column
}

// Assignment is one field write. Value is nil for a cleared field and
// otherwise holds a string, schema.Time, float64, int64 or bool.
type Assignment struct {
	Field Field
	Value any
}

// TaskPatch is a task payload from the client. It is used for updates keyed
// by ID, for add drafts, and for remove references that only carry ID.
type TaskPatch struct {
	ID        Optional[int64]  `json:"id,omitzero"`
	PhantomID Optional[string] `json:"$PhantomId,omitzero"`

	Name              Optional[string]      `json:"name,omitzero"`
	StartDate         Optional[schema.Time] `json:"startDate,omitzero"`
	EndDate           Optional[schema.Time] `json:"endDate,omitzero"`
	Duration          Optional[float64]     `json:"duration,omitzero"`
	PercentDone       Optional[float64]     `json:"percentDone,omitzero"`
	ParentID          Optional[int64]       `json:"parentId,omitzero"`
	ParentIndex       Optional[int64]       `json:"parentIndex,omitzero"`
	Expanded          Optional[bool]        `json:"expanded,omitzero"`
	Rollup            Optional[bool]        `json:"rollup,omitzero"`
	ManuallyScheduled Optional[bool]        `json:"manuallyScheduled,omitzero"`
	Effort            Optional[int64]       `json:"effort,omitzero"`
}

// TargetID returns the referenced task id, or 0 when none was sent.
func (p *TaskPatch) TargetID() int64 {
	return p.ID.Or(0)
}

// Assignments lists the fields the patch sets, in Field order.
func (p *TaskPatch) Assignments() []Assignment {
	var out []Assignment
	add := func(f Field, set bool, v any) {
		if set {
			out = append(out, Assignment{Field: f, Value: v})
		}
	}

	// name is never stored as null
	add(FieldName, p.Name.IsSet(), p.Name.Or(""))
	add(FieldStartDate, p.StartDate.IsSet(), valueOrNil(p.StartDate))
	add(FieldEndDate, p.EndDate.IsSet(), valueOrNil(p.EndDate))
	add(FieldDuration, p.Duration.IsSet(), valueOrNil(p.Duration))
	add(FieldPercentDone, p.PercentDone.IsSet(), valueOrNil(p.PercentDone))
	add(FieldParentID, p.ParentID.IsSet(), valueOrNil(p.ParentID))
	add(FieldParentIndex, p.ParentIndex.IsSet(), valueOrNil(p.ParentIndex))
	add(FieldExpanded, p.Expanded.IsSet(), valueOrNil(p.Expanded))
	add(FieldRollup, p.Rollup.IsSet(), valueOrNil(p.Rollup))
	add(FieldManuallyScheduled, p.ManuallyScheduled.IsSet(), valueOrNil(p.ManuallyScheduled))
	add(FieldEffort, p.Effort.IsSet(), valueOrNil(p.Effort))
	return out
}

// IsEmpty reports whether the patch changes no field.
func (p *TaskPatch) IsEmpty() bool {
	return len(p.Assignments()) == 0
}

// Apply overwrites every field of t that the patch sets. ID and PhantomID
// are not touched.
func (p *TaskPatch) Apply(t *schema.Task) {
	if p.Name.IsSet() {
		t.Name = p.Name.Or("")
	}
	if p.StartDate.IsSet() {
		t.StartDate = p.StartDate.Ptr()
	}
	if p.EndDate.IsSet() {
		t.EndDate = p.EndDate.Ptr()
	}
	if p.Duration.IsSet() {
		t.Duration = p.Duration.Ptr()
	}
	if p.PercentDone.IsSet() {
		t.PercentDone = p.PercentDone.Ptr()
	}
	if p.ParentID.IsSet() {
		t.ParentID = p.ParentID.Ptr()
	}
	if p.ParentIndex.IsSet() {
		t.ParentIndex = p.ParentIndex.Ptr()
	}
	if p.Expanded.IsSet() {
		t.Expanded = p.Expanded.Ptr()
	}
	if p.Rollup.IsSet() {
		t.Rollup = p.Rollup.Ptr()
	}
	if p.ManuallyScheduled.IsSet() {
		t.ManuallyScheduled = p.ManuallyScheduled.Ptr()
	}
	if p.Effort.IsSet() {
		t.Effort = p.Effort.Ptr()
	}
}

// Draft materializes an add payload as a new task: column defaults first,
// then every field the client sent. The id is always cleared and the
// phantom id is carried over for the echo.
func (p *TaskPatch) Draft() *schema.Task {
	t := schema.NewTask()
	p.Apply(t)
	t.ID = 0
	t.PhantomID = p.PhantomID.Or("")
	return t
}

// String renders the set fields for log output.
func (p *TaskPatch) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id=%s", p.ID)
	for _, a := range p.Assignments() {
		if a.Value == nil {
			fmt.Fprintf(&b, " %s=null", a.Field)
			continue
		}
		fmt.Fprintf(&b, " %s=%v", a.Field, a.Value)
	}
	return b.String()
}

func valueOrNil[T any](o Optional[T]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

// FromTask builds a patch that sets every stored field of t, clearing the
// optional ones that are nil.
func FromTask(t *schema.Task) TaskPatch {
	p := TaskPatch{
		Name:              Some(t.Name),
		StartDate:         fromPtr(t.StartDate),
		EndDate:           fromPtr(t.EndDate),
		Duration:          fromPtr(t.Duration),
		PercentDone:       fromPtr(t.PercentDone),
		ParentID:          fromPtr(t.ParentID),
		ParentIndex:       fromPtr(t.ParentIndex),
		Expanded:          fromPtr(t.Expanded),
		Rollup:            fromPtr(t.Rollup),
		ManuallyScheduled: fromPtr(t.ManuallyScheduled),
		Effort:            fromPtr(t.Effort),
	}
	if t.ID != 0 {
		p.ID = Some(t.ID)
	}
	if t.PhantomID != "" {
		p.PhantomID = Some(t.PhantomID)
	}
	return p
}

func fromPtr[T any](v *T) Optional[T] {
	if v == nil {
		return None[T]()
	}
	return Some(*v)
}
