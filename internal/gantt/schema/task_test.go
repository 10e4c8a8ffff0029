package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewTask_Defaults(t *testing.T) {
	task := NewTask()

	if task.ID != 0 {
		t.Errorf("ID = %d, want 0", task.ID)
	}
	if task.Name != "" {
		t.Errorf("Name = %q, want empty", task.Name)
	}
	if task.PercentDone == nil || *task.PercentDone != 0 {
		t.Errorf("PercentDone = %v, want 0", task.PercentDone)
	}
	if task.Expanded == nil || !*task.Expanded {
		t.Errorf("Expanded = %v, want true", task.Expanded)
	}
	if task.Rollup == nil || *task.Rollup {
		t.Errorf("Rollup = %v, want false", task.Rollup)
	}
	if task.ManuallyScheduled == nil || !*task.ManuallyScheduled {
		t.Errorf("ManuallyScheduled = %v, want true", task.ManuallyScheduled)
	}
}

func TestTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr string
	}{
		{
			name: "valid root",
			task: Task{ID: 1, Name: "Plan"},
		},
		{
			name: "valid child",
			task: Task{ID: 2, ParentID: Int(1), PercentDone: Float(50)},
		},
		{
			name: "draft may reference any parent",
			task: Task{ParentID: Int(0)},
		},
		{
			name:    "negative id",
			task:    Task{ID: -1},
			wantErr: "id must not be negative",
		},
		{
			name:    "own parent",
			task:    Task{ID: 3, ParentID: Int(3)},
			wantErr: "cannot be its own parent",
		},
		{
			name:    "percent above range",
			task:    Task{ID: 4, PercentDone: Float(100.5)},
			wantErr: "percentDone must be between 0 and 100",
		},
		{
			name:    "percent below range",
			task:    Task{ID: 4, PercentDone: Float(-1)},
			wantErr: "percentDone must be between 0 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestTask_MarshalOmitsNilFields(t *testing.T) {
	task := NewTask()
	task.ID = 1
	task.Name = "A"

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	want := `{"id":1,"name":"A","percentDone":0,"expanded":true,"rollup":false,"manuallyScheduled":true}`
	if string(data) != want {
		t.Errorf("Marshal() = %s\nwant %s", data, want)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("Marshal() emitted null: %s", data)
	}
}

func TestTask_MarshalPhantomID(t *testing.T) {
	task := &Task{ID: 7, PhantomID: "new-1", Name: "B"}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	want := `{"id":7,"$PhantomId":"new-1","name":"B"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestTask_Clone(t *testing.T) {
	start, err := ParseTime("2024-03-01T08:00:00")
	if err != nil {
		t.Fatalf("ParseTime() failed: %v", err)
	}
	orig := &Task{ID: 1, StartDate: &start, ParentID: Int(9), Expanded: Bool(true)}

	c := orig.Clone()
	*c.ParentID = 10
	*c.Expanded = false
	c.StartDate.Floating = false

	if *orig.ParentID != 9 {
		t.Errorf("clone shares ParentID with original")
	}
	if !*orig.Expanded {
		t.Errorf("clone shares Expanded with original")
	}
	if !orig.StartDate.Floating {
		t.Errorf("clone shares StartDate with original")
	}
	if (*Task)(nil).Clone() != nil {
		t.Errorf("Clone() of nil should be nil")
	}
}

func TestParseTasks_JSONFlattensChildren(t *testing.T) {
	data := []byte(`[
		{"id": 1, "name": "Project", "children": [
			{"id": 2, "name": "Design"},
			{"id": 3, "name": "Build", "percentDone": 20, "children": [
				{"id": 4, "name": "Backend", "parentIndex": 5}
			]}
		]},
		{"id": 5, "name": "Release", "startDate": "2024-04-01"}
	]`)

	tasks, err := ParseTasks(data, "json")
	if err != nil {
		t.Fatalf("ParseTasks() failed: %v", err)
	}
	if len(tasks) != 5 {
		t.Fatalf("ParseTasks() returned %d tasks, want 5", len(tasks))
	}

	byID := make(map[int64]*Task)
	for _, task := range tasks {
		byID[task.ID] = task
	}

	if byID[1].ParentID != nil {
		t.Errorf("task 1 ParentID = %v, want nil", *byID[1].ParentID)
	}
	if got := byID[2]; got.ParentID == nil || *got.ParentID != 1 || *got.ParentIndex != 0 {
		t.Errorf("task 2 parent = (%v, %v), want (1, 0)", got.ParentID, got.ParentIndex)
	}
	if got := byID[3]; *got.ParentID != 1 || *got.ParentIndex != 1 || *got.PercentDone != 20 {
		t.Errorf("task 3 = %+v", got)
	}
	if got := byID[4]; *got.ParentID != 3 || *got.ParentIndex != 5 {
		t.Errorf("task 4 parent = (%d, %d), want (3, 5)", *got.ParentID, *got.ParentIndex)
	}
	if got := byID[5]; got.StartDate == nil || got.StartDate.String() != "2024-04-01T00:00:00" {
		t.Errorf("task 5 StartDate = %v", got.StartDate)
	}
	if got := byID[5]; !*got.ManuallyScheduled || !*got.Expanded {
		t.Errorf("task 5 defaults not applied: %+v", got)
	}
}

func TestParseTasks_YAML(t *testing.T) {
	data := []byte(`
- id: 10
  name: Root
  expanded: false
  children:
    - id: 11
      name: Child
      startDate: 2024-05-01T09:30:00
      duration: 2.5
`)

	tasks, err := ParseTasks(data, "yaml")
	if err != nil {
		t.Fatalf("ParseTasks() failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("ParseTasks() returned %d tasks, want 2", len(tasks))
	}
	if *tasks[0].Expanded {
		t.Errorf("root Expanded = true, want false from file")
	}
	child := tasks[1]
	if *child.ParentID != 10 {
		t.Errorf("child ParentID = %d, want 10", *child.ParentID)
	}
	if child.Duration == nil || *child.Duration != 2.5 {
		t.Errorf("child Duration = %v, want 2.5", child.Duration)
	}
	if child.StartDate == nil || child.StartDate.String() != "2024-05-01T09:30:00" {
		t.Errorf("child StartDate = %v", child.StartDate)
	}
}

func TestParseTasks_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"duplicate id", `[{"id":1},{"id":1}]`, "duplicate task id 1"},
		{"children without id", `[{"name":"p","children":[{"id":2}]}]`, "has children but no id"},
		{"invalid task", `[{"id":1,"percentDone":200}]`, "percentDone"},
		{"bad date", `[{"id":1,"startDate":"soon"}]`, "unsupported timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTasks([]byte(tt.data), "json")
			if err == nil {
				t.Fatalf("ParseTasks() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseTasks() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestReadTasksFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"id":1,"name":"A"}]`), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	yamlPath := filepath.Join(dir, "tasks.yml")
	if err := os.WriteFile(yamlPath, []byte("- id: 1\n  name: A\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	for _, path := range []string{jsonPath, yamlPath} {
		tasks, err := ReadTasksFile(path)
		if err != nil {
			t.Fatalf("ReadTasksFile(%s) failed: %v", path, err)
		}
		if len(tasks) != 1 || tasks[0].Name != "A" {
			t.Errorf("ReadTasksFile(%s) = %+v", path, tasks)
		}
	}

	if _, err := ReadTasksFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("ReadTasksFile() on missing file should fail")
	}
}
