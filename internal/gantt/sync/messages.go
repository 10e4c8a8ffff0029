package sync

import (
	"github.com/ganttd/ganttd/internal/gantt/patch"
	"github.com/ganttd/ganttd/internal/gantt/schema"
)

// Messages sent to the client when a request fails. Clients show them as is.
const (
	SyncFailedMessage = "There was an error syncing the data changes."
	LoadFailedMessage = "There was an error loading the tasks data."
)

// LoadRevision is the revision every load reports.
const LoadRevision = 1

// SyncRequest is the body of POST /api/sync.
type SyncRequest struct {
	RequestID patch.Optional[int64] `json:"requestId,omitzero"`
	Revision  patch.Optional[int64] `json:"revision,omitzero"`
	Tasks     *TaskChanges          `json:"tasks,omitempty"`
}

// TaskChanges partitions a batch. Added entries are drafts, Updated entries
// are patches keyed by id and Removed entries only need id.
type TaskChanges struct {
	Added   []patch.TaskPatch `json:"added,omitempty"`
	Updated []patch.TaskPatch `json:"updated,omitempty"`
	Removed []patch.TaskPatch `json:"removed,omitempty"`
}

// Len returns the number of items in the batch.
func (c *TaskChanges) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Added) + len(c.Updated) + len(c.Removed)
}

// SyncResponse answers a sync. On failure only Success, RequestID and
// Message are set.
type SyncResponse struct {
	Success   bool      `json:"success"`
	RequestID *int64    `json:"requestId,omitempty"`
	Revision  *int64    `json:"revision,omitempty"`
	Message   *string   `json:"message,omitempty"`
	Tasks     *SyncRows `json:"tasks,omitempty"`
}

// SyncRows holds the tasks created by a sync, each carrying both its new id
// and the client's phantom id.
type SyncRows struct {
	Rows []*schema.Task `json:"rows"`
}

// LoadResponse is the body of GET /api/load.
type LoadResponse struct {
	Success   bool      `json:"success"`
	RequestID string    `json:"requestId"`
	Revision  int64     `json:"revision"`
	Tasks     StoreData `json:"tasks"`
}

// StoreData is the full ordered task list.
type StoreData struct {
	Rows  []*schema.Task `json:"rows"`
	Total int            `json:"total"`
}

// ErrorResponse is the body of a failed load or an undecodable request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ChangeSet describes what a sync batch committed. Created, Updated and
// Removed hold task ids in the order they were applied; Removed lists only
// the ids that were asked for, not their descendants.
type ChangeSet struct {
	RequestID *int64  `json:"requestId,omitempty"`
	Revision  int64   `json:"revision"`
	Created   []int64 `json:"created,omitempty"`
	Updated   []int64 `json:"updated,omitempty"`
	Removed   []int64 `json:"removed,omitempty"`

	// Partial is set when the batch failed after committing some items.
	Partial bool `json:"partial,omitempty"`
}

// Empty reports whether nothing was committed.
func (c *ChangeSet) Empty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}
