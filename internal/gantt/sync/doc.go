// Package sync applies client change batches to the task store and builds
// the full task list for the initial load.
//
// # Protocol
//
// A client starts with a load and keeps its own copy of the tree. From then
// on it only sends deltas:
//
//	GET  /api/load  -> every task, ordered, revision 1
//	POST /api/sync  -> added drafts, updated patches, removed ids
//
// Tasks created on the client carry a $PhantomId. The sync response echoes
// each created task with both its new server id and that phantom id, which
// is how the client swaps its placeholder for the real id.
//
// # Patches
//
// Updates are decoded by package patch, so a key the client left out is
// not touched while a key sent as null clears the field. Setting parentId to
// null moves a task to the top level.
//
// # Failure
//
// A batch is not a transaction. Each item is durable as soon as it is
// applied and the batch stops at the first store error:
//
//	added[0] ok, added[1] ok, added[2] fails -> added[0..1] stay, rest skipped
//
// Replaying such a batch creates the committed adds a second time, so a
// client has to rebuild its added list from a fresh load before retrying.
//
// # Usage
//
//	mem := store.NewMemory()
//	engine := sync.New(mem, sync.Config{Logger: log})
//
//	resp := engine.Sync(ctx, &sync.SyncRequest{
//	    Revision: patch.Some(int64(3)),
//	    Tasks: &sync.TaskChanges{
//	        Added: []patch.TaskPatch{{PhantomID: patch.Some("p1"), Name: patch.Some("A")}},
//	    },
//	})
//	// resp.Tasks.Rows[0].ID is the server id for "p1"; *resp.Revision is 4.
package sync
