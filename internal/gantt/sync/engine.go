package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ganttd/ganttd/internal/gantt/patch"
	"github.com/ganttd/ganttd/internal/gantt/schema"
	"github.com/ganttd/ganttd/internal/gantt/store"
)

// Item kinds and outcomes reported to the Observer.
const (
	KindAdded   = "added"
	KindUpdated = "updated"
	KindRemoved = "removed"

	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"

	BatchSuccess = "success"
	BatchFailure = "failure"
)

// Config holds the optional collaborators of an engine.
type Config struct {
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Notifier, if set, hears about every batch that committed something.
	Notifier Notifier

	// Observer, if set, receives outcome counts and timings.
	Observer Observer

	// Now defaults to time.Now.
	Now func() time.Time
}

// engine implements the Engine interface.
type engine struct {
	store    store.Store
	log      logrus.FieldLogger
	notifier Notifier
	observer Observer
	now      func() time.Time
}

// New creates an Engine over st.
//
// Example:
//
//	database, err := db.Open(ctx, db.Options{DSN: "gantt.db"})
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//	engine := sync.New(database, sync.Config{Logger: log})
func New(st store.Store, cfg Config) Engine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &engine{
		store:    st,
		log:      cfg.Logger.WithField("component", "sync"),
		notifier: cfg.Notifier,
		observer: cfg.Observer,
		now:      cfg.Now,
	}
}

// Sync implements Engine.Sync.
func (e *engine) Sync(ctx context.Context, req *SyncRequest) *SyncResponse {
	start := e.now()
	revision := req.Revision.Or(0) + 1
	requestID := req.RequestID.Ptr()

	log := e.log.WithFields(logrus.Fields{
		"request_id": req.RequestID.String(),
		"revision":   revision,
	})
	log.WithField("items", req.Tasks.Len()).Info("sync request received")

	changes := ChangeSet{RequestID: requestID, Revision: revision}
	rows := []*schema.Task{}

	if err := e.apply(ctx, req.Tasks, &rows, &changes, log); err != nil {
		log.WithError(err).Error("failed to sync batch")
		e.observer.ObserveBatch(BatchFailure, e.now().Sub(start))
		if !changes.Empty() {
			changes.Partial = true
			e.notify(changes)
		}
		msg := SyncFailedMessage
		return &SyncResponse{
			Success:   false,
			RequestID: requestID,
			Message:   &msg,
		}
	}

	e.observer.ObserveBatch(BatchSuccess, e.now().Sub(start))
	log.WithFields(logrus.Fields{
		"created": len(changes.Created),
		"updated": len(changes.Updated),
		"removed": len(changes.Removed),
	}).Info("sync batch applied")
	if !changes.Empty() {
		e.notify(changes)
	}

	return &SyncResponse{
		Success:   true,
		RequestID: requestID,
		Revision:  &revision,
		Tasks:     &SyncRows{Rows: rows},
	}
}

// apply runs the three categories in order and stops at the first store
// error. rows and changes reflect everything committed before it.
func (e *engine) apply(ctx context.Context, c *TaskChanges, rows *[]*schema.Task, changes *ChangeSet, log logrus.FieldLogger) error {
	if c == nil {
		return nil
	}

	for i := range c.Added {
		task, err := e.add(ctx, &c.Added[i], log)
		if err != nil {
			return err
		}
		*rows = append(*rows, task)
		changes.Created = append(changes.Created, task.ID)
	}

	for i := range c.Updated {
		id, applied, err := e.update(ctx, &c.Updated[i], log)
		if err != nil {
			return err
		}
		if applied {
			changes.Updated = append(changes.Updated, id)
		}
	}

	for i := range c.Removed {
		id, applied, err := e.remove(ctx, &c.Removed[i], log)
		if err != nil {
			return err
		}
		if applied {
			changes.Removed = append(changes.Removed, id)
		}
	}

	return nil
}

func (e *engine) add(ctx context.Context, p *patch.TaskPatch, log logrus.FieldLogger) (*schema.Task, error) {
	draft := p.Draft()
	phantomID := draft.PhantomID

	id, err := e.store.InsertTask(ctx, draft)
	if err != nil {
		e.observer.ObserveItem(KindAdded, OutcomeFailed)
		return nil, fmt.Errorf("failed to add task %q: %w", phantomID, err)
	}

	draft.ID = id
	draft.PhantomID = phantomID
	e.observer.ObserveItem(KindAdded, OutcomeApplied)
	log.WithFields(logrus.Fields{"task_id": id, "phantom_id": phantomID}).Debug("task added")
	return draft, nil
}

func (e *engine) update(ctx context.Context, p *patch.TaskPatch, log logrus.FieldLogger) (int64, bool, error) {
	id := p.TargetID()
	if id <= 0 {
		e.skip(KindUpdated, id, "malformed id", log)
		return id, false, nil
	}

	if _, err := e.store.GetTask(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.skip(KindUpdated, id, "not found", log)
			return id, false, nil
		}
		e.observer.ObserveItem(KindUpdated, OutcomeFailed)
		return id, false, fmt.Errorf("failed to look up task %d: %w", id, err)
	}

	if err := e.store.UpdateTask(ctx, id, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Removed by another batch since the lookup.
			e.skip(KindUpdated, id, "not found", log)
			return id, false, nil
		}
		e.observer.ObserveItem(KindUpdated, OutcomeFailed)
		return id, false, fmt.Errorf("failed to update task %d: %w", id, err)
	}

	e.observer.ObserveItem(KindUpdated, OutcomeApplied)
	log.WithFields(logrus.Fields{"task_id": id, "patch": p.String()}).Debug("task updated")
	return id, true, nil
}

func (e *engine) remove(ctx context.Context, p *patch.TaskPatch, log logrus.FieldLogger) (int64, bool, error) {
	id := p.TargetID()
	if id <= 0 {
		e.skip(KindRemoved, id, "malformed id", log)
		return id, false, nil
	}

	if _, err := e.store.GetTask(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.skip(KindRemoved, id, "not found", log)
			return id, false, nil
		}
		e.observer.ObserveItem(KindRemoved, OutcomeFailed)
		return id, false, fmt.Errorf("failed to look up task %d: %w", id, err)
	}

	n, err := e.store.DeleteTaskCascade(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.skip(KindRemoved, id, "not found", log)
			return id, false, nil
		}
		e.observer.ObserveItem(KindRemoved, OutcomeFailed)
		return id, false, fmt.Errorf("failed to remove task %d: %w", id, err)
	}

	e.observer.ObserveItem(KindRemoved, OutcomeApplied)
	log.WithFields(logrus.Fields{"task_id": id, "deleted": n}).Debug("task removed")
	return id, true, nil
}

func (e *engine) skip(kind string, id int64, reason string, log logrus.FieldLogger) {
	e.observer.ObserveItem(kind, OutcomeSkipped)
	log.WithFields(logrus.Fields{"kind": kind, "task_id": id, "reason": reason}).Debug("item skipped")
}

func (e *engine) notify(c ChangeSet) {
	if e.notifier != nil {
		e.notifier.NotifySync(c)
	}
}

// Load implements Engine.Load.
func (e *engine) Load(ctx context.Context, requestID string) (*LoadResponse, error) {
	start := e.now()
	if requestID == "" {
		requestID = strconv.FormatInt(start.UnixMilli(), 10)
	}

	rows, err := e.store.ListTasksOrdered(ctx)
	if err != nil {
		e.observer.ObserveLoad(BatchFailure, 0, e.now().Sub(start))
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if rows == nil {
		rows = []*schema.Task{}
	}

	e.observer.ObserveLoad(BatchSuccess, len(rows), e.now().Sub(start))
	e.log.WithFields(logrus.Fields{"request_id": requestID, "rows": len(rows)}).Info("loaded tasks")

	return &LoadResponse{
		Success:   true,
		RequestID: requestID,
		Revision:  LoadRevision,
		Tasks: StoreData{
			Rows:  rows,
			Total: len(rows),
		},
	}, nil
}

type nopObserver struct{}

func (nopObserver) ObserveBatch(string, time.Duration) {}
func (nopObserver) ObserveItem(string, string) {}
func (nopObserver) ObserveLoad(string, int, time.Duration) {}
