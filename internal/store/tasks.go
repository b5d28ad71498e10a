// Package store holds the client-side entity caches. Stores call the REST
// client first and patch their cache only from successful responses, so the
// cache never shows state the server rejected.
package store

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/api"
	"github.com/crewdeck/crewdeck/internal/model"
)

// TasksAPI is the slice of the REST client the task store depends on.
type TasksAPI interface {
	ListTasks(ctx context.Context, filter model.TaskFilter) (*api.TaskList, error)
	MyTasks(ctx context.Context) (*api.TaskList, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	CreateTask(ctx context.Context, task *model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	AddComment(ctx context.Context, id, content string) (*model.Task, error)
}

// TaskStore is the authoritative client-side task cache.
//
// Mutations are confirm-then-patch: the remote call runs first and the cache
// changes only on success. Because calls may complete out of issuance order,
// every mutation is stamped with a per-record sequence number and a
// completion older than the last applied one is discarded instead of
// clobbering newer state.
type TaskStore struct {
	api    TasksAPI
	logger *log.Logger

	mu         sync.Mutex
	tasks      []*model.Task
	current    *model.Task
	pagination model.Pagination
	lastErr    error

	issued  map[string]uint64
	applied map[string]uint64
}

// NewTaskStore creates a task store backed by the given API client.
func NewTaskStore(tasksAPI TasksAPI, logger *log.Logger) *TaskStore {
	if logger == nil {
		logger = log.New(os.Stderr, "[tasks] ", log.LstdFlags)
	}
	return &TaskStore{
		api:     tasksAPI,
		logger:  logger,
		issued:  make(map[string]uint64),
		applied: make(map[string]uint64),
	}
}

// Fetch loads tasks matching the filter into the cache and returns the
// visible list. On failure the last-known list stays visible, the failure
// is recorded on Err, and the stale list is returned: a failed background
// refresh never interrupts whatever the caller was doing.
func (s *TaskStore) Fetch(ctx context.Context, filter model.TaskFilter) []*model.Task {
	list, err := s.api.ListTasks(ctx, filter)
	return s.applyList(list, err)
}

// FetchMy loads the current user's assigned tasks. Same failure behavior
// as Fetch.
func (s *TaskStore) FetchMy(ctx context.Context) []*model.Task {
	list, err := s.api.MyTasks(ctx)
	return s.applyList(list, err)
}

func (s *TaskStore) applyList(list *api.TaskList, err error) []*model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Printf("Fetch failed: %v", err)
		s.lastErr = err
		return s.snapshotLocked()
	}

	s.tasks = append([]*model.Task(nil), list.Data...)
	s.sortLocked()
	s.pagination = list.Pagination
	s.lastErr = nil
	return s.snapshotLocked()
}

// Get fetches one task and makes it the currently open record. A NotFound
// response evicts the id from the cache (the record is gone server-side).
// Read-op failure semantics: the error lands on Err, not the return.
func (s *TaskStore) Get(ctx context.Context, id string) *model.Task {
	task, err := s.api.GetTask(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		if api.IsNotFound(err) {
			s.evictLocked(id)
		}
		return nil
	}

	s.patchLocked(task)
	s.current = task
	s.lastErr = nil
	return task
}

// Create creates the task remotely and, on success, adds the server's
// authoritative record to the cache. Write failures are returned to the
// caller and leave the cache untouched.
func (s *TaskStore) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	task.SetDefaults()
	created, err := s.api.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, created)
	s.sortLocked()
	s.mu.Unlock()
	return created, nil
}

// Update applies a partial update. Updating an id that is not cached is a
// cache no-op; the server record is still returned. A completion that
// resolves after a newer one for the same record is discarded.
func (s *TaskStore) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	seq := s.begin(id)

	updated, err := s.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.commitLocked(id, seq) {
		s.logger.Printf("Discarding stale update completion for %s (seq %d)", id, seq)
		return updated, nil
	}
	s.patchLocked(updated)
	if s.current != nil && s.current.ID == id {
		s.current = updated
	}
	return updated, nil
}

// UpdateStatus moves a task to the given board column.
func (s *TaskStore) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Task, error) {
	return s.Update(ctx, id, model.StatusPatch(status))
}

// Delete removes the task remotely and from the cache, including the open
// record when it matches. A NotFound response still evicts locally: the
// record does not exist either way.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	seq := s.begin(id)

	err := s.api.DeleteTask(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if api.IsNotFound(err) {
			s.evictLocked(id)
		}
		return err
	}

	if !s.commitLocked(id, seq) {
		s.logger.Printf("Discarding stale delete completion for %s (seq %d)", id, seq)
	}
	s.evictLocked(id)
	return nil
}

// AddComment appends a comment remotely and refreshes the cached record
// from the response.
func (s *TaskStore) AddComment(ctx context.Context, id, content string) (*model.Task, error) {
	seq := s.begin(id)

	updated, err := s.api.AddComment(ctx, id, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.commitLocked(id, seq) {
		s.logger.Printf("Discarding stale comment completion for %s (seq %d)", id, seq)
		return updated, nil
	}
	s.patchLocked(updated)
	if s.current != nil && s.current.ID == id {
		s.current = updated
	}
	return updated, nil
}

// Tasks returns a copy of the visible list, sorted by column order with
// creation time as the tiebreak.
func (s *TaskStore) Tasks() []*model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Filter re-applies a predicate to the cached list without a round trip.
func (s *TaskStore) Filter(filter model.TaskFilter, now time.Time) []*model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Task
	for _, task := range s.tasks {
		if filter.Match(task, now) {
			out = append(out, task)
		}
	}
	return out
}

// Columns groups the cached tasks into board columns keyed by status, each
// column in intra-column order.
func (s *TaskStore) Columns() map[model.Status][]*model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	columns := make(map[model.Status][]*model.Task)
	for _, task := range s.tasks {
		columns[task.Status] = append(columns[task.Status], task)
	}
	return columns
}

// Current returns the currently open record, if any.
func (s *TaskStore) Current() *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Pagination returns the paging envelope from the last successful fetch.
func (s *TaskStore) Pagination() model.Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

// Err returns the failure recorded by the last read operation, or nil.
func (s *TaskStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// begin issues the next mutation sequence number for a record.
func (s *TaskStore) begin(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[id]++
	return s.issued[id]
}

// commitLocked records a completed mutation. It returns false when a newer
// mutation for the record already landed, in which case the caller must not
// touch the cache.
func (s *TaskStore) commitLocked(id string, seq uint64) bool {
	if seq < s.applied[id] {
		return false
	}
	s.applied[id] = seq
	return true
}

// patchLocked replaces the cached record with the server's copy. Unknown
// ids are left alone: patching is not insertion.
func (s *TaskStore) patchLocked(task *model.Task) {
	for i, cached := range s.tasks {
		if cached.ID == task.ID {
			s.tasks[i] = task
			s.sortLocked()
			return
		}
	}
}

// evictLocked drops a record from the list and the open slot.
func (s *TaskStore) evictLocked(id string) {
	for i, cached := range s.tasks {
		if cached.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	delete(s.issued, id)
	delete(s.applied, id)
}

func (s *TaskStore) sortLocked() {
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].Order != s.tasks[j].Order {
			return s.tasks[i].Order < s.tasks[j].Order
		}
		return s.tasks[i].CreatedAt.Before(s.tasks[j].CreatedAt)
	})
}

func (s *TaskStore) snapshotLocked() []*model.Task {
	return append([]*model.Task(nil), s.tasks...)
}
