package store

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/crewdeck/crewdeck/internal/api"
	"github.com/crewdeck/crewdeck/internal/model"
)

// fakeTasksAPI scripts the remote side of the task store.
type fakeTasksAPI struct {
	listFn    func(model.TaskFilter) (*api.TaskList, error)
	myFn      func() (*api.TaskList, error)
	getFn     func(string) (*model.Task, error)
	createFn  func(*model.Task) (*model.Task, error)
	updateFn  func(string, model.TaskPatch) (*model.Task, error)
	deleteFn  func(string) error
	commentFn func(string, string) (*model.Task, error)
}

func (f *fakeTasksAPI) ListTasks(_ context.Context, filter model.TaskFilter) (*api.TaskList, error) {
	return f.listFn(filter)
}
func (f *fakeTasksAPI) MyTasks(_ context.Context) (*api.TaskList, error) { return f.myFn() }
func (f *fakeTasksAPI) GetTask(_ context.Context, id string) (*model.Task, error) {
	return f.getFn(id)
}
func (f *fakeTasksAPI) CreateTask(_ context.Context, task *model.Task) (*model.Task, error) {
	return f.createFn(task)
}
func (f *fakeTasksAPI) UpdateTask(_ context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	return f.updateFn(id, patch)
}
func (f *fakeTasksAPI) DeleteTask(_ context.Context, id string) error { return f.deleteFn(id) }
func (f *fakeTasksAPI) AddComment(_ context.Context, id, content string) (*model.Task, error) {
	return f.commentFn(id, content)
}

func testTask(id string, status model.Status, order int) *model.Task {
	return &model.Task{
		ID:        id,
		Title:     "Task " + id,
		Status:    status,
		Priority:  model.PriorityMedium,
		Order:     order,
		CreatedAt: time.Now(),
	}
}

func newTestStore(fake *fakeTasksAPI) *TaskStore {
	return NewTaskStore(fake, log.New(os.Stderr, "[test] ", log.LstdFlags))
}

func seedStore(t *testing.T, fake *fakeTasksAPI, tasks ...*model.Task) *TaskStore {
	t.Helper()
	fake.listFn = func(model.TaskFilter) (*api.TaskList, error) {
		return &api.TaskList{Data: tasks}, nil
	}
	s := newTestStore(fake)
	s.Fetch(context.Background(), model.TaskFilter{})
	if err := s.Err(); err != nil {
		t.Fatalf("Seed fetch failed: %v", err)
	}
	return s
}

func TestCreateGrowsListByOne(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	fake.createFn = func(task *model.Task) (*model.Task, error) {
		created := *task
		created.ID = "t-2"
		created.Order = 2
		created.CreatedAt = time.Now()
		return &created, nil
	}

	created, err := s.Create(context.Background(), &model.Task{
		Title:    "Write release notes",
		Status:   model.StatusTodo,
		Priority: model.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID != "t-2" {
		t.Errorf("Expected server-assigned id, got %q", created.ID)
	}

	list := s.Tasks()
	if len(list) != 2 {
		t.Fatalf("List length = %d, want 2", len(list))
	}

	now := time.Now()
	todo := s.Filter(model.TaskFilter{Statuses: []model.Status{model.StatusTodo}}, now)
	if len(todo) != 2 {
		t.Errorf("todo filter matched %d, want 2", len(todo))
	}
	done := s.Filter(model.TaskFilter{Statuses: []model.Status{model.StatusDone}}, now)
	if len(done) != 0 {
		t.Errorf("done filter matched %d, want 0", len(done))
	}
}

func TestCreateFailureLeavesCacheUntouched(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	fake.createFn = func(*model.Task) (*model.Task, error) {
		return nil, &api.Error{Kind: api.KindValidation, Status: 422, Message: "title required"}
	}

	if _, err := s.Create(context.Background(), &model.Task{}); !api.IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if len(s.Tasks()) != 1 {
		t.Error("Failed create must not grow the cache")
	}
}

func TestUpdatePatchesOnlyTargetTask(t *testing.T) {
	fake := &fakeTasksAPI{}
	a := testTask("t-1", model.StatusTodo, 1)
	b := testTask("t-2", model.StatusTodo, 2)
	s := seedStore(t, fake, a, b)

	fake.updateFn = func(id string, patch model.TaskPatch) (*model.Task, error) {
		updated := *a
		updated.Status = *patch.Status
		return &updated, nil
	}

	if _, err := s.UpdateStatus(context.Background(), "t-1", model.StatusDone); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	for _, task := range s.Tasks() {
		switch task.ID {
		case "t-1":
			if task.Status != model.StatusDone {
				t.Errorf("t-1 status = %s, want done", task.Status)
			}
			if task.Title != a.Title || task.Order != a.Order {
				t.Error("Update touched fields outside the patch")
			}
		case "t-2":
			if task.Status != model.StatusTodo {
				t.Errorf("t-2 status = %s, unrelated task was touched", task.Status)
			}
		}
	}
}

func TestUpdateFailureLeavesCacheUntouched(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	fake.updateFn = func(string, model.TaskPatch) (*model.Task, error) {
		return nil, &api.Error{Kind: api.KindServer, Status: 500, Message: "boom"}
	}

	if _, err := s.UpdateStatus(context.Background(), "t-1", model.StatusDone); !api.IsServer(err) {
		t.Fatalf("Expected server error, got %v", err)
	}
	if got := s.Tasks()[0].Status; got != model.StatusTodo {
		t.Errorf("Status = %s, failed update must not patch the cache", got)
	}
}

func TestUpdateUncachedIDIsCacheNoop(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	fake.updateFn = func(id string, patch model.TaskPatch) (*model.Task, error) {
		stranger := testTask(id, *patch.Status, 9)
		return stranger, nil
	}

	updated, err := s.UpdateStatus(context.Background(), "t-99", model.StatusDone)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ID != "t-99" {
		t.Errorf("Server record should still be returned, got %q", updated.ID)
	}
	if len(s.Tasks()) != 1 || s.Tasks()[0].ID != "t-1" {
		t.Error("Updating an uncached id must not change the list")
	}
}

func TestDeleteClearsListAndCurrent(t *testing.T) {
	fake := &fakeTasksAPI{}
	a := testTask("t-1", model.StatusTodo, 1)
	s := seedStore(t, fake, a, testTask("t-2", model.StatusTodo, 2))

	fake.getFn = func(id string) (*model.Task, error) { return a, nil }
	s.Get(context.Background(), "t-1")
	if s.Current() == nil {
		t.Fatal("Expected an open record")
	}

	fake.deleteFn = func(string) error { return nil }
	if err := s.Delete(context.Background(), "t-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(s.Tasks()) != 1 {
		t.Errorf("List length = %d, want 1", len(s.Tasks()))
	}
	if s.Current() != nil {
		t.Error("Deleting the open record must clear it")
	}
}

func TestDeleteNotFoundStillEvicts(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	fake.deleteFn = func(string) error {
		return &api.Error{Kind: api.KindNotFound, Status: 404, Message: "gone"}
	}

	err := s.Delete(context.Background(), "t-1")
	if !api.IsNotFound(err) {
		t.Fatalf("Expected not-found error, got %v", err)
	}
	if len(s.Tasks()) != 0 {
		t.Error("A 404 on delete means the record is gone; it must leave the cache")
	}
}

func TestFetchFailureKeepsStaleList(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	fake.listFn = func(model.TaskFilter) (*api.TaskList, error) {
		return nil, &api.Error{Kind: api.KindNetwork, Message: "offline"}
	}

	list := s.Fetch(context.Background(), model.TaskFilter{})
	if len(list) != 1 {
		t.Errorf("Failed fetch should return the last-known list, got %d entries", len(list))
	}
	if !api.IsNetwork(s.Err()) {
		t.Errorf("Err = %v, want the network failure", s.Err())
	}

	// The next successful fetch clears the error.
	fake.listFn = func(model.TaskFilter) (*api.TaskList, error) {
		return &api.TaskList{Data: []*model.Task{testTask("t-1", model.StatusTodo, 1)}}, nil
	}
	s.Fetch(context.Background(), model.TaskFilter{})
	if s.Err() != nil {
		t.Errorf("Err should reset on success, got %v", s.Err())
	}
}

func TestGetNotFoundEvicts(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	fake.getFn = func(string) (*model.Task, error) {
		return nil, &api.Error{Kind: api.KindNotFound, Status: 404, Message: "gone"}
	}

	if got := s.Get(context.Background(), "t-1"); got != nil {
		t.Errorf("Get = %v, want nil", got)
	}
	if len(s.Tasks()) != 0 {
		t.Error("A 404 must evict the record from the cache")
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake, testTask("t-1", model.StatusTodo, 1))

	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	fake.updateFn = func(id string, patch model.TaskPatch) (*model.Task, error) {
		if *patch.Status == model.StatusInProgress {
			close(firstEntered)
			<-releaseFirst
		}
		updated := *testTask("t-1", *patch.Status, 1)
		return &updated, nil
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.UpdateStatus(context.Background(), "t-1", model.StatusInProgress)
		firstDone <- err
	}()
	<-firstEntered

	// The second mutation is issued later but completes first.
	if _, err := s.UpdateStatus(context.Background(), "t-1", model.StatusDone); err != nil {
		t.Fatalf("Second update failed: %v", err)
	}

	close(releaseFirst)
	if err := <-firstDone; err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	if got := s.Tasks()[0].Status; got != model.StatusDone {
		t.Errorf("Status = %s, the stale in_progress completion must be discarded", got)
	}
}

func TestColumnsGroupByStatus(t *testing.T) {
	fake := &fakeTasksAPI{}
	s := seedStore(t, fake,
		testTask("t-1", model.StatusTodo, 2),
		testTask("t-2", model.StatusTodo, 1),
		testTask("t-3", model.StatusDone, 1),
	)

	columns := s.Columns()
	todo := columns[model.StatusTodo]
	if len(todo) != 2 {
		t.Fatalf("todo column size = %d, want 2", len(todo))
	}
	if todo[0].ID != "t-2" || todo[1].ID != "t-1" {
		t.Errorf("todo column out of order: %s, %s", todo[0].ID, todo[1].ID)
	}
	if len(columns[model.StatusDone]) != 1 {
		t.Errorf("done column size = %d, want 1", len(columns[model.StatusDone]))
	}
}

func TestCommentRefreshesRecord(t *testing.T) {
	fake := &fakeTasksAPI{}
	a := testTask("t-1", model.StatusTodo, 1)
	s := seedStore(t, fake, a)

	fake.commentFn = func(id, content string) (*model.Task, error) {
		updated := *a
		updated.Comments = []model.Comment{{ID: "c-1", Content: content, CreatedAt: time.Now()}}
		return &updated, nil
	}

	updated, err := s.AddComment(context.Background(), "t-1", "looks good")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if len(updated.Comments) != 1 {
		t.Fatalf("Comments = %d, want 1", len(updated.Comments))
	}
	if got := s.Tasks()[0]; len(got.Comments) != 1 {
		t.Error("Cache should hold the refreshed record")
	}
}

func TestFetchMy(t *testing.T) {
	fake := &fakeTasksAPI{}
	fake.myFn = func() (*api.TaskList, error) {
		return &api.TaskList{Data: []*model.Task{testTask("t-9", model.StatusInProgress, 1)}}, nil
	}

	s := newTestStore(fake)
	list := s.FetchMy(context.Background())
	if len(list) != 1 || list[0].ID != "t-9" {
		t.Fatalf("Unexpected list: %+v", list)
	}
}
