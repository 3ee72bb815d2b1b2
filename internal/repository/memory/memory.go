// Package memory holds in-process stores used for local runs and engine tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"taskflow/internal/model"
)

// TaskStore keeps tasks and their audit trail in memory. Audit entries are
// stored apart from the task row so an append never races a task update.
type TaskStore struct {
	mu     sync.RWMutex
	tasks  map[uuid.UUID]*model.Task
	audits map[uuid.UUID][]model.AuditEntry
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:  map[uuid.UUID]*model.Task{},
		audits: map[uuid.UUID][]model.AuditEntry{},
	}
}

func (s *TaskStore) FindByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", model.ErrNotFound, id)
	}
	snapshot := *t
	snapshot.AuditTrail = s.audits[id]
	return snapshot.Clone(), nil
}

func (s *TaskStore) Create(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("%w: task %s already exists", model.ErrConflict, t.ID)
	}
	s.put(t)
	s.audits[t.ID] = slices.Clone(t.AuditTrail)
	return nil
}

// ConditionalUpdate replaces the task when the stored version still equals
// expectedVersion and appends entries in the same critical section.
func (s *TaskStore) ConditionalUpdate(_ context.Context, t *model.Task, expectedVersion int, entries []model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("%w: task %s", model.ErrNotFound, t.ID)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("%w: task %s changed (version %d, expected %d)", model.ErrConflict, t.ID, cur.Version, expectedVersion)
	}

	t.Version = expectedVersion + 1
	s.put(t)
	s.audits[t.ID] = append(s.audits[t.ID], entries...)
	return nil
}

func (s *TaskStore) AppendAudit(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[entry.TaskID]; !ok {
		return fmt.Errorf("%w: task %s", model.ErrNotFound, entry.TaskID)
	}
	s.audits[entry.TaskID] = append(s.audits[entry.TaskID], entry)
	return nil
}

func (s *TaskStore) put(t *model.Task) {
	c := t.Clone()
	c.AuditTrail = nil
	s.tasks[t.ID] = c
}

// Directory is an in-memory employee directory.
type Directory struct {
	mu        sync.RWMutex
	employees map[int64]model.Employee
	nextID    int64
}

func NewDirectory(employees ...model.Employee) *Directory {
	d := &Directory{employees: map[int64]model.Employee{}}
	for _, e := range employees {
		d.Add(e)
	}
	return d
}

func (d *Directory) Add(e model.Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
	if e.ID > d.nextID {
		d.nextID = e.ID
	}
}

// Create assigns the next id to the employee. Emails are unique.
func (d *Directory) Create(_ context.Context, e *model.Employee) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.employees {
		if existing.Email == e.Email {
			return fmt.Errorf("%w: email %s is taken", model.ErrConflict, e.Email)
		}
	}
	d.nextID++
	e.ID = d.nextID
	if e.Role == "" {
		e.Role = model.RoleEmployee
	}
	d.employees[e.ID] = *e
	return nil
}

// FindByEmail returns nil without error when no employee has the email.
func (d *Directory) FindByEmail(_ context.Context, email string) (*model.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.employees {
		if e.Email == email {
			return &e, nil
		}
	}
	return nil, nil
}

func (d *Directory) ResolveName(_ context.Context, id int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.employees[id]
	if !ok {
		return "", fmt.Errorf("%w: employee %d", model.ErrNotFound, id)
	}
	return e.Name, nil
}

// Inbox stores notifications per user.
type Inbox struct {
	mu    sync.Mutex
	items []model.Notification
}

func NewInbox() *Inbox {
	return &Inbox{}
}

func (i *Inbox) Create(_ context.Context, n *model.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, *n)
	return nil
}

func (i *Inbox) ListByUser(_ context.Context, userID int64) ([]model.Notification, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var out []model.Notification
	for _, n := range i.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (i *Inbox) MarkRead(_ context.Context, userID int64, id uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for k := range i.items {
		if i.items[k].ID == id && i.items[k].UserID == userID {
			i.items[k].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("%w: notification %s", model.ErrNotFound, id)
}
