package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"OpenCollab/internal/modules/notification/application/dto/respond"
	"OpenCollab/internal/modules/notification/domain/entity"
	"OpenCollab/internal/modules/notification/domain/repository"
)

// memoryRepository 以 map 实现的仓储，可通过 func 字段注入错误
type memoryRepository struct {
	mu    sync.Mutex
	seq   int
	rows  map[string]*entity.Notification
	calls map[string]int

	CreateFunc           func(n *entity.Notification) error
	FindManyFunc         func(filter repository.NotificationFilter) ([]*entity.Notification, error)
	UpdateManyReadAtFunc func(filter repository.NotificationFilter, readAt time.Time) (int64, error)
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		rows:  make(map[string]*entity.Notification),
		calls: make(map[string]int),
	}
}

func (r *memoryRepository) seed(n *entity.Notification) *entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.Id == "" {
		r.seq++
		n.Id = fmt.Sprintf("n%d", r.seq)
	}
	cp := *n
	r.rows[n.Id] = &cp
	return n
}

func (r *memoryRepository) get(id string) *entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

func (r *memoryRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memoryRepository) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	r.calls["Create"]++
	r.mu.Unlock()
	if r.CreateFunc != nil {
		if err := r.CreateFunc(n); err != nil {
			return err
		}
	}
	r.seed(n)
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (*entity.Notification, error) {
	if n := r.get(id); n != nil {
		return n, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepository) FindMany(_ context.Context, filter repository.NotificationFilter) ([]*entity.Notification, error) {
	if r.FindManyFunc != nil {
		return r.FindManyFunc(filter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Notification, 0)
	for _, n := range r.rows {
		if matches(n, filter) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) UpdateReadAt(_ context.Context, id string, readAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if n.ReadAt != nil {
		return repository.ErrAlreadyRead
	}
	t := readAt
	n.ReadAt = &t
	return nil
}

func (r *memoryRepository) UpdateManyReadAt(_ context.Context, filter repository.NotificationFilter, readAt time.Time) (int64, error) {
	if r.UpdateManyReadAtFunc != nil {
		return r.UpdateManyReadAtFunc(filter, readAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	for _, n := range r.rows {
		if matches(n, filter) {
			t := readAt
			n.ReadAt = &t
			affected++
		}
	}
	return affected, nil
}

func matches(n *entity.Notification, filter repository.NotificationFilter) bool {
	if filter.RecipientId != "" && n.RecipientId != filter.RecipientId {
		return false
	}
	if filter.UnreadOnly && n.ReadAt != nil {
		return false
	}
	if len(filter.Ids) > 0 {
		for _, id := range filter.Ids {
			if id == n.Id {
				return true
			}
		}
		return false
	}
	return true
}

type sentFrame struct {
	event  string
	userID string
	item   respond.NotificationItem
}

// fakeDispatcher 记录推送，FailFor 中的 notification id 返回错误
type fakeDispatcher struct {
	mu      sync.Mutex
	frames  []sentFrame
	FailFor map[string]bool
	FailAll bool
}

func (d *fakeDispatcher) record(event, userID string, payload interface{}) error {
	item := payload.(respond.NotificationItem)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, sentFrame{event: event, userID: userID, item: item})
	if d.FailAll || d.FailFor[item.Id] {
		return errors.New("channel write failed")
	}
	return nil
}

func (d *fakeDispatcher) SendToUser(userID string, payload interface{}) error {
	return d.record("notification", userID, payload)
}

func (d *fakeDispatcher) SendUpdateToUser(userID string, payload interface{}) error {
	return d.record("notification-update", userID, payload)
}

func (d *fakeDispatcher) sent(event string) []sentFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []sentFrame
	for _, f := range d.frames {
		if f.event == event {
			out = append(out, f)
		}
	}
	return out
}

type fakeChannel struct {
	name      string
	delivered []string
	err       error
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Deliver(_ context.Context, item respond.NotificationItem) error {
	c.delivered = append(c.delivered, item.Id)
	return c.err
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedUnread(repo *memoryRepository, recipient string, n int) []*entity.Notification {
	out := make([]*entity.Notification, 0, n)
	for i := 0; i < n; i++ {
		row, _ := entity.NewNotification(entity.CreateParams{
			RecipientId: recipient,
			Type:        "project.updated",
			Payload:     entity.Payload{"i": i},
		}, baseTime.Add(time.Duration(i)*time.Minute))
		out = append(out, repo.seed(row))
	}
	return out
}
