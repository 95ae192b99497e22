// Package memory provides in-process implementations of the repository
// interfaces. It backs tests and single-node deployments without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/repository"
)

// Store holds all exchange state behind one mutex. Every method is a single
// critical section, so each write is atomic with respect to every read.
type Store struct {
	mu sync.Mutex

	users      map[int64]*models.User
	videos     map[int64]*models.Video
	tasks      map[int64]*models.Task
	complaints map[int64]*models.Complaint

	nextVideoID     int64
	nextTaskID      int64
	nextComplaintID int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:      make(map[int64]*models.User),
		videos:     make(map[int64]*models.Video),
		tasks:      make(map[int64]*models.Task),
		complaints: make(map[int64]*models.Complaint),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Users:      (*userRepo)(s),
		Videos:     (*videoRepo)(s),
		Tasks:      (*taskRepo)(s),
		Complaints: (*complaintRepo)(s),
	}
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, db.ErrNotFound)
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyVideo(v *models.Video) *models.Video {
	c := *v
	if v.Link != nil {
		l := *v.Link
		c.Link = &l
	}
	return &c
}

func copyComplaint(c *models.Complaint) *models.Complaint {
	cp := *c
	if c.ProofSnapshot != nil {
		p := *c.ProofSnapshot
		cp.ProofSnapshot = &p
	}
	if c.ClosedAt != nil {
		t := *c.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

// Users

type userRepo Store

var _ repository.UserRepository = (*userRepo)(nil)

func (r *userRepo) Upsert(ctx context.Context, user *models.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		s.users[user.ID] = copyUser(user)
		return nil
	}
	if user.DisplayName != "" {
		existing.DisplayName = user.DisplayName
	}
	existing.UpdatedAt = user.UpdatedAt
	*user = *existing
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, notFound("get user by id")
	}
	return copyUser(u), nil
}

func (r *userRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return page(users, limit, offset), nil
}

func (r *userRepo) mutate(op string, id int64, fn func(u *models.User)) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, notFound(op)
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return copyUser(u), nil
}

func (r *userRepo) SetPaused(ctx context.Context, id int64, paused bool) (*models.User, error) {
	return r.mutate("set user paused", id, func(u *models.User) { u.Paused = paused })
}

func (r *userRepo) AddStrike(ctx context.Context, id int64, banThreshold int) (*models.User, bool, error) {
	var newlyBanned bool
	u, err := r.mutate("add strike", id, func(u *models.User) {
		u.Strikes++
		if !u.Banned && u.Strikes >= banThreshold {
			u.Banned = true
			newlyBanned = true
		}
	})
	return u, newlyBanned, err
}

func (r *userRepo) RemoveStrike(ctx context.Context, id int64) (*models.User, error) {
	return r.mutate("remove strike", id, func(u *models.User) {
		if u.Strikes > 0 {
			u.Strikes--
		}
	})
}

func (r *userRepo) SetBanned(ctx context.Context, id int64, banned bool) (*models.User, error) {
	return r.mutate("set user banned", id, func(u *models.User) { u.Banned = banned })
}

func (r *userRepo) ListBanned(ctx context.Context) ([]int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, u := range s.users {
		if u.Banned {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *userRepo) Stats(ctx context.Context) (*repository.UserStats, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &repository.UserStats{Users: len(s.users)}
	for _, u := range s.users {
		stats.StrikesGiven += u.Strikes
		if u.Banned {
			stats.Banned++
		}
	}
	return stats, nil
}

// Videos

type videoRepo Store

var _ repository.VideoRepository = (*videoRepo)(nil)

func (r *videoRepo) Create(ctx context.Context, video *models.Video, maxActive int) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[video.OwnerID]; !ok {
		return fmt.Errorf("create video: %w", db.ErrForeignKeyViolation)
	}

	active := 0
	for _, v := range s.videos {
		if v.OwnerID == video.OwnerID && v.Active {
			active++
		}
	}
	if active >= maxActive {
		return fmt.Errorf("create video: %w", db.ErrLimitReached)
	}

	s.nextVideoID++
	video.ID = s.nextVideoID
	s.videos[video.ID] = copyVideo(video)
	return nil
}

func (r *videoRepo) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, notFound("get video by id")
	}
	return copyVideo(v), nil
}

func (r *videoRepo) ListActiveByOwner(ctx context.Context, ownerID int64) ([]*models.Video, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var videos []*models.Video
	for _, v := range s.videos {
		if v.OwnerID == ownerID && v.Active {
			videos = append(videos, copyVideo(v))
		}
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].OlderThan(videos[j]) })
	return videos, nil
}

func (r *videoRepo) Deactivate(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return notFound("deactivate video")
	}
	v.Active = false
	return nil
}

// Tasks

type taskRepo Store

var _ repository.TaskRepository = (*taskRepo)(nil)

func (r *taskRepo) Create(ctx context.Context, task *models.Task) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTaskID++
	task.ID = s.nextTaskID
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("get task by id")
	}
	return t.Clone(), nil
}

func (r *taskRepo) Update(ctx context.Context, task *models.Task) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tasks[task.ID]
	if !ok {
		return notFound("update task")
	}
	if stored.IsTerminal() {
		return fmt.Errorf("update task: %w", models.ErrTaskTerminal)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (r *taskRepo) MarkDisputed(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return notFound("mark task disputed")
	}
	t.Disputed = true
	return nil
}

func (r *taskRepo) GetOpenByUser(ctx context.Context, userID int64) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.Task
	for _, t := range s.tasks {
		if t.IsTerminal() || (t.UserA != userID && t.UserB != userID) {
			continue
		}
		if found == nil || t.CreatedAt.After(found.CreatedAt) {
			found = t
		}
	}
	if found == nil {
		return nil, notFound("get open task by user")
	}
	return found.Clone(), nil
}

func (r *taskRepo) ListOpen(ctx context.Context, limit int) ([]*models.Task, error) {
	return r.ListOpenAfter(ctx, models.TaskCursor{}, limit)
}

func (r *taskRepo) ListOpenAfter(ctx context.Context, after models.TaskCursor, limit int) ([]*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*models.Task
	for _, t := range s.tasks {
		if !t.IsTerminal() && t.After(after) {
			tasks = append(tasks, t.Clone())
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return page(tasks, limit, 0), nil
}

func (r *taskRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.tasks {
		if t.UserA == userID || t.UserB == userID {
			count++
		}
	}
	return count, nil
}

func (r *taskRepo) CountOpen(ctx context.Context) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.tasks {
		if !t.IsTerminal() {
			count++
		}
	}
	return count, nil
}

// Complaints

type complaintRepo Store

var _ repository.ComplaintRepository = (*complaintRepo)(nil)

func (r *complaintRepo) Create(ctx context.Context, complaint *models.Complaint) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[complaint.TaskID]; !ok {
		return fmt.Errorf("create complaint: %w", db.ErrForeignKeyViolation)
	}
	s.nextComplaintID++
	complaint.ID = s.nextComplaintID
	s.complaints[complaint.ID] = copyComplaint(complaint)
	return nil
}

func (r *complaintRepo) GetByID(ctx context.Context, id int64) (*models.Complaint, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.complaints[id]
	if !ok {
		return nil, notFound("get complaint by id")
	}
	return copyComplaint(c), nil
}

func (r *complaintRepo) List(ctx context.Context, status string, limit, offset int) ([]*models.Complaint, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var complaints []*models.Complaint
	for _, c := range s.complaints {
		if status == "" || c.Status == status {
			complaints = append(complaints, copyComplaint(c))
		}
	}
	sort.Slice(complaints, func(i, j int) bool { return complaints[i].ID < complaints[j].ID })
	return page(complaints, limit, offset), nil
}

func (r *complaintRepo) Close(ctx context.Context, id int64) (*models.Complaint, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.complaints[id]
	if !ok {
		return nil, notFound("close complaint")
	}
	if c.Status != models.ComplaintClosed {
		c.MarkClosed()
	}
	return copyComplaint(c), nil
}

func (r *complaintRepo) CountOpen(ctx context.Context) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, c := range s.complaints {
		if c.Status == models.ComplaintOpen {
			count++
		}
	}
	return count, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
