package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles the repositories the exchange services depend on.
type Repositories struct {
	Users      UserRepository
	Videos     VideoRepository
	Tasks      TaskRepository
	Complaints ComplaintRepository
}

// NewRepositories creates Postgres-backed repositories sharing one pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:      NewUserRepository(pool),
		Videos:     NewVideoRepository(pool),
		Tasks:      NewTaskRepository(pool),
		Complaints: NewComplaintRepository(pool),
	}
}
