package repositories

import (
	"github.com/eakgun/fcartrack/internal/db"
)

// Repositories holds all the repository instances
type Repositories struct {
	FCARRepository       *FCARRepository
	AssignmentRepository *AssignmentRepository
}

// NewRepositories initializes all repositories against the given connection
// provider
func NewRepositories(db db.Pool) *Repositories {
	return &Repositories{
		FCARRepository:       NewFCARRepository(db),
		AssignmentRepository: NewAssignmentRepository(db),
	}
}
