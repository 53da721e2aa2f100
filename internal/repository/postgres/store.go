package postgres

import "github.com/andresuchdata/restockplan/internal/repository"

type store struct {
	repository.EvaluationRepository
	repository.BranchRepository
}

// NewStore backs both repositories with one pool.
func NewStore(db *DB) repository.Store {
	return store{
		EvaluationRepository: NewEvaluationRepository(db),
		BranchRepository:     NewBranchRepository(db),
	}
}
