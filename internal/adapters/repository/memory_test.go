package repository_test

import (
	"testing"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/adapters/repository/repotest"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Repository {
		s := repository.NewMemoryStore()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStoreClosed(t *testing.T) {
	s := repository.NewMemoryStore()
	assert.NoError(t, s.Close())
	_, err := s.Employees(t.Context(), repository.EmployeeFilter{})
	assert.ErrorIs(t, err, repository.ErrClosed)
}
