//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"krtbank/internal/account/models"
	"krtbank/internal/events"
	"krtbank/pkg/platform/sentinel"
	"krtbank/pkg/testutil/containers"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresIntegrationSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "account_changes", "accounts"))
}

func (s *PostgresIntegrationSuite) TestLifecycleProducesChangeFeed() {
	a, err := models.NewAccount("Bob Smith", "52998224725")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, a))

	dup, err := models.NewAccount("Someone Else", "529.982.247-25")
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)

	found, err := s.store.FindByCpf(s.ctx, a.Cpf())
	s.Require().NoError(err)
	s.Equal(a.ID(), found.ID())

	found.Deactivate()
	s.Require().NoError(s.store.Update(s.ctx, found))
	s.Require().NoError(s.store.Delete(s.ctx, a.ID()))

	_, err = s.store.FindByID(s.ctx, a.ID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	pending, err := s.store.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 3)
	s.Equal(events.OperationInsert, pending[0].Operation)
	s.Equal(events.OperationModify, pending[1].Operation)
	s.Equal("0", pending[1].OldImage[events.FieldStatus])
	s.Equal("1", pending[1].NewImage[events.FieldStatus])
	s.Equal(events.OperationRemove, pending[2].Operation)

	s.Require().NoError(s.store.MarkPublished(s.ctx, []string{pending[0].EventID, pending[1].EventID}))
	rest, err := s.store.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(pending[2].EventID, rest[0].EventID)
}
