//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"krtbank/internal/account/models"
	"krtbank/pkg/testutil/containers"
)

type ViewCacheIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *ViewCache
	ctx   context.Context
}

func TestViewCacheIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ViewCacheIntegrationSuite))
}

func (s *ViewCacheIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = New(s.redis.Client, WithTTL(time.Hour))
}

func (s *ViewCacheIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *ViewCacheIntegrationSuite) TestSetAppliesTTL() {
	view := &models.AccountView{ID: "acc-1", HolderName: "Bob Smith", Cpf: "52998224725"}
	s.Require().NoError(s.cache.Set(s.ctx, view.ID, view))

	ttl, err := s.redis.Client.TTL(s.ctx, view.ID).Result()
	s.Require().NoError(err)
	s.InDelta(time.Hour.Seconds(), ttl.Seconds(), 5)

	got, ok := s.cache.Get(s.ctx, view.ID)
	s.Require().True(ok)
	s.Equal(view, got)

	s.Require().NoError(s.cache.Delete(s.ctx, view.ID))
	_, ok = s.cache.Get(s.ctx, view.ID)
	s.False(ok)
}
