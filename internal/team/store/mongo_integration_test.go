//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"apihub/internal/team/store"
	"apihub/pkg/platform/sensitive"
	"apihub/pkg/platform/sentinel"
	fixtures "apihub/pkg/testutil"
	"apihub/pkg/testutil/containers"
)

type MongoStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *store.MongoStore
}

func TestMongoStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MongoStoreSuite))
}

func (s *MongoStoreSuite) SetupTest() {
	s.ctx = context.Background()
	client := containers.GetManager().GetMongo(s.T()).NewDatabase(s.T())
	s.Require().NoError(client.EnsureIndexes(s.ctx, store.Indexes...))

	cipher, err := sensitive.NewXChaCha("integration-test-encryption-key")
	s.Require().NoError(err)
	s.store = store.NewMongoStore(client.Database(), cipher, sensitive.NewHMACKeyer("integration-test-member-key"))
}

func (s *MongoStoreSuite) TestNameIsUniqueIgnoringCase() {
	s.Require().NoError(s.store.CreateIfNameAvailable(s.ctx, fixtures.NewTestTeam(fixtures.TestIDs.Team1, "Payments")))

	err := s.store.CreateIfNameAvailable(s.ctx, fixtures.NewTestTeam(fixtures.TestIDs.Team2, "PAYMENTS"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	found, err := s.store.FindByName(s.ctx, "payments")
	s.Require().NoError(err)
	s.Equal(fixtures.TestIDs.Team1, found.ID)
}

func (s *MongoStoreSuite) TestListByMember() {
	s.Require().NoError(s.store.CreateIfNameAvailable(s.ctx, fixtures.NewTestTeam(fixtures.TestIDs.Team1, "Payments")))
	s.Require().NoError(s.store.CreateIfNameAvailable(s.ctx, fixtures.NewTestTeam(fixtures.TestIDs.Team2, "Search", "other@example.com")))

	teams, err := s.store.List(s.ctx, fixtures.TestIDs.Member)
	s.Require().NoError(err)
	s.Require().Len(teams, 1)
	s.Equal("Payments", teams[0].Name)
	s.Equal([]string{fixtures.TestIDs.Member}, teams[0].TeamMembers)

	all, err := s.store.List(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 2)
}
