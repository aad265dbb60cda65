//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"apihub/internal/application/store"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sensitive"
	"apihub/pkg/platform/sentinel"
	fixtures "apihub/pkg/testutil"
	"apihub/pkg/testutil/containers"
)

type MongoStoreSuite struct {
	suite.Suite
	ctx   context.Context
	db    *containers.MongoContainer
	store *store.MongoStore
	raw   func() bson.M
}

func TestMongoStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MongoStoreSuite))
}

func (s *MongoStoreSuite) SetupSuite() {
	s.db = containers.GetManager().GetMongo(s.T())
}

func (s *MongoStoreSuite) SetupTest() {
	s.ctx = context.Background()
	client := s.db.NewDatabase(s.T())
	s.Require().NoError(client.EnsureIndexes(s.ctx, store.Indexes...))

	cipher, err := sensitive.NewXChaCha("integration-test-encryption-key")
	s.Require().NoError(err)
	s.store = store.NewMongoStore(client.Database(), cipher, sensitive.NewHMACKeyer("integration-test-member-key"))
	s.raw = func() bson.M {
		var doc bson.M
		s.Require().NoError(client.Database().Collection("applications").FindOne(s.ctx, bson.M{}).Decode(&doc))
		return doc
	}
}

func (s *MongoStoreSuite) TestRoundTrip() {
	app := fixtures.NewApplicationBuilder().
		WithApi(fixtures.TestIDs.Api1, fixtures.Endpoint("GET", "/orders", "read:orders")).
		Build()

	s.Require().NoError(s.store.Create(s.ctx, app))

	got, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(app.Name, got.Name)
	s.Equal(app.TeamMembers, got.TeamMembers)
	s.Equal(app.CreatedBy, got.CreatedBy)
	s.Equal(app.Apis, got.Apis)
	s.Len(got.Credentials, len(app.Credentials))
}

func (s *MongoStoreSuite) TestMembersAreEncryptedAtRest() {
	app := fixtures.NewApplicationBuilder().Build()
	s.Require().NoError(s.store.Create(s.ctx, app))

	doc := s.raw()
	s.NotContains(doc["teamMembers"], fixtures.TestIDs.Member)
	s.NotEqual(fixtures.TestIDs.Member, doc["createdBy"])

	found, err := s.store.ListByMember(s.ctx, fixtures.TestIDs.Member)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(app.ID, found[0].ID)
}

func (s *MongoStoreSuite) TestListSkipsDeleted() {
	live := fixtures.NewApplicationBuilder().WithID(fixtures.TestIDs.App1).WithTeam(fixtures.TestIDs.Team1).Build()
	gone := fixtures.NewApplicationBuilder().WithID(fixtures.TestIDs.App2).WithTeam(fixtures.TestIDs.Team1).Deleted("admin@example.com").Build()
	s.Require().NoError(s.store.Create(s.ctx, live))
	s.Require().NoError(s.store.Create(s.ctx, gone))

	apps, err := s.store.ListByTeam(s.ctx, fixtures.TestIDs.Team1)
	s.Require().NoError(err)
	s.Require().Len(apps, 1)
	s.Equal(live.ID, apps[0].ID)

	deleted, err := s.store.FindByID(s.ctx, gone.ID)
	s.Require().NoError(err)
	s.Require().NotNil(deleted.Deleted)
	s.Equal("admin@example.com", deleted.Deleted.By)
}

func (s *MongoStoreSuite) TestUpdateAndMissing() {
	app := fixtures.NewApplicationBuilder().Build()
	s.Require().NoError(s.store.Create(s.ctx, app))

	app.Name = "Renamed"
	s.Require().NoError(s.store.Update(s.ctx, app))
	got, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", got.Name)

	missing := fixtures.NewApplicationBuilder().WithID(id.NewApplicationID()).Build()
	s.ErrorIs(s.store.Update(s.ctx, missing), sentinel.ErrNotUpdated)

	_, err = s.store.FindByID(s.ctx, id.NewApplicationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Create(s.ctx, app), sentinel.ErrAlreadyUsed)
}
