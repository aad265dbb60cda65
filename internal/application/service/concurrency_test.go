package service

import (
	"fmt"

	fixtures "apihub/pkg/testutil"
)

func (s *ServiceSuite) TestConcurrentMemberEditsAreSerialized() {
	app := fixtures.NewApplicationBuilder().Build()
	s.store(app, nil)

	const editors = 20
	result := fixtures.RunConcurrent(editors, func(idx int) error {
		_, err := s.service.AddMember(s.ctx, app.ID, fmt.Sprintf("member-%d@example.com", idx), actor)
		return err
	})

	s.Equal(int32(editors), result.Successes)
	stored, err := s.apps.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Len(stored.TeamMembers, editors+1, "no edit is lost")
	s.Len(s.eventTypes(app.ID.String()), editors)
}
