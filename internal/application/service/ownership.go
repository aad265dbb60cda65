package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"apihub/internal/application/models"
	"apihub/internal/event/derive"
	"apihub/internal/notification"
	teammodels "apihub/internal/team/models"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/sentinel"
	"apihub/pkg/requestcontext"
)

// ChangeTeam hands the application to teamID. It is allowed on deleted
// applications so that their ownership can still be tidied up. Members of
// both teams are notified; notification failures do not fail the change.
func (s *Service) ChangeTeam(ctx context.Context, appID id.ApplicationID, teamID id.TeamID, actor string) (app models.Application, err error) {
	defer s.observe("change_team", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return models.Application{}, err
	}
	if teamID.IsNil() {
		return models.Application{}, dErrors.New(dErrors.CodeBadRequest, "team ID required")
	}
	err = s.withLock(ctx, appID, func(ctx context.Context) error {
		current, err := s.Get(ctx, appID, true)
		if err != nil {
			return err
		}
		if current.TeamID == teamID {
			app = current
			return nil
		}
		newTeam, err := s.teams.FindByID(ctx, teamID)
		if err != nil {
			return wrapTeamErr(err)
		}
		oldTeam, err := s.previousTeam(ctx, current)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		app = current.WithTeam(teamID, now)
		if err := s.apps.Update(ctx, app); err != nil {
			return wrapApplicationErr(err, "failed to change team")
		}
		if err := s.emit(ctx, derive.TeamChanged(meta(ctx, actor), app, oldTeam, &newTeam)); err != nil {
			return err
		}
		s.audit.log(ctx, "application_team_changed", "application_id", appID, "team_id", teamID, "user", actor)
		s.notify(ctx, notification.NewOwnershipChange(current, oldTeam, &newTeam, actor, now))
		return nil
	})
	return app, err
}

// RemoveTeam drops the owning team. The caller becomes the only inline
// member so the application stays manageable.
func (s *Service) RemoveTeam(ctx context.Context, appID id.ApplicationID, actor string) (app models.Application, err error) {
	defer s.observe("remove_team", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return models.Application{}, err
	}
	err = s.withLock(ctx, appID, func(ctx context.Context) error {
		current, err := s.Get(ctx, appID, true)
		if err != nil {
			return err
		}
		if !current.HasTeam() {
			app = current
			return nil
		}
		oldTeam, err := s.previousTeam(ctx, current)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		app = current.WithoutTeam(now).WithMember(actor, now)
		if err := s.apps.Update(ctx, app); err != nil {
			return wrapApplicationErr(err, "failed to remove team")
		}
		if err := s.emit(ctx, derive.TeamChanged(meta(ctx, actor), app, oldTeam, nil)); err != nil {
			return err
		}
		s.audit.log(ctx, "application_team_removed", "application_id", appID, "user", actor)
		s.notify(ctx, notification.NewOwnershipChange(current, oldTeam, nil, actor, now))
		return nil
	})
	return app, err
}

// previousTeam resolves the current owner. A team that no longer exists is
// reported as nil rather than failing the change.
func (s *Service) previousTeam(ctx context.Context, app models.Application) (*teammodels.Team, error) {
	if !app.HasTeam() {
		return nil, nil
	}
	team, err := s.teams.FindByID(ctx, app.TeamID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.WarnContext(ctx, "owning team no longer exists", "application_id", app.ID, "team_id", app.TeamID)
			return nil, nil
		}
		return nil, wrapTeamErr(err)
	}
	return &team, nil
}

func (s *Service) notify(ctx context.Context, change notification.OwnershipChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OwnershipChanged(ctx, change); err != nil {
		s.logger.WarnContext(ctx, "failed to send ownership notification",
			"application_id", change.ApplicationID,
			"error", err,
		)
	}
}

// AddMember adds an inline member. Team-owned applications take their
// members from the team.
func (s *Service) AddMember(ctx context.Context, appID id.ApplicationID, email, actor string) (models.Application, error) {
	return s.editMembers(ctx, "add_member", appID, email, actor, true)
}

func (s *Service) RemoveMember(ctx context.Context, appID id.ApplicationID, email, actor string) (models.Application, error) {
	return s.editMembers(ctx, "remove_member", appID, email, actor, false)
}

func (s *Service) editMembers(ctx context.Context, operation string, appID id.ApplicationID, email, actor string, add bool) (app models.Application, err error) {
	defer s.observe(operation, time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return models.Application{}, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return models.Application{}, dErrors.New(dErrors.CodeValidation, "member email is required")
	}
	err = s.withLock(ctx, appID, func(ctx context.Context) error {
		current, err := s.loadActive(ctx, appID)
		if err != nil {
			return err
		}
		if current.HasTeam() {
			return dErrors.New(dErrors.CodeConflict, "members of a team-owned application are managed by the team")
		}
		now := requestcontext.Now(ctx)
		m := meta(ctx, actor)
		if add {
			if current.IsMember(email) {
				app = current
				return nil
			}
			app = current.WithMember(email, now)
			if err := s.apps.Update(ctx, app); err != nil {
				return wrapApplicationErr(err, "failed to add member")
			}
			return s.emit(ctx, derive.ApplicationMemberAdded(m, app, email))
		}
		if !current.IsMember(email) {
			return dErrors.Newf(dErrors.CodeNotFound, "%s is not a member of application %s", email, appID)
		}
		if len(current.TeamMembers) == 1 {
			return dErrors.New(dErrors.CodeConflict, "an application needs at least one member")
		}
		app = current.WithoutMember(email, now)
		if err := s.apps.Update(ctx, app); err != nil {
			return wrapApplicationErr(err, "failed to remove member")
		}
		return s.emit(ctx, derive.ApplicationMemberRemoved(m, app, email))
	})
	return app, err
}
