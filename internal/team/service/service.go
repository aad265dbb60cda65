package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"apihub/internal/event/derive"
	evmodels "apihub/internal/event/models"
	"apihub/internal/team/models"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/sentinel"
	"apihub/pkg/requestcontext"
)

type Store interface {
	CreateIfNameAvailable(ctx context.Context, team models.Team) error
	Update(ctx context.Context, team models.Team) error
	FindByID(ctx context.Context, teamID id.TeamID) (models.Team, error)
	FindByName(ctx context.Context, name string) (models.Team, error)
	List(ctx context.Context, member string) ([]models.Team, error)
}

type EventPublisher interface {
	Emit(ctx context.Context, events ...evmodels.Event) error
}

// Service manages teams. Team edits are rare and single-document, so they
// run without the application lock.
type Service struct {
	teams  Store
	events EventPublisher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(teams Store, events EventPublisher, opts ...Option) *Service {
	s := &Service{teams: teams, events: events, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateCommand struct {
	Name     string
	TeamType models.TeamType
	Members  []string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand, actor string) (models.Team, error) {
	if err := requireActor(actor); err != nil {
		return models.Team{}, err
	}
	now := requestcontext.Now(ctx)
	team, err := models.NewTeam(id.NewTeamID(), cmd.Name, cmd.TeamType, cmd.Members, now)
	if err != nil {
		return models.Team{}, err
	}
	if err := s.teams.CreateIfNameAvailable(ctx, team); err != nil {
		return models.Team{}, wrapTeamErr(err, "failed to create team")
	}
	if err := s.emit(ctx, derive.TeamCreated(derive.Meta{User: actor, At: now}, team)); err != nil {
		return models.Team{}, err
	}
	s.logger.InfoContext(ctx, "team created", "team_id", team.ID, "user", actor, "log_type", "audit")
	return team, nil
}

func (s *Service) Get(ctx context.Context, teamID id.TeamID) (models.Team, error) {
	if teamID.IsNil() {
		return models.Team{}, dErrors.New(dErrors.CodeBadRequest, "team ID required")
	}
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return models.Team{}, wrapTeamErr(err, "failed to load team")
	}
	return team, nil
}

// FindByID satisfies the team lookup of the application service.
func (s *Service) FindByID(ctx context.Context, teamID id.TeamID) (models.Team, error) {
	return s.Get(ctx, teamID)
}

func (s *Service) FindByName(ctx context.Context, name string) (models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Team{}, dErrors.New(dErrors.CodeBadRequest, "team name is required")
	}
	team, err := s.teams.FindByName(ctx, name)
	if err != nil {
		return models.Team{}, wrapTeamErr(err, "failed to load team")
	}
	return team, nil
}

// List returns every team, or the teams of member when it is set.
func (s *Service) List(ctx context.Context, member string) ([]models.Team, error) {
	teams, err := s.teams.List(ctx, strings.TrimSpace(member))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list teams")
	}
	return teams, nil
}

func (s *Service) Rename(ctx context.Context, teamID id.TeamID, name, actor string) (models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Team{}, dErrors.New(dErrors.CodeValidation, "team name cannot be empty")
	}
	return s.edit(ctx, teamID, actor, func(team models.Team, m derive.Meta) (models.Team, []evmodels.Event, error) {
		if team.Name == name {
			return team, nil, nil
		}
		renamed := team.WithName(name)
		return renamed, []evmodels.Event{derive.TeamRenamed(m, renamed, team.Name)}, nil
	})
}

func (s *Service) AddMember(ctx context.Context, teamID id.TeamID, email, actor string) (models.Team, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.Team{}, dErrors.New(dErrors.CodeValidation, "member email is required")
	}
	return s.edit(ctx, teamID, actor, func(team models.Team, m derive.Meta) (models.Team, []evmodels.Event, error) {
		if team.HasMember(email) {
			return team, nil, nil
		}
		updated := team.WithMember(email)
		return updated, []evmodels.Event{derive.TeamMemberAdded(m, updated, email)}, nil
	})
}

func (s *Service) RemoveMember(ctx context.Context, teamID id.TeamID, email, actor string) (models.Team, error) {
	email = strings.TrimSpace(email)
	return s.edit(ctx, teamID, actor, func(team models.Team, m derive.Meta) (models.Team, []evmodels.Event, error) {
		if !team.HasMember(email) {
			return team, nil, dErrors.Newf(dErrors.CodeNotFound, "%s is not a member of team %s", email, team.Name)
		}
		if team.TeamType == models.TeamTypeProducer && len(team.TeamMembers) == 1 {
			return team, nil, dErrors.New(dErrors.CodeConflict, "producer teams need at least one member")
		}
		updated := team.WithoutMember(email)
		return updated, []evmodels.Event{derive.TeamMemberRemoved(m, updated, email)}, nil
	})
}

func (s *Service) AddEgress(ctx context.Context, teamID id.TeamID, egress, actor string) (models.Team, error) {
	egress = strings.TrimSpace(egress)
	if egress == "" {
		return models.Team{}, dErrors.New(dErrors.CodeValidation, "egress is required")
	}
	return s.edit(ctx, teamID, actor, func(team models.Team, m derive.Meta) (models.Team, []evmodels.Event, error) {
		updated := team.WithEgress(egress)
		if len(updated.Egresses) == len(team.Egresses) {
			return team, nil, nil
		}
		return updated, []evmodels.Event{derive.EgressAdded(m, updated, egress)}, nil
	})
}

func (s *Service) RemoveEgress(ctx context.Context, teamID id.TeamID, egress, actor string) (models.Team, error) {
	egress = strings.TrimSpace(egress)
	return s.edit(ctx, teamID, actor, func(team models.Team, m derive.Meta) (models.Team, []evmodels.Event, error) {
		updated := team.WithoutEgress(egress)
		if len(updated.Egresses) == len(team.Egresses) {
			return team, nil, dErrors.Newf(dErrors.CodeNotFound, "egress %s is not assigned to team %s", egress, team.Name)
		}
		return updated, []evmodels.Event{derive.EgressRemoved(m, updated, egress)}, nil
	})
}

type editFunc func(team models.Team, m derive.Meta) (models.Team, []evmodels.Event, error)

// edit loads, changes and stores a team. Edits that produce no events are
// no-ops and skip the write.
func (s *Service) edit(ctx context.Context, teamID id.TeamID, actor string, fn editFunc) (models.Team, error) {
	if err := requireActor(actor); err != nil {
		return models.Team{}, err
	}
	team, err := s.Get(ctx, teamID)
	if err != nil {
		return models.Team{}, err
	}
	updated, events, err := fn(team, derive.Meta{User: actor, At: requestcontext.Now(ctx)})
	if err != nil {
		return models.Team{}, err
	}
	if len(events) == 0 {
		return team, nil
	}
	if err := s.teams.Update(ctx, updated); err != nil {
		return models.Team{}, wrapTeamErr(err, "failed to update team")
	}
	if err := s.emit(ctx, events...); err != nil {
		return models.Team{}, err
	}
	return updated, nil
}

func (s *Service) emit(ctx context.Context, events ...evmodels.Event) error {
	if err := s.events.Emit(ctx, events...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record events")
	}
	return nil
}

func requireActor(actor string) error {
	if actor == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	return nil
}

func wrapTeamErr(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrNotUpdated):
		return dErrors.New(dErrors.CodeNotFound, "team not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "team name must be unique")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
