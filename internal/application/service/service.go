package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	appmetrics "apihub/internal/application/metrics"
	"apihub/internal/application/models"
	"apihub/internal/event/derive"
	evmodels "apihub/internal/event/models"
	"apihub/internal/identity"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/lock"
	"apihub/pkg/requestcontext"
)

const defaultLockTTL = 30 * time.Second

// Service orchestrates the application lifecycle. Every operation that can
// change what an application may call ends with a scope reconciliation.
type Service struct {
	apps     ApplicationStore
	requests AccessRequestStore
	teams    TeamFinder
	events   EventPublisher
	fixer    ScopeFixer
	clients  ClientRegistrar
	notifier Notifier
	locker   lock.Locker
	lockTTL  time.Duration
	logger   *slog.Logger
	audit    auditLogger
	metrics  *appmetrics.Metrics
}

func New(
	apps ApplicationStore,
	requests AccessRequestStore,
	teams TeamFinder,
	events EventPublisher,
	fixer ScopeFixer,
	clients ClientRegistrar,
	opts ...Option,
) *Service {
	cfg := &serviceConfig{lockTTL: defaultLockTTL}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	locker := cfg.locker
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Service{
		apps:     apps,
		requests: requests,
		teams:    teams,
		events:   events,
		fixer:    fixer,
		clients:  clients,
		notifier: cfg.notifier,
		locker:   locker,
		lockTTL:  cfg.lockTTL,
		logger:   logger,
		audit:    auditLogger{logger: cfg.logger},
		metrics:  cfg.metrics,
	}
}

// RegisterCommand carries the input of Register. TeamID and Members are
// exclusive; with neither the creator becomes the only member.
type RegisterCommand struct {
	Name    string
	TeamID  id.TeamID
	Members []string
}

// Register creates the application and one credential per environment. The
// returned value carries the client secrets, which are never stored.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand, actor string) (app models.Application, err error) {
	defer s.observe("register", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return models.Application{}, err
	}
	if !cmd.TeamID.IsNil() && len(cmd.Members) > 0 {
		return models.Application{}, dErrors.New(dErrors.CodeValidation, "an application is owned by a team or by members, not both")
	}
	if !cmd.TeamID.IsNil() {
		if _, err := s.teams.FindByID(ctx, cmd.TeamID); err != nil {
			return models.Application{}, wrapTeamErr(err)
		}
	}

	now := requestcontext.Now(ctx)
	app, err = models.NewApplication(id.NewApplicationID(), cmd.Name, actor, cmd.TeamID, cmd.Members, now)
	if err != nil {
		return models.Application{}, err
	}

	var created []models.Credential
	for _, env := range s.fixer.Environments() {
		client, err := s.clients.CreateClient(ctx, env.ID, app.Name)
		if err != nil {
			s.discardClients(ctx, created)
			return models.Application{}, identity.ToDomain(err)
		}
		cred := models.NewCredential(env.ID, client.ClientID, client.ClientSecret, now)
		created = append(created, cred)
		app = app.WithCredential(cred, now)
	}

	if err := s.apps.Create(ctx, app.WithoutSecrets()); err != nil {
		s.discardClients(ctx, created)
		return models.Application{}, wrapApplicationErr(err, "failed to store application")
	}

	m := meta(ctx, actor)
	events := []evmodels.Event{derive.Registered(m, app)}
	for _, cred := range created {
		events = append(events, derive.CredentialCreated(m, app, cred))
	}
	if err := s.emit(ctx, events...); err != nil {
		return models.Application{}, err
	}
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	s.audit.log(ctx, "application_registered", "application_id", app.ID, "user", actor, "credentials", len(created))
	return app, nil
}

// discardClients removes identity clients created by a registration that did
// not complete. Failures leave orphaned clients behind and are only logged.
func (s *Service) discardClients(ctx context.Context, creds []models.Credential) {
	ctx = context.WithoutCancel(ctx)
	for _, c := range creds {
		if err := s.clients.DeleteClient(ctx, c.EnvironmentID, c.ClientID); err != nil {
			s.logger.WarnContext(ctx, "failed to discard identity client",
				"environment", c.EnvironmentID,
				"client_id", c.ClientID,
				"error", err,
			)
		}
	}
}

// Get returns the application. Soft-deleted applications are only returned
// when includeDeleted is set.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID, includeDeleted bool) (models.Application, error) {
	if err := requireApplicationID(appID); err != nil {
		return models.Application{}, err
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return models.Application{}, wrapApplicationErr(err, "failed to load application")
	}
	if app.IsDeleted() && !includeDeleted {
		return models.Application{}, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return app, nil
}

func (s *Service) ListByTeam(ctx context.Context, teamID id.TeamID) ([]models.Application, error) {
	apps, err := s.apps.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

func (s *Service) ListByMember(ctx context.Context, email string) ([]models.Application, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "member email required")
	}
	apps, err := s.apps.ListByMember(ctx, email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// Delete soft-deletes the application. Credentials and scopes are left in
// place; the identity provider owns their lifecycle.
func (s *Service) Delete(ctx context.Context, appID id.ApplicationID, actor string) (err error) {
	defer s.observe("delete", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.withLock(ctx, appID, func(ctx context.Context) error {
		app, err := s.Get(ctx, appID, false)
		if err != nil {
			return err
		}
		deleted := app.WithDeleted(actor, requestcontext.Now(ctx))
		if err := s.apps.Update(ctx, deleted); err != nil {
			return wrapApplicationErr(err, "failed to delete application")
		}
		if err := s.emit(ctx, derive.ApplicationDeleted(meta(ctx, actor), deleted)); err != nil {
			return err
		}
		s.audit.log(ctx, "application_deleted", "application_id", appID, "user", actor)
		return nil
	})
}

// Rename changes the display name. The identity clients keep their names.
func (s *Service) Rename(ctx context.Context, appID id.ApplicationID, name, actor string) (app models.Application, err error) {
	defer s.observe("rename", time.Now(), &err)
	if err := requireActor(actor); err != nil {
		return models.Application{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Application{}, dErrors.New(dErrors.CodeValidation, "application name cannot be empty")
	}
	err = s.withLock(ctx, appID, func(ctx context.Context) error {
		current, err := s.loadActive(ctx, appID)
		if err != nil {
			return err
		}
		if current.Name == name {
			app = current
			return nil
		}
		app = current.WithName(name, requestcontext.Now(ctx))
		if err := s.apps.Update(ctx, app); err != nil {
			return wrapApplicationErr(err, "failed to rename application")
		}
		return s.emit(ctx, derive.ApplicationRenamed(meta(ctx, actor), app, current.Name))
	})
	return app, err
}

// loadActive loads an application that may still be edited.
func (s *Service) loadActive(ctx context.Context, appID id.ApplicationID) (models.Application, error) {
	app, err := s.Get(ctx, appID, true)
	if err != nil {
		return models.Application{}, err
	}
	if err := requireActive(app); err != nil {
		return models.Application{}, err
	}
	return app, nil
}

func (s *Service) emit(ctx context.Context, events ...evmodels.Event) error {
	if err := s.events.Emit(ctx, events...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record events")
	}
	return nil
}

func (s *Service) observe(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err := *errp; err != nil {
		outcome = "error"
		if isReconcileErr(err) {
			outcome = "partial"
		}
	}
	s.metrics.ObserveOperation(operation, outcome, start)
}
