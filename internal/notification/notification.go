// Package notification tells people about ownership changes of an
// application. Delivery is best effort: callers log failures and carry on.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	appmodels "apihub/internal/application/models"
	"apihub/internal/platform/kafka/producer"
	teammodels "apihub/internal/team/models"
	id "apihub/pkg/domain"
)

// DefaultTopic carries ownership notifications to the mailer.
const DefaultTopic = "apihub.notifications"

// OwnershipChange describes an application moving between teams. Either
// team may be nil when ownership was inline.
type OwnershipChange struct {
	ApplicationID   id.ApplicationID `json:"applicationId"`
	ApplicationName string           `json:"applicationName"`
	OldTeam         *TeamRef         `json:"oldTeam,omitempty"`
	NewTeam         *TeamRef         `json:"newTeam,omitempty"`
	ChangedBy       string           `json:"changedBy"`
	At              time.Time        `json:"at"`
	Recipients      []string         `json:"recipients"`
}

type TeamRef struct {
	ID   id.TeamID `json:"id"`
	Name string    `json:"name"`
}

// NewOwnershipChange addresses the members of both teams and, when the
// application had no team, its previous inline members.
func NewOwnershipChange(app appmodels.Application, oldTeam, newTeam *teammodels.Team, by string, at time.Time) OwnershipChange {
	c := OwnershipChange{
		ApplicationID:   app.ID,
		ApplicationName: app.Name,
		ChangedBy:       by,
		At:              at,
	}
	var recipients []string
	if oldTeam != nil {
		c.OldTeam = &TeamRef{ID: oldTeam.ID, Name: oldTeam.Name}
		recipients = append(recipients, oldTeam.TeamMembers...)
	} else {
		recipients = append(recipients, app.TeamMembers...)
	}
	if newTeam != nil {
		c.NewTeam = &TeamRef{ID: newTeam.ID, Name: newTeam.Name}
		recipients = append(recipients, newTeam.TeamMembers...)
	}
	sort.Strings(recipients)
	c.Recipients = slices.Compact(recipients)
	return c
}

// Notifier delivers ownership notifications.
type Notifier interface {
	OwnershipChanged(ctx context.Context, change OwnershipChange) error
}

// LogNotifier writes notifications to the log. It is used when no broker is
// configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OwnershipChanged(ctx context.Context, c OwnershipChange) error {
	if n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "application ownership changed",
		"application_id", c.ApplicationID,
		"old_team", teamID(c.OldTeam),
		"new_team", teamID(c.NewTeam),
		"recipients", len(c.Recipients),
	)
	return nil
}

func teamID(ref *TeamRef) string {
	if ref == nil {
		return ""
	}
	return ref.ID.String()
}

// MessageProducer is the subset of the Kafka producer used by KafkaNotifier.
type MessageProducer interface {
	ProduceAsync(msg *producer.Message) error
}

// KafkaNotifier hands notifications to the mailer through Kafka.
type KafkaNotifier struct {
	producer MessageProducer
	topic    string
}

func NewKafkaNotifier(p MessageProducer, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaNotifier{producer: p, topic: topic}
}

func (n *KafkaNotifier) OwnershipChanged(_ context.Context, c OwnershipChange) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode ownership change: %w", err)
	}
	return n.producer.ProduceAsync(&producer.Message{
		Topic:   n.topic,
		Key:     []byte(c.ApplicationID.String()),
		Value:   payload,
		Headers: map[string]string{"kind": "ownership_changed"},
	})
}
