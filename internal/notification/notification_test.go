package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmodels "apihub/internal/application/models"
	"apihub/internal/platform/kafka/producer"
	teammodels "apihub/internal/team/models"
	id "apihub/pkg/domain"
)

type recordingProducer struct {
	messages []*producer.Message
}

func (p *recordingProducer) ProduceAsync(msg *producer.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

var at = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestOwnershipChangeRecipients(t *testing.T) {
	app := appmodels.Application{ID: id.ApplicationID("64b000000000000000000001"), Name: "billing", TeamMembers: []string{"a@example.com", "b@example.com"}}
	newTeam := teammodels.Team{ID: id.TeamID("64b000000000000000000011"), Name: "Payments", TeamMembers: []string{"b@example.com", "c@example.com"}}

	c := NewOwnershipChange(app, nil, &newTeam, "admin@example.com", at)

	assert.Nil(t, c.OldTeam)
	require.NotNil(t, c.NewTeam)
	assert.Equal(t, "Payments", c.NewTeam.Name)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, c.Recipients)
}

func TestOwnershipChangeBetweenTeams(t *testing.T) {
	app := appmodels.Application{ID: id.ApplicationID("64b000000000000000000001"), Name: "billing"}
	oldTeam := teammodels.Team{ID: id.TeamID("64b000000000000000000011"), Name: "Payments", TeamMembers: []string{"a@example.com"}}

	c := NewOwnershipChange(app, &oldTeam, nil, "admin@example.com", at)

	require.NotNil(t, c.OldTeam)
	assert.Nil(t, c.NewTeam)
	assert.Equal(t, []string{"a@example.com"}, c.Recipients)
}

func TestKafkaNotifierKeysByApplication(t *testing.T) {
	p := &recordingProducer{}
	n := NewKafkaNotifier(p, "")
	app := appmodels.Application{ID: id.ApplicationID("64b000000000000000000001"), Name: "billing"}

	require.NoError(t, n.OwnershipChanged(context.Background(), NewOwnershipChange(app, nil, nil, "admin@example.com", at)))

	require.Len(t, p.messages, 1)
	msg := p.messages[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, "64b000000000000000000001", string(msg.Key))
	var decoded OwnershipChange
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "billing", decoded.ApplicationName)
}
