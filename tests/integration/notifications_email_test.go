//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/catalog"
	catalogpostgres "github.com/bissquit/status-garden/internal/catalog/postgres"
	"github.com/bissquit/status-garden/internal/domain"
	eventspostgres "github.com/bissquit/status-garden/internal/events/postgres"
	"github.com/bissquit/status-garden/internal/notifications"
	"github.com/bissquit/status-garden/internal/notifications/email"
	notificationspostgres "github.com/bissquit/status-garden/internal/notifications/postgres"
	"github.com/bissquit/status-garden/internal/statuslog"
	statuslogpostgres "github.com/bissquit/status-garden/internal/statuslog/postgres"
	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emailInfra wires a notifier and worker that deliver to Mailpit. The
// app-level worker is disabled in TestMain, so each delivery test runs its
// own against the shared database.
type emailInfra struct {
	repo     *notificationspostgres.Repository
	notifier *notifications.Notifier
	worker   *notifications.Worker
}

func setupEmailInfra(t *testing.T) *emailInfra {
	t.Helper()

	repo := notificationspostgres.NewRepository(testDB)

	statuslogRepo := statuslogpostgres.NewRepository(testDB)
	eventsRepo := eventspostgres.NewRepository(testDB)
	projector := statuslog.NewProjector(statuslogRepo, eventsRepo)
	catalogService := catalog.NewService(catalogpostgres.NewRepository(testDB), projector)

	sender, err := email.NewSender(email.Config{
		Enabled:     true,
		SMTPHost:    mailpitContainer.SMTPHost,
		SMTPPort:    mailpitContainer.SMTPPort,
		FromAddress: "Status Garden <status@example.com>",
	})
	require.NoError(t, err)

	renderer, err := notifications.NewRenderer()
	require.NoError(t, err)

	notifier := notifications.NewNotifier(repo, catalogService)
	worker := notifications.NewWorker(notifications.WorkerConfig{
		BatchSize:         10,
		PollInterval:      100 * time.Millisecond,
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		NumWorkers:        1,
	}, repo, sender, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		worker.Stop()
	})

	return &emailInfra{repo: repo, notifier: notifier, worker: worker}
}

// reportIncident creates an incident over the API and returns it together
// with its first update.
func reportIncident(t *testing.T, operator *testutil.Client, orgID, serviceID, title string) (*domain.Incident, *domain.IncidentUpdate) {
	t.Helper()

	resp, err := operator.POST("/api/v1/organizations/"+orgID+"/incidents", map[string]any{
		"title":       title,
		"impact":      "major",
		"message":     "We are looking into elevated error rates.",
		"service_ids": []string{serviceID},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data domain.Incident `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)

	resp, err = operator.GET("/api/v1/organizations/" + orgID + "/incidents/" + created.Data.ID + "/updates")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updates struct {
		Data []*domain.IncidentUpdate `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &updates)
	require.NotEmpty(t, updates.Data)

	return &created.Data, updates.Data[0]
}

func TestEmailDeliveryThroughQueue(t *testing.T) {
	require.NoError(t, mailpitClient.DeleteAllMessages())
	infra := setupEmailInfra(t)

	admin := newAdminClient(t)
	orgID, orgSlug := createTestOrganization(t, admin, "Delivery Org")
	serviceID := createTestService(t, admin, orgID, "api")

	subscriberEmail := "on-call@example.com"
	subscribe(t, orgSlug, subscriberEmail)

	operator := newOperatorClient(t)
	incident, update := reportIncident(t, operator, orgID, serviceID, "API errors spiking")

	require.NoError(t, infra.notifier.OnIncidentUpdate(context.Background(), incident, update))

	messages, err := mailpitClient.WaitForMessages(1, 10*time.Second)
	require.NoError(t, err, "no email arrived in mailpit")
	require.Len(t, messages, 1)

	fullMsg, err := mailpitClient.GetMessageByID(messages[0].ID)
	require.NoError(t, err)

	recipients := fullMsg.AllRecipients()
	require.NotEmpty(t, recipients)
	assert.Equal(t, subscriberEmail, recipients[0].Address)
	assert.Contains(t, fullMsg.Subject, "Delivery Org")
	assert.Contains(t, fullMsg.Subject, "API errors spiking")
	assert.Contains(t, fullMsg.Text, "elevated error rates")
}

func TestQueueFetchClaimsFreshItems(t *testing.T) {
	repo := notificationspostgres.NewRepository(testDB)
	ctx := context.Background()

	admin := newAdminClient(t)
	orgID, orgSlug := createTestOrganization(t, admin, "Queue Org")
	serviceID := createTestService(t, admin, orgID, "api")
	subscriberID, _ := subscribe(t, orgSlug, "queue-reader@example.com")

	operator := newOperatorClient(t)
	incident, update := reportIncident(t, operator, orgID, serviceID, "Queue probe incident")

	item := &notifications.QueueItem{
		IncidentUpdateID: update.ID,
		SubscriberID:     subscriberID,
		Payload: notifications.Payload{
			Kind:             notifications.KindForUpdate(incident, update),
			OrganizationName: "Queue Org",
			OrganizationSlug: orgSlug,
			IncidentID:       incident.ID,
			Title:            incident.Title,
			Impact:           incident.Impact,
			Phase:            update.Phase,
			Message:          update.Message,
			OccurredAt:       update.CreatedAt,
		},
		MaxAttempts: 3,
	}
	require.NoError(t, repo.EnqueueBatch(ctx, []*notifications.QueueItem{item}))

	// A freshly inserted row has no last_error yet; the first fetch must
	// still scan it cleanly.
	items, err := repo.FetchPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	claimed := items[0]
	assert.Equal(t, update.ID, claimed.IncidentUpdateID)
	assert.Equal(t, subscriberID, claimed.SubscriberID)
	assert.Equal(t, notifications.QueueStatusProcessing, claimed.Status)
	assert.Empty(t, claimed.LastError)

	// A claimed row is invisible to subsequent fetches.
	items, err = repo.FetchPendingNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Age the claim past the staleness window, as if the worker holding it
	// had crashed. The fetch reclaims it.
	_, err = testDB.Exec(ctx,
		`UPDATE notification_queue SET updated_at = now() - interval '10 minutes' WHERE id = $1`,
		claimed.ID,
	)
	require.NoError(t, err)

	items, err = repo.FetchPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, claimed.ID, items[0].ID)

	require.NoError(t, repo.MarkAsSent(ctx, claimed.ID))
}
