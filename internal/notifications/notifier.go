package notifications

import (
	"context"
	"fmt"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
)

// DefaultMaxAttempts bounds delivery retries per queue item.
const DefaultMaxAttempts = 3

// Notifier enqueues one delivery per subscriber for each incident update.
// Sending happens asynchronously in the Worker.
type Notifier struct {
	repo        Repository
	catalog     CatalogReader
	maxAttempts int
}

// NewNotifier creates a new Notifier.
func NewNotifier(repo Repository, catalog CatalogReader) *Notifier {
	return NewNotifierWithMaxAttempts(repo, catalog, DefaultMaxAttempts)
}

// NewNotifierWithMaxAttempts creates a Notifier with a custom retry budget.
func NewNotifierWithMaxAttempts(repo Repository, catalog CatalogReader, maxAttempts int) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Notifier{
		repo:        repo,
		catalog:     catalog,
		maxAttempts: maxAttempts,
	}
}

// OnIncidentUpdate fans an incident update out to the organization's
// subscribers. Enqueueing the same update twice is a no-op per subscriber.
func (n *Notifier) OnIncidentUpdate(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate) error {
	subscribers, err := n.repo.ListSubscribers(ctx, incident.OrganizationID)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	if len(subscribers) == 0 {
		ctxlog.FromContext(ctx).Debug("no subscribers for incident update",
			"incident_id", incident.ID,
			"update_id", update.ID,
		)
		return nil
	}

	payload, err := n.buildPayload(ctx, incident, update)
	if err != nil {
		return err
	}

	items := make([]*QueueItem, 0, len(subscribers))
	for _, sub := range subscribers {
		items = append(items, &QueueItem{
			IncidentUpdateID: update.ID,
			SubscriberID:     sub.ID,
			Payload:          *payload,
			MaxAttempts:      n.maxAttempts,
		})
	}

	if err := n.repo.EnqueueBatch(ctx, items); err != nil {
		return fmt.Errorf("enqueue notifications: %w", err)
	}

	ctxlog.FromContext(ctx).Info("incident update queued for delivery",
		"incident_id", incident.ID,
		"update_id", update.ID,
		"subscribers", len(subscribers),
	)
	return nil
}

func (n *Notifier) buildPayload(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate) (*Payload, error) {
	org, err := n.catalog.GetOrganization(ctx, incident.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}

	names := make([]string, 0, len(incident.ServiceIDs))
	for _, sid := range incident.ServiceIDs {
		service, err := n.catalog.GetService(ctx, sid)
		if err != nil {
			// The service may have been deleted since the incident opened.
			ctxlog.FromContext(ctx).Warn("affected service not resolvable",
				"service_id", sid,
				"error", err,
			)
			continue
		}
		names = append(names, service.Name)
	}

	return &Payload{
		Kind:             KindForUpdate(incident, update),
		OrganizationName: org.Name,
		OrganizationSlug: org.Slug,
		IncidentID:       incident.ID,
		Title:            incident.Title,
		Impact:           incident.Impact,
		Phase:            update.Phase,
		Message:          update.Message,
		Services:         names,
		OccurredAt:       update.CreatedAt,
	}, nil
}
