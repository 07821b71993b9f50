package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// maxEntriesPerPut is the PutEvents limit.
const maxEntriesPerPut = 10

// Event sources.
const (
	SourceSearch = "real.search"
	SourcePush   = "real.push"
)

// event is one entry to publish.
type event struct {
	detailType string
	resource   string
	detail     any
}

// publisher sends events to one bus.
type publisher struct {
	client  PutEventsAPI
	busName string
	source  string
	logger  *zap.Logger
	now     func() time.Time
}

func newPublisher(client PutEventsAPI, busName, source string, logger *zap.Logger) publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return publisher{client: client, busName: busName, source: source, logger: logger, now: time.Now}
}

func (p publisher) publish(ctx context.Context, events ...event) error {
	for _, batch := range lo.Chunk(events, maxEntriesPerPut) {
		if err := p.publishBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (p publisher) publishBatch(ctx context.Context, events []event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	for _, e := range events {
		detail, err := json.Marshal(e.detail)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", e.detailType, err)
		}
		entry := types.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(e.detailType),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(p.now()),
		}
		if e.resource != "" {
			entry.Resources = []string{e.resource}
		}
		entries = append(entries, entry)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return wrap("eventbridge", err)
	}
	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("Failed to publish event",
					zap.String("detailType", events[i].detailType),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return wrap("eventbridge", fmt.Errorf("%d events failed to publish", out.FailedEntryCount))
	}
	p.logger.Debug("Events published",
		zap.Int("count", len(entries)),
		zap.String("source", p.source),
	)
	return nil
}

// EventBridgeSearchIndex publishes search-document changes for the indexer
// of one search domain.
type EventBridgeSearchIndex struct {
	pub    publisher
	domain string
}

// NewEventBridgeSearchIndex returns a SearchIndex publishing to busName.
func NewEventBridgeSearchIndex(client PutEventsAPI, busName, domain string, logger *zap.Logger) *EventBridgeSearchIndex {
	return &EventBridgeSearchIndex{pub: newPublisher(client, busName, SourceSearch, logger), domain: domain}
}

type searchDetail struct {
	Domain   string         `json:"domain"`
	Kind     string         `json:"kind"`
	ID       string         `json:"id"`
	Document map[string]any `json:"document,omitempty"`
}

func (s *EventBridgeSearchIndex) Put(ctx context.Context, kind, id string, doc map[string]any) error {
	return s.pub.publish(ctx, event{
		detailType: "SearchDocumentPut",
		resource:   kind + "/" + id,
		detail:     searchDetail{Domain: s.domain, Kind: kind, ID: id, Document: doc},
	})
}

func (s *EventBridgeSearchIndex) Delete(ctx context.Context, kind, id string) error {
	return s.pub.publish(ctx, event{
		detailType: "SearchDocumentDeleted",
		resource:   kind + "/" + id,
		detail:     searchDetail{Domain: s.domain, Kind: kind, ID: id},
	})
}

// EventBridgePushEndpoints forwards endpoint changes and notifications to
// the push service through the event bus.
type EventBridgePushEndpoints struct {
	pub publisher
}

// NewEventBridgePushEndpoints returns PushEndpoints publishing to busName.
func NewEventBridgePushEndpoints(client PutEventsAPI, busName string, logger *zap.Logger) *EventBridgePushEndpoints {
	return &EventBridgePushEndpoints{pub: newPublisher(client, busName, SourcePush, logger)}
}

type pushDetail struct {
	UserID  string       `json:"userId"`
	Channel string       `json:"channel,omitempty"`
	Address string       `json:"address,omitempty"`
	Message *APNSMessage `json:"message,omitempty"`
}

func (p *EventBridgePushEndpoints) send(ctx context.Context, detailType string, d pushDetail) error {
	return p.pub.publish(ctx, event{detailType: detailType, resource: "user/" + d.UserID, detail: d})
}

func (p *EventBridgePushEndpoints) UpdateEndpoint(ctx context.Context, userID, channel, address string) error {
	return p.send(ctx, "EndpointUpdated", pushDetail{UserID: userID, Channel: channel, Address: address})
}

func (p *EventBridgePushEndpoints) DeleteEndpoint(ctx context.Context, userID, channel string) error {
	return p.send(ctx, "EndpointDeleted", pushDetail{UserID: userID, Channel: channel})
}

func (p *EventBridgePushEndpoints) EnableUserEndpoints(ctx context.Context, userID string) error {
	return p.send(ctx, "UserEndpointsEnabled", pushDetail{UserID: userID})
}

func (p *EventBridgePushEndpoints) DisableUserEndpoints(ctx context.Context, userID string) error {
	return p.send(ctx, "UserEndpointsDisabled", pushDetail{UserID: userID})
}

func (p *EventBridgePushEndpoints) DeleteUserEndpoints(ctx context.Context, userID string) error {
	return p.send(ctx, "UserEndpointsDeleted", pushDetail{UserID: userID})
}

func (p *EventBridgePushEndpoints) SendAPNS(ctx context.Context, userID string, msg APNSMessage) error {
	return p.send(ctx, "APNSRequested", pushDetail{UserID: userID, Channel: "APNS", Message: &msg})
}
