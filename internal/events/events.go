// Package events publishes a small completion event for every terminal
// ProcessingLog the Document Processor writes, so an external system can
// react to ingestion progress without polling the database (spec §11,
// SPEC_FULL.md §11 supplement). It is optional: a worker with no
// PUBSUB_TOPIC configured runs with a nil Publisher and every Publish call
// becomes a no-op.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"cloud.google.com/go/pubsub"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

// CompletionEvent is the message body published after each terminal
// processing attempt.
type CompletionEvent struct {
	ProjectID  string                 `json:"project_id"`
	DocumentID string                 `json:"document_id"`
	Status     model.ProcessingStatus `json:"status"`
}

// Publisher publishes CompletionEvents to a single Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the given topic ID, creating the topic if it
// does not already exist. Returns (nil, nil) when topicID is empty, so
// callers can unconditionally hold a *Publisher and call Publish on it.
func New(ctx context.Context, projectID, topicID string) (*Publisher, error) {
	if topicID == "" {
		return nil, nil
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, err
		}
	}

	return &Publisher{topic: topic}, nil
}

// Publish sends one completion event, best-effort. A publish failure is
// logged and swallowed — a missing downstream notification never fails a
// document that otherwise processed successfully.
func (p *Publisher) Publish(ctx context.Context, event CompletionEvent) {
	if p == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("events: marshal completion event", "error", err)
		return
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		slog.Warn("events: publish completion event failed",
			"project_id", event.ProjectID, "document_id", event.DocumentID, "error", err)
	}
}

// Stop flushes any buffered messages and releases the topic's resources.
func (p *Publisher) Stop() {
	if p == nil {
		return
	}
	p.topic.Stop()
}
