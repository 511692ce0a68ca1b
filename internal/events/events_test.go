package events

import (
	"context"
	"testing"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

func TestNew_EmptyTopicDisables(t *testing.T) {
	p, err := New(context.Background(), "some-project", "")
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if p != nil {
		t.Fatalf("New() publisher = %+v, want nil", p)
	}
}

func TestNilPublisher_PublishIsNoop(t *testing.T) {
	var p *Publisher
	// Must not panic even though p.topic is nil.
	p.Publish(context.Background(), CompletionEvent{
		ProjectID:  "p1",
		DocumentID: "d1",
		Status:     model.StatusSuccess,
	})
}

func TestNilPublisher_StopIsNoop(t *testing.T) {
	var p *Publisher
	p.Stop()
}
