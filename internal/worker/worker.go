// Package worker provides a NATS worker that publishes tracks on request.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/automuse/internal/core"
	"github.com/book-expert/automuse/internal/prompt"
)

// DefaultHandleTimeout bounds one request from prompt download to reply.
const DefaultHandleTimeout = 10 * time.Minute

var (
	// ErrConnectionNil indicates a missing NATS connection.
	ErrConnectionNil = errors.New("nats connection cannot be nil")
	// ErrSubjectEmpty indicates a missing request subject.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
	// ErrPromptStoreNil indicates a missing prompt store.
	ErrPromptStoreNil = errors.New("prompt store cannot be nil")
	// ErrPublisherNil indicates a missing publisher.
	ErrPublisherNil = errors.New("publisher cannot be nil")
	// ErrLoggerNil indicates a missing logger.
	ErrLoggerNil = errors.New("logger cannot be nil")
	// ErrPromptKeyEmpty indicates a request without a prompt key.
	ErrPromptKeyEmpty = errors.New("prompt key cannot be empty")
)

// NatsWorker listens for track requests on a NATS subject and replies with
// the key of the published track.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	prompts        core.BlobStore
	publisher      core.Publisher
	timeout        time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. A non-positive
// timeout selects DefaultHandleTimeout.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	prompts core.BlobStore,
	publisher core.Publisher,
	timeout time.Duration,
	log *logger.Logger,
) (*NatsWorker, error) {
	switch {
	case natsConnection == nil:
		return nil, ErrConnectionNil
	case subject == "":
		return nil, ErrSubjectEmpty
	case prompts == nil:
		return nil, ErrPromptStoreNil
	case publisher == nil:
		return nil, ErrPublisherNil
	case log == nil:
		return nil, ErrLoggerNil
	}

	if timeout <= 0 {
		timeout = DefaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		prompts:        prompts,
		publisher:      publisher,
		timeout:        timeout,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for track requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse event: %v", err)

		return
	}

	publication, err := w.processRequest(ctx, event)
	if err != nil {
		w.log.Error("Failed to publish track for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: event.Header.WorkflowID,
			EventID:    uuid.NewString(),
			UserID:     event.Header.UserID,
			TenantID:   event.Header.TenantID,
		},
		AudioKey:   publication.Key,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	w.log.Info("Workflow %s: published %s", event.Header.WorkflowID, publication.Locator)
}

// processRequest downloads the prompt named by the event and publishes it.
func (w *NatsWorker) processRequest(
	ctx context.Context,
	event *events.TextProcessedEvent,
) (*core.Publication, error) {
	if event.TextKey == "" {
		return nil, ErrPromptKeyEmpty
	}

	promptData, err := w.prompts.Download(ctx, event.TextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download prompt for key '%s': %w", event.TextKey, err)
	}

	text, err := prompt.Parse(promptData)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt at key '%s': %w", event.TextKey, err)
	}

	publication, err := w.publisher.Publish(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to publish track: %w", err)
	}

	return publication, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}
