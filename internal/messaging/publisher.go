package messaging

import (
	"context"

	"github.com/cayc/incubator/internal/domain"
)

// SubjectIncubationRequested is the subject incubation events are published on
const SubjectIncubationRequested = "incubation.requested"

// Publisher defines the interface for publishing events to message queue
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishIncubation publishes a relayed incubation notification for the minting pipeline
	PublishIncubation(ctx context.Context, event *domain.IncubationEvent) error
	// Close closes the connection
	Close()
}
