package messaging

import (
	"context"
	"strings"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
)

// SubjectPrefix is the subject namespace of event batches
const SubjectPrefix = "mirror"

// Subject returns the subject event batches of a contract are published on
func Subject(contract string) string {
	return SubjectPrefix + "." + strings.ToLower(contract)
}

// AllSubjects matches the batches of every contract
func AllSubjects() string {
	return SubjectPrefix + ".>"
}

// Publisher defines the interface for publishing event batches to message queue
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishBatch publishes a batch of contract events. Publishing an identical batch
	// twice within the stream's duplicate window stores it once.
	PublishBatch(ctx context.Context, batch *domain.EventBatch) error
	// Close closes the connection
	Close()
}
