package core

import (
	"context"
	"io"

	"github.com/quarrylabs/quarry/internal/models"
)

// DbClient defines the persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByTenant(ctx context.Context, tenantID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It’s abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// PublicURL predicts the public location of an object. It is computed
	// before the object exists and only becomes valid once it is written.
	PublicURL(bucket, key string) string
}

// EventPublisher publishes one JSON-encoded payload to a named topic.
// Delivery downstream is at-least-once; after a successful publish the
// caller retains no ownership of the record.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// EventSubscriber runs a single-message handler loop over a subscription.
// The handler's error decides acknowledgement: nil, ErrMalformed and
// ErrUnsupported ack (drop), ErrTransient nacks so the broker redelivers.
// Receive blocks until ctx is cancelled.
type EventSubscriber interface {
	Receive(ctx context.Context, subscription string, handler func(ctx context.Context, data []byte) error) error
}
