package core

import (
	"context"

	"github.com/go-authgate/sallyport/internal/models"
)

// ClientRegistry looks up and authenticates registered clients.
type ClientRegistry interface {
	// Resolve returns an active client by id.
	Resolve(ctx context.Context, clientID string) (*models.OAuthApplication, error)

	// Authenticate verifies the presented secret for confidential clients.
	// Public clients authenticate by id alone. An unknown client and a wrong
	// secret produce the same error.
	Authenticate(ctx context.Context, clientID, secret string) (*models.OAuthApplication, error)
}
