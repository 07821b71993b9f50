// Package collab declares the external services the core depends on and
// implements them over AWS and HTTP. Package collabtest has in-memory fakes.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/realsocial/real/errs"
)

var (
	// ErrNotFound reports a missing user, object or secret.
	ErrNotFound = errors.New("collab: not found")
	// ErrAliasTaken reports that an email, phone or username alias belongs to
	// another identity.
	ErrAliasTaken = errors.New("collab: alias taken")
	// ErrUserExists reports that the identity already exists.
	ErrUserExists = errors.New("collab: user exists")
	// ErrInvalidToken reports a federated token that failed verification.
	ErrInvalidToken = errors.New("collab: invalid token")
	// ErrUnsupportedFormat reports an image that cannot be decoded.
	ErrUnsupportedFormat = errors.New("collab: unsupported format")
)

// Identity attribute names.
const (
	AttrEmail             = "email"
	AttrEmailVerified     = "email_verified"
	AttrPhone             = "phone_number"
	AttrPhoneVerified     = "phone_number_verified"
	AttrPreferredUsername = "preferred_username"
)

// IdentityStore is the user directory that owns credentials and aliases.
type IdentityStore interface {
	CreateVerifiedUser(ctx context.Context, userID string, attrs map[string]string) error
	SetAttributes(ctx context.Context, userID string, attrs map[string]string) error
	GetAttributes(ctx context.Context, userID string) (map[string]string, error)
	// VerifyAttribute marks attr, email or phone_number, as verified.
	VerifyAttribute(ctx context.Context, userID, attr string) error
	DeleteUser(ctx context.Context, userID string) error
	// ClaimUsername sets the case-insensitive preferred_username alias,
	// failing with ErrAliasTaken when another user holds it.
	ClaimUsername(ctx context.Context, userID, username string) error
}

// FederatedVerifier validates a token issued by a federated provider.
type FederatedVerifier interface {
	VerifyTokenForEmail(ctx context.Context, token string) (string, error)
}

// Federated identity providers.
const (
	ProviderApple  = "apple"
	ProviderGoogle = "google"
)

// BlobStore is an object store scoped to one bucket.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Copy(ctx context.Context, src, dst string) error
	Exists(ctx context.Context, key string) (bool, error)
	// ListPrefixes returns the immediate sub-prefixes of prefix.
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// SearchIndex receives documents to index, keyed by kind and id.
type SearchIndex interface {
	Put(ctx context.Context, kind, id string, doc map[string]any) error
	Delete(ctx context.Context, kind, id string) error
}

// APNSMessage is an alert pushed to a user's Apple devices.
type APNSMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Route string `json:"route,omitempty"`
}

// PushEndpoints manages the user's push channels.
type PushEndpoints interface {
	UpdateEndpoint(ctx context.Context, userID, channel, address string) error
	DeleteEndpoint(ctx context.Context, userID, channel string) error
	EnableUserEndpoints(ctx context.Context, userID string) error
	DisableUserEndpoints(ctx context.Context, userID string) error
	DeleteUserEndpoints(ctx context.Context, userID string) error
	SendAPNS(ctx context.Context, userID string, msg APNSMessage) error
}

// GraphQLGateway runs server-initiated mutations that fan out to
// subscriptions.
type GraphQLGateway interface {
	Send(ctx context.Context, mutation string, variables map[string]any) error
}

// SecretsStore reads JSON secrets by name.
type SecretsStore interface {
	Get(ctx context.Context, name string) (json.RawMessage, error)
}

// GetSecretInto decodes the named secret into v.
func GetSecretInto(ctx context.Context, s SecretsStore, name string, v any) error {
	raw, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode secret %s: %w", name, err)
	}
	return nil
}

// BadWordList matches text against prohibited words.
type BadWordList interface {
	Contains(text string) bool
}

// ReceiptTransaction is one purchase in a verified receipt.
type ReceiptTransaction struct {
	OriginalTransactionID string
	ProductID             string
	PurchasedAt           time.Time
	ExpiresAt             time.Time
	CancelledAt           *time.Time
}

// Receipt is a verified App Store receipt.
type Receipt struct {
	Transactions []ReceiptTransaction
}

// Latest returns the transaction expiring last, or nil.
func (r *Receipt) Latest() *ReceiptTransaction {
	var latest *ReceiptTransaction
	for i := range r.Transactions {
		if latest == nil || r.Transactions[i].ExpiresAt.After(latest.ExpiresAt) {
			latest = &r.Transactions[i]
		}
	}
	return latest
}

// AppStoreVerifier validates App Store receipts.
type AppStoreVerifier interface {
	VerifyReceipt(ctx context.Context, receiptData string, excludeOld bool) (*Receipt, error)
}

// wrap turns a remote failure into a collaborator error, leaving the
// package sentinels visible to errors.Is.
func wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrAliasTaken, ErrUserExists, ErrInvalidToken, ErrUnsupportedFormat} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return errs.NewCollaborator(service, err)
}

// Set is every collaborator the core uses.
type Set struct {
	Identity  IdentityStore
	Federated map[string]FederatedVerifier
	Uploads   BlobStore
	Search    SearchIndex
	Push      PushEndpoints
	Gateway   GraphQLGateway
	Secrets   SecretsStore
	BadWords  BadWordList
	AppStore  AppStoreVerifier
	Images    ImageProcessor
}
