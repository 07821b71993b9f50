package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// GetSecretValueAPI is the subset of the Secrets Manager client used here.
type GetSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerStore reads secrets once per process and caches them.
type SecretsManagerStore struct {
	client GetSecretValueAPI

	mu    sync.Mutex
	cache map[string]json.RawMessage
}

func NewSecretsManagerStore(client GetSecretValueAPI) *SecretsManagerStore {
	return &SecretsManagerStore{client: client, cache: make(map[string]json.RawMessage)}
}

func (s *SecretsManagerStore) Get(ctx context.Context, name string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache[name]; ok {
		return v, nil
	}
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: secret %s", ErrNotFound, name)
		}
		return nil, wrap("secretsmanager", err)
	}
	raw := json.RawMessage(aws.ToString(out.SecretString))
	if !json.Valid(raw) {
		return nil, fmt.Errorf("secret %s is not JSON", name)
	}
	s.cache[name] = raw
	return raw, nil
}
