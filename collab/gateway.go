package collab

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// AppSyncGateway posts IAM-signed mutations to an AppSync endpoint.
type AppSyncGateway struct {
	url     string
	region  string
	creds   aws.CredentialsProvider
	signer  *v4.Signer
	http    HTTPDoer
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewAppSyncGateway returns a gateway for url. A nil doer uses a client with
// a short timeout.
func NewAppSyncGateway(url, region string, creds aws.CredentialsProvider, doer HTTPDoer, logger *zap.Logger) *AppSyncGateway {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &AppSyncGateway{
		url:     url,
		region:  region,
		creds:   creds,
		signer:  v4.NewSigner(),
		http:    doer,
		breaker: newBreaker(DefaultBreakerConfig("appsync"), logger),
		now:     time.Now,
	}
}

type graphQLResponse struct {
	Errors []struct {
		Message   string `json:"message"`
		ErrorType string `json:"errorType"`
	} `json:"errors"`
}

func (g *AppSyncGateway) Send(ctx context.Context, mutation string, variables map[string]any) error {
	body, err := json.Marshal(map[string]any{"query": mutation, "variables": variables})
	if err != nil {
		return fmt.Errorf("marshal mutation: %w", err)
	}
	_, err = g.breaker.Execute(func() (any, error) {
		return nil, g.post(ctx, body)
	})
	return wrap("appsync", err)
}

func (g *AppSyncGateway) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	creds, err := g.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	if err := g.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), "appsync", g.region, g.now()); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var out graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
