// Package bootstrap wires a deployed App from configuration: AWS clients,
// the DynamoDB table, collaborators, logging and metrics.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/config"
	"github.com/realsocial/real/internal/logging"
	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/moderation"
	"github.com/realsocial/real/reactor"
	"github.com/realsocial/real/store"
)

// Object key of the word list in the bad-words bucket.
const badWordsKey = "bad_words.txt"

// Runtime is a wired deployment.
type Runtime struct {
	Config  config.Config
	Logger  *zap.Logger
	Metrics *metrics.Emitter
	Store   *store.Dynamo
	App     *manager.App
}

// Load reads the configuration and wires a Runtime for the named entry
// point.
func Load(ctx context.Context, name string) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, name)
}

// New wires a Runtime from cfg.
func New(ctx context.Context, cfg config.Config, name string) (*Runtime, error) {
	logger := logging.Must(cfg.LogLevel, cfg.Environment).Named(name)

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.DynamoEndpoint != "" {
		// DynamoDB Local accepts any credentials.
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ddb := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	})
	storeCfg := store.DefaultConfig()
	storeCfg.TableName = cfg.TableName
	table := store.NewDynamo(ddb, storeCfg)

	m := metrics.Nop()
	if cfg.MetricsNamespace != "" {
		m = metrics.New(cfg.MetricsNamespace, cloudwatch.NewFromConfig(awsCfg), logger.Named("metrics"))
	}

	set, err := collaborators(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	app := manager.New(cfg, table, set, manager.WithLogger(logger), manager.WithMetrics(m))
	return &Runtime{Config: cfg, Logger: logger, Metrics: m, Store: table, App: app}, nil
}

func collaborators(ctx context.Context, cfg config.Config, awsCfg aws.Config, logger *zap.Logger) (collab.Set, error) {
	s3Client := s3.NewFromConfig(awsCfg)
	bus := eventbridge.NewFromConfig(awsCfg)
	secrets := collab.NewSecretsManagerStore(secretsmanager.NewFromConfig(awsCfg))

	apple, google := collab.AppleProvider, collab.GoogleProvider
	apple.Audiences = cfg.AppleAudiences
	google.Audiences = cfg.GoogleAudiences

	badWords, err := loadBadWords(ctx, cfg, s3Client, logger)
	if err != nil {
		return collab.Set{}, err
	}
	appStore, err := appStoreVerifier(ctx, cfg, secrets, logger)
	if err != nil {
		return collab.Set{}, err
	}

	return collab.Set{
		Identity: collab.NewCognitoIdentityStore(cip.NewFromConfig(awsCfg), cfg.IdentityPoolIDs.UserPoolID),
		Federated: map[string]collab.FederatedVerifier{
			collab.ProviderApple:  collab.NewJWTVerifier(apple, nil),
			collab.ProviderGoogle: collab.NewJWTVerifier(google, nil),
		},
		Uploads:  collab.NewS3BlobStore(s3Client, cfg.Blob.Uploads),
		Search:   collab.NewEventBridgeSearchIndex(bus, cfg.EventBusName, cfg.SearchDomain, logger.Named("search")),
		Push:     collab.NewEventBridgePushEndpoints(bus, cfg.EventBusName, logger.Named("push")),
		Gateway:  collab.NewAppSyncGateway(cfg.GraphQLURL, cfg.AWSRegion, awsCfg.Credentials, nil, logger.Named("gateway")),
		Secrets:  secrets,
		BadWords: badWords,
		AppStore: appStore,
		Images:   collab.NewImagingProcessor(),
	}, nil
}

// loadBadWords reads the word list once at start-up. An unset bucket
// yields an empty list.
func loadBadWords(ctx context.Context, cfg config.Config, client *s3.Client, logger *zap.Logger) (*moderation.BadWords, error) {
	words := moderation.NewBadWords()
	if cfg.Blob.BadWords == "" {
		return words, nil
	}
	data, err := collab.NewS3BlobStore(client, cfg.Blob.BadWords).Get(ctx, badWordsKey)
	if err != nil {
		return nil, fmt.Errorf("load bad words: %w", err)
	}
	list, err := moderation.ParseWordList(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	words.Replace(list)
	logger.Info("bad words loaded", zap.Int("count", words.Len()))
	return words, nil
}

type appStoreSecret struct {
	SharedSecret string `json:"sharedSecret"`
}

func appStoreVerifier(ctx context.Context, cfg config.Config, secrets *collab.SecretsManagerStore, logger *zap.Logger) (*collab.HTTPAppStoreVerifier, error) {
	var secret appStoreSecret
	if cfg.AppStoreSecret != "" {
		raw, err := secrets.Get(ctx, cfg.AppStoreSecret)
		if err != nil {
			return nil, fmt.Errorf("load app store secret: %w", err)
		}
		if err := json.Unmarshal(raw, &secret); err != nil {
			return nil, fmt.Errorf("parse app store secret: %w", err)
		}
	}
	return collab.NewAppStoreVerifier(cfg.AppStoreURL, secret.SharedSecret, nil, logger.Named("appstore")), nil
}

// Dispatcher returns the reactor's dispatcher for the runtime's App.
func (r *Runtime) Dispatcher() *reactor.Dispatcher {
	return reactor.New(r.App)
}

// Close flushes metrics and logs.
func (r *Runtime) Close(ctx context.Context) {
	r.Metrics.Flush(ctx)
	_ = r.Logger.Sync()
}
