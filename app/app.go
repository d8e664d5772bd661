// Package app wires the forum's components together from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/cookhouse/blob"
	"github.com/jacentio/cookhouse/forum"
	"github.com/jacentio/cookhouse/identity"
	"github.com/jacentio/cookhouse/internal/config"
	"github.com/jacentio/cookhouse/session"
	"github.com/jacentio/cookhouse/store"
	"github.com/jacentio/cookhouse/stream"
)

// Backend is the document store every component shares. *store.Store and
// *memstore.Store satisfy it.
type Backend interface {
	forum.DataStore
	Create(ctx context.Context, path string, value any) error
}

// App holds the wired components.
type App struct {
	Forum    *forum.Service
	Identity *identity.Provider
	Sessions *session.Manager
	Media    *blob.Media
	Cleanup  *stream.Handler
	Logger   *slog.Logger
}

// New wires the components over an existing backend and blob store.
func New(cfg config.Config, backend Backend, blobs blob.Store, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	svc := forum.NewService(backend, logger.With("component", "forum"))
	ids := identity.New(backend, identity.Config{
		Secret:     cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, logger.With("component", "identity"))

	return &App{
		Forum:    svc,
		Identity: ids,
		Sessions: session.NewManager(ids, svc, session.Config{AdminSuffix: cfg.Auth.AdminSuffix}, logger.With("component", "session")),
		Media:    blob.NewMedia(blobs, cfg.Blob.MaxImageBytes, logger.With("component", "blob")),
		Cleanup:  stream.NewHandler(backend, mirrors(backend), logger.With("component", "stream")),
		Logger:   logger,
	}
}

// mirrors returns the registry attached to backend, or the forum's own when
// the backend carries none.
func mirrors(backend Backend) *store.Registry {
	if r, ok := backend.(interface{ Registry() *store.Registry }); ok && r.Registry() != nil {
		return r.Registry()
	}
	return forum.NewRegistry()
}

// LoadAWS loads the shared AWS configuration.
func LoadAWS(ctx context.Context, cfg config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWS.Region)}
	if cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewDynamoDB builds the DynamoDB client, honoring the endpoint override.
func NewDynamoDB(awsCfg aws.Config, cfg config.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})
}

// NewStore builds the DynamoDB-backed document store with the forum's
// mirrored relations registered.
func NewStore(client store.API, cfg config.Config) *store.Store {
	return store.NewWithRegistry(client, store.Config{
		TablePrefix: cfg.Store.TablePrefix,
		NumShards:   cfg.Store.NumShards,
	}, forum.NewRegistry())
}

// NewFromAWS wires the components against DynamoDB and S3.
func NewFromAWS(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend := NewStore(NewDynamoDB(awsCfg, cfg), cfg)
	s3cfg := blob.S3Config{
		Bucket:          cfg.Blob.Bucket,
		Region:          cfg.Blob.Region,
		Endpoint:        cfg.Blob.Endpoint,
		AccessKeyID:     cfg.Blob.AccessKeyID,
		SecretAccessKey: cfg.Blob.SecretAccessKey,
		PublicBaseURL:   cfg.Blob.PublicBaseURL,
	}
	blobs := blob.NewS3Store(blob.NewS3Client(awsCfg, s3cfg), s3cfg, logger)

	return New(cfg, backend, blobs, logger), nil
}
