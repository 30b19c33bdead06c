package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/hearthtable/marketplace/pkg/config"
	"github.com/hearthtable/marketplace/pkg/retry"
)

const (
	ListingsCollection = "listings"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a Typesense client and waits for the server with backoff
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// ListingsSchema describes the listings collection
func ListingsSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: ListingsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "kind", Type: "string", Facet: pointer.True()},
			{Name: "status", Type: "string", Facet: pointer.True()},
			{Name: "host_id", Type: "string"},
			{Name: "title", Type: "string"},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "cuisine_type", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "property_type", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "zip_code", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "city", Type: "string", Optional: pointer.True()},
			{Name: "tags", Type: "string[]", Optional: pointer.True()},
			{Name: "bedrooms", Type: "int32"},
			{Name: "max_guests", Type: "int32"},
			{Name: "price", Type: "float"},
			{Name: "rating", Type: "float"},
			{Name: "review_count", Type: "int32"},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}

// InitSchema ensures the listings collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := c.client.Collection(ListingsCollection).Retrieve(ctx); err == nil {
		return nil
	}

	if _, err := c.client.Collections().Create(ctx, ListingsSchema()); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", ListingsCollection, err)
	}

	log.Info().Str("collection", ListingsCollection).Msg("created Typesense collection")
	return nil
}

// DropCollection deletes the listings collection, ignoring a missing one
func (c *Client) DropCollection(ctx context.Context) error {
	if _, err := c.client.Collection(ListingsCollection).Delete(ctx); err != nil {
		log.Warn().Err(err).Str("collection", ListingsCollection).Msg("failed to delete collection")
	}
	return nil
}
