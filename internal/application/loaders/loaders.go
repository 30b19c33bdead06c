// Package loaders batches the related-record lookups of one request so that a
// page of listings costs one query per relation.
package loaders

import (
	"context"
	"fmt"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the per-request dataloaders
type Loaders struct {
	HostLoader  *dataloader.Loader[string, *entities.Profile]
	ImageLoader *dataloader.Loader[string, []*entities.ImageRecord]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(userRepo repositories.UserRepository, imageRepo repositories.ImageRepository) *Loaders {
	return &Loaders{
		HostLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Profile] {
			results := make([]*dataloader.Result[*entities.Profile], len(keys))
			users, err := userRepo.GetByIDs(ctx, keys)

			userMap := make(map[string]*entities.User)
			if err == nil {
				for _, u := range users {
					userMap[u.ID] = u
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.Profile]{Error: err}
				} else if u, ok := userMap[key]; ok {
					results[i] = &dataloader.Result[*entities.Profile]{Data: u.Profile()}
				} else {
					results[i] = &dataloader.Result[*entities.Profile]{Error: fmt.Errorf("user %s not found", key)}
				}
			}
			return results
		}),
		ImageLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[[]*entities.ImageRecord] {
			results := make([]*dataloader.Result[[]*entities.ImageRecord], len(keys))
			images, err := imageRepo.ListByListings(ctx, keys)

			// A listing without images gets an empty slice, not an error
			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[[]*entities.ImageRecord]{Error: err}
				} else {
					results[i] = &dataloader.Result[[]*entities.ImageRecord]{Data: images[key]}
				}
			}
			return results
		}),
	}
}

// For returns the loaders attached to ctx, if any
func For(ctx context.Context) (*Loaders, bool) {
	l, ok := ctx.Value(loadersKey).(*Loaders)
	return l, ok && l != nil
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}
