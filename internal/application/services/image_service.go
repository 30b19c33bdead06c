package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	"github.com/hearthtable/marketplace/pkg/config"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// maxFilesPerUpload bounds one multipart upload
const maxFilesPerUpload = 20

// URLResolver turns stored image paths into servable URLs
type URLResolver struct {
	publicBaseURL string
	bucket        string
	placeholder   string
}

// NewURLResolver creates a resolver for public objects in bucket
func NewURLResolver(publicBaseURL, bucket, placeholder string) *URLResolver {
	return &URLResolver{
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		bucket:        strings.Trim(bucket, "/"),
		placeholder:   placeholder,
	}
}

// Resolve maps an empty path to the placeholder, passes absolute URLs through
// and expands bucket-relative paths to <base>/<bucket>/<path>. A path that
// already starts with the bucket name is not prefixed twice.
func (r *URLResolver) Resolve(p string) string {
	p = strings.TrimSpace(p)
	switch {
	case p == "":
		return r.placeholder
	case strings.HasPrefix(p, "http://"), strings.HasPrefix(p, "https://"):
		return p
	}

	p = strings.TrimLeft(p, "/")
	if r.bucket != "" {
		p = strings.TrimPrefix(p, r.bucket+"/")
		return fmt.Sprintf("%s/%s/%s", r.publicBaseURL, r.bucket, p)
	}
	return fmt.Sprintf("%s/%s", r.publicBaseURL, p)
}

// ReorderInput lists a listing's image ids in their new gallery order
type ReorderInput struct {
	ImageIDs []string `json:"image_ids" validate:"required,min=1,unique,dive,required"`
}

// ImageService stores listing photos and keeps their order and primary flag
type ImageService struct {
	listings    repositories.ListingRepository
	images      repositories.ImageRepository
	storage     providers.ObjectStorage
	urls        *URLResolver
	maxBytes    int64
	invalidator *CacheInvalidationService
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewImageService creates a new image service
func NewImageService(
	listings repositories.ListingRepository,
	images repositories.ImageRepository,
	storage providers.ObjectStorage,
	cfg config.StorageConfig,
	invalidator *CacheInvalidationService,
	metrics *observability.Metrics,
) *ImageService {
	return &ImageService{
		listings:    listings,
		images:      images,
		storage:     storage,
		urls:        NewURLResolver(cfg.PublicBaseURL, storage.Bucket(), cfg.PlaceholderURL),
		maxBytes:    cfg.MaxUploadBytes,
		invalidator: invalidator,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithClock replaces the clock used in object keys
func (s *ImageService) WithClock(now func() time.Time) *ImageService {
	s.now = now
	return s
}

// URLs returns the resolver shared with listing reads
func (s *ImageService) URLs() *URLResolver {
	return s.urls
}

// Upload stores files under <host>/<listing>/<unix millis>-<name> and records
// them with display orders startOrder, startOrder+1, ... The first image of a
// listing without a primary becomes primary. Files are processed in order and
// the first failure stops the upload; images stored before it are kept.
func (s *ImageService) Upload(ctx context.Context, session *entities.Session, listingID string, startOrder int, files []entities.UploadFile) ([]*entities.ImageRecord, error) {
	ctx, span := observability.StartSpan(ctx, "ImageService.Upload")
	defer span.End()

	if err := s.checkFiles(files); err != nil {
		return nil, err
	}
	if startOrder < 0 {
		startOrder = 0
	}

	listing, err := s.owned(ctx, session, listingID)
	if err != nil {
		return nil, err
	}

	hasPrimary, err := s.images.HasPrimary(ctx, listing.ID)
	if err != nil {
		return nil, err
	}

	records := make([]*entities.ImageRecord, 0, len(files))
	for i, f := range files {
		key := objectKey(listing.HostID, listing.ID, s.now(), f.Name)
		if err := s.storage.Put(ctx, key, f.Body, f.Size, f.ContentType); err != nil {
			observability.RecordImageUpload(ctx, s.metrics, "failed")
			observability.RecordError(span, err)
			return records, err
		}

		record := &entities.ImageRecord{
			ID:           uuid.New().String(),
			ListingID:    listing.ID,
			Path:         key,
			DisplayOrder: startOrder + i,
			IsPrimary:    !hasPrimary,
			CreatedAt:    s.now().UTC(),
		}
		if err := s.images.Create(ctx, record); err != nil {
			// The object has no record pointing at it; remove it so the bucket does not leak
			if derr := s.storage.Delete(ctx, key); derr != nil {
				observability.LoggerFromContext(ctx).Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned object")
			}
			observability.RecordImageUpload(ctx, s.metrics, "failed")
			return records, err
		}
		if record.IsPrimary {
			hasPrimary = true
		}

		record.URL = s.urls.Resolve(record.Path)
		records = append(records, record)
		observability.RecordImageUpload(ctx, s.metrics, "stored")
	}

	s.invalidator.InvalidateListing(ctx, listing.ID)
	observability.LoggerFromContext(ctx).Info().Str("listing_id", listing.ID).Int("images", len(records)).Msg("images uploaded")
	return records, nil
}

// List returns a listing's gallery ordered by primary flag then display order
func (s *ImageService) List(ctx context.Context, session *entities.Session, listingID string) ([]*entities.ImageRecord, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsPublished() && !listing.OwnedBy(sessionUserID(session)) {
		return nil, apperrors.NewNotFoundError("listing not found")
	}

	images, err := s.images.ListByListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		img.URL = s.urls.Resolve(img.Path)
	}
	return images, nil
}

// Promote makes imageID the listing's only primary image
func (s *ImageService) Promote(ctx context.Context, session *entities.Session, listingID, imageID string) (*entities.ImageRecord, error) {
	listing, err := s.owned(ctx, session, listingID)
	if err != nil {
		return nil, err
	}

	image, err := s.imageOf(ctx, listing.ID, imageID)
	if err != nil {
		return nil, err
	}

	if err := s.images.SetPrimary(ctx, listing.ID, image.ID); err != nil {
		return nil, err
	}

	image.IsPrimary = true
	image.URL = s.urls.Resolve(image.Path)
	s.invalidator.InvalidateListing(ctx, listing.ID)
	return image, nil
}

// Reorder rewrites display orders to follow the given id sequence. Every image
// of the listing must appear exactly once.
func (s *ImageService) Reorder(ctx context.Context, session *entities.Session, listingID string, input ReorderInput) ([]*entities.ImageRecord, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	listing, err := s.owned(ctx, session, listingID)
	if err != nil {
		return nil, err
	}

	current, err := s.images.ListByListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]*entities.ImageRecord, len(current))
	for _, img := range current {
		known[img.ID] = img
	}
	if len(input.ImageIDs) != len(current) {
		return nil, apperrors.NewFieldValidationError("invalid order", map[string]string{
			"image_ids": fmt.Sprintf("must list all %d images of the listing", len(current)),
		})
	}
	for _, id := range input.ImageIDs {
		if _, ok := known[id]; !ok {
			return nil, apperrors.NewFieldValidationError("invalid order", map[string]string{
				"image_ids": fmt.Sprintf("image %s does not belong to this listing", id),
			})
		}
	}

	if err := s.images.Reorder(ctx, listing.ID, input.ImageIDs); err != nil {
		return nil, err
	}

	ordered := make([]*entities.ImageRecord, 0, len(input.ImageIDs))
	for i, id := range input.ImageIDs {
		img := known[id]
		img.DisplayOrder = i
		img.URL = s.urls.Resolve(img.Path)
		ordered = append(ordered, img)
	}
	s.invalidator.InvalidateListing(ctx, listing.ID)
	return ordered, nil
}

// Delete removes an image record and its object. Deleting the primary image
// promotes the remaining image with the lowest display order.
func (s *ImageService) Delete(ctx context.Context, session *entities.Session, listingID, imageID string) error {
	listing, err := s.owned(ctx, session, listingID)
	if err != nil {
		return err
	}

	image, err := s.imageOf(ctx, listing.ID, imageID)
	if err != nil {
		return err
	}

	if err := s.images.Delete(ctx, image.ID); err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, image.Path); err != nil {
		// The record is gone; a stray object is harmless, so log instead of failing
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", image.Path).Msg("failed to delete image object")
	}

	if image.IsPrimary {
		remaining, err := s.images.ListByListing(ctx, listing.ID)
		if err != nil {
			return err
		}
		if next := lowestOrder(remaining); next != nil {
			if err := s.images.SetPrimary(ctx, listing.ID, next.ID); err != nil {
				return err
			}
		}
	}

	s.invalidator.InvalidateListing(ctx, listing.ID)
	return nil
}

func (s *ImageService) checkFiles(files []entities.UploadFile) error {
	if len(files) == 0 {
		return apperrors.NewFieldValidationError("no files uploaded", map[string]string{"files": "is required"})
	}
	if len(files) > maxFilesPerUpload {
		return apperrors.NewFieldValidationError("too many files", map[string]string{
			"files": fmt.Sprintf("must be at most %d per upload", maxFilesPerUpload),
		})
	}

	fields := map[string]string{}
	for i, f := range files {
		name := fmt.Sprintf("files[%d]", i)
		switch {
		case f.Body == nil:
			fields[name] = "is empty"
		case !strings.HasPrefix(f.ContentType, "image/"):
			fields[name] = "must be an image"
		case s.maxBytes > 0 && f.Size > s.maxBytes:
			fields[name] = fmt.Sprintf("must be at most %d bytes", s.maxBytes)
		}
	}
	if len(fields) > 0 {
		return apperrors.NewFieldValidationError("invalid files", fields)
	}
	return nil
}

func (s *ImageService) owned(ctx context.Context, session *entities.Session, listingID string) (*entities.Listing, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.OwnedBy(session.UserID) {
		return nil, apperrors.NewForbiddenError("only the host can manage this listing's images")
	}
	return listing, nil
}

// imageOf loads an image and checks it belongs to the listing
func (s *ImageService) imageOf(ctx context.Context, listingID, imageID string) (*entities.ImageRecord, error) {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if image.ListingID != listingID {
		return nil, apperrors.NewNotFoundError("image not found")
	}
	return image, nil
}

// objectKey builds <host>/<listing>/<unix millis>-<slug>.<ext>. Two uploads of
// the same name within one millisecond share a key.
func objectKey(hostID, listingID string, at time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	base := slug.Make(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s/%s/%d-%s%s", hostID, listingID, at.UnixMilli(), base, ext)
}

func lowestOrder(images []*entities.ImageRecord) *entities.ImageRecord {
	if len(images) == 0 {
		return nil
	}
	sorted := append([]*entities.ImageRecord(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DisplayOrder != sorted[j].DisplayOrder {
			return sorted[i].DisplayOrder < sorted[j].DisplayOrder
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[0]
}
