package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/internal/adapters/auth"
	"github.com/hearthtable/marketplace/internal/adapters/cache"
	"github.com/hearthtable/marketplace/internal/adapters/database"
	"github.com/hearthtable/marketplace/internal/adapters/search"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/typesense"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	"github.com/hearthtable/marketplace/pkg/config"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

const demoPassword = "hearthtable-demo"

type demoHost struct {
	email, name string
	listings    []services.ListingInput
}

var demoHosts = []demoHost{
	{
		email: "maya@example.com",
		name:  "Maya",
		listings: []services.ListingInput{
			{
				Kind:        "stay",
				Title:       "Sunny loft near the river",
				Description: "Two bedrooms, a long balcony and coffee from the corner roaster.",
				Price:       140,
				Currency:    "USD",
				Address:     services.AddressInput{City: "Portland", State: "OR", ZipCode: "97209", Country: "US", Latitude: 45.5289, Longitude: -122.6819},
				Stay:        &services.StayInput{PropertyType: "apartment", Bedrooms: 2, Beds: 3, Bathrooms: 1, MaxGuests: 4, Amenities: []string{"wifi", "kitchen", "balcony"}},
			},
			{
				Kind:        "food",
				Title:       "Handmade dumpling night",
				Description: "Fold, steam and eat three kinds of dumplings at Maya's table.",
				Price:       55,
				Currency:    "USD",
				Address:     services.AddressInput{City: "Portland", State: "OR", ZipCode: "97209", Country: "US"},
				Food:        &services.FoodInput{CuisineType: "chinese", MenuDescription: "Pork and chive, mushroom, shrimp", DurationMinutes: 150, Language: "english", MaxGuests: 6},
			},
		},
	},
	{
		email: "tomas@example.com",
		name:  "Tomás",
		listings: []services.ListingInput{
			{
				Kind:        "stay",
				Title:       "Cabin with a wood stove",
				Description: "A quiet one-bedroom cabin twenty minutes from the trailhead.",
				Price:       95,
				Currency:    "USD",
				Address:     services.AddressInput{City: "Hood River", State: "OR", ZipCode: "97031", Country: "US"},
				Stay:        &services.StayInput{PropertyType: "cabin", Bedrooms: 1, Beds: 1, Bathrooms: 1, MaxGuests: 2, Amenities: []string{"wood stove", "parking"}},
			},
			{
				Kind:        "stay",
				Title:       "Family house with a big garden",
				Description: "Four bedrooms, a trampoline and a grill.",
				Price:       260,
				Currency:    "USD",
				Address:     services.AddressInput{City: "Hood River", State: "OR", ZipCode: "97031", Country: "US"},
				Stay:        &services.StayInput{PropertyType: "house", Bedrooms: 4, Beds: 6, Bathrooms: 2.5, MaxGuests: 8, Amenities: []string{"wifi", "garden", "grill", "washer"}},
			},
			{
				Kind:        "food",
				Title:       "Paella in the orchard",
				Description: "A slow Sunday paella cooked over vine cuttings.",
				Price:       70,
				Currency:    "USD",
				Address:     services.AddressInput{City: "Hood River", State: "OR", ZipCode: "97031", Country: "US"},
				Food:        &services.FoodInput{CuisineType: "spanish", MenuDescription: "Paella valenciana, pan con tomate, flan", DurationMinutes: 180, Language: "spanish", MaxGuests: 10},
			},
		},
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("marketplace-seed", cfg.Server.Environment, cfg.Server.LogLevel)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				messages,
				conversations,
				reviews,
				favorites,
				listing_images,
				availability_slots,
				listings,
				users
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to truncate tables")
		}
	}

	var searchRepo repositories.ListingSearchRepository
	if cfg.Typesense.Enabled {
		if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; listings will not be indexed")
		} else {
			adapter := search.NewTypesenseAdapter(tsClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = adapter
		}
	}

	memCache := cache.NewMemoryCache()
	userRepo := database.NewUserAdapter(pgClient)
	listingRepo := database.NewListingAdapter(pgClient)
	slotRepo := database.NewAvailabilityAdapter(pgClient)
	imageRepo := database.NewImageAdapter(pgClient)

	tokens := auth.NewJWTTokenProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	sessions := services.NewSessionService(userRepo, tokens, memCache, nil, cfg.Auth)
	availability := services.NewAvailabilityService(listingRepo, slotRepo, cfg.Availability, nil)
	listings := services.NewListingService(
		listingRepo,
		searchRepo,
		availability,
		database.NewFavoriteAdapter(pgClient),
		userRepo,
		imageRepo,
		services.NewURLResolver(cfg.Storage.PublicBaseURL, cfg.Storage.Bucket, cfg.Storage.PlaceholderURL),
		nil,
		nil,
	)

	created := 0
	for _, host := range demoHosts {
		session, err := hostSession(ctx, sessions, host)
		if err != nil {
			log.Fatal().Err(err).Str("email", host.email).Msg("failed to create host")
		}

		for i, input := range host.listings {
			listing, err := listings.Create(ctx, session, input)
			if err != nil {
				log.Error().Err(err).Str("title", input.Title).Msg("failed to create listing")
				continue
			}
			if _, err := listings.Publish(ctx, session, listing.ID); err != nil {
				log.Error().Err(err).Str("listing_id", listing.ID).Msg("failed to publish listing")
				continue
			}
			created++

			// The first listing of each host gets an explicit calendar; the rest
			// fall back to the synthesized one.
			if i == 0 {
				if _, err := availability.SetSlots(ctx, session, listing.ID, demoCalendar(time.Now().UTC(), listing.Price)); err != nil {
					log.Warn().Err(err).Str("listing_id", listing.ID).Msg("failed to seed calendar")
				}
			}
		}
	}

	log.Info().Int("listings", created).Int("hosts", len(demoHosts)).Msg("seeding completed")
}

// hostSession signs a demo host up, or in when they already exist
func hostSession(ctx context.Context, sessions *services.SessionService, host demoHost) (*entities.Session, error) {
	result, err := sessions.SignUp(ctx, services.SignUpInput{Email: host.email, Password: demoPassword, DisplayName: host.name})
	if apperrors.TypeOf(err) == apperrors.ErrorTypeConflict {
		result, err = sessions.SignIn(ctx, services.SignInInput{Email: host.email, Password: demoPassword})
	}
	if err != nil {
		return nil, err
	}
	return &entities.Session{UserID: result.User.ID, Email: result.User.Email}, nil
}

// demoCalendar opens the next 60 nights, blocks every Tuesday and prices
// Saturdays a little higher
func demoCalendar(from time.Time, price float64) services.SetSlotsInput {
	var input services.SetSlotsInput
	for i := 0; i < 60; i++ {
		day := from.AddDate(0, 0, i)
		slot := services.SlotInput{Date: day.Format("2006-01-02"), IsAvailable: day.Weekday() != time.Tuesday}
		if day.Weekday() == time.Saturday {
			override := price * 1.2
			slot.PriceOverride = &override
		}
		input.Slots = append(input.Slots, slot)
	}
	return input
}
