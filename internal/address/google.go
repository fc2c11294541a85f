package address

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"googlemaps.github.io/maps"
)

var ErrNoMatch = errors.New("no geocoding match")

// GoogleFormatter formats addresses with the Google Geocoding API.
type GoogleFormatter struct {
	client *maps.Client
}

func NewGoogleFormatter(apiKey string, timeout time.Duration, opts ...maps.ClientOption) (*GoogleFormatter, error) {
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey), maps.WithHTTPClient(httpClient)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleFormatter{client: client}, nil
}

func (g *GoogleFormatter) Format(ctx context.Context, raw string) (domain.FormattedAddress, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: raw})
	if err != nil {
		return domain.FormattedAddress{}, fmt.Errorf("geocode: %w", err)
	}
	if len(results) == 0 {
		return domain.FormattedAddress{}, ErrNoMatch
	}
	return fromComponents(results[0].AddressComponents), nil
}

func fromComponents(components []maps.AddressComponent) domain.FormattedAddress {
	parts := make(map[string]string)
	for _, c := range components {
		for _, t := range c.Types {
			if _, seen := parts[t]; !seen {
				parts[t] = c.LongName
			}
		}
	}

	street := strings.TrimSpace(parts["street_number"] + " " + parts["route"])
	city := parts["locality"]
	if city == "" {
		city = parts["postal_town"]
	}
	return domain.FormattedAddress{
		Street:  street,
		City:    city,
		State:   parts["administrative_area_level_1"],
		Country: parts["country"],
		Zip:     parts["postal_code"],
	}
}
