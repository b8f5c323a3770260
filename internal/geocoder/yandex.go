package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/TemirB/foodcart/internal/domain"
)

const DefaultBaseURL = "https://geocode-maps.yandex.ru/1.x"

// ServiceError is a transport or protocol failure of the geocoding service.
// Status is zero when no HTTP response was received.
type ServiceError struct {
	Op     string
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("geocoder %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("geocoder %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client resolves free-text addresses with the Yandex Geocoder HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Resolve returns the coordinates of the first (most relevant) candidate.
// It returns domain.ErrNoMatch when the service knows no candidate and a
// *ServiceError for every other failure.
func (c *Client) Resolve(ctx context.Context, address string) (domain.Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Coordinates{}, &domain.ValidationError{Reason: "empty address"}
	}

	params := url.Values{
		"apikey":  {c.apiKey},
		"geocode": {address},
		"format":  {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, &ServiceError{Op: "request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, &ServiceError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinates{}, &ServiceError{
			Op:     "response",
			Status: resp.StatusCode,
			Err:    errors.New(strings.TrimSpace(string(body))),
		}
	}

	var yr response
	if err := json.NewDecoder(resp.Body).Decode(&yr); err != nil {
		return domain.Coordinates{}, &ServiceError{Op: "decode", Err: err}
	}

	members := yr.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		c.logger.Debug("geocoder returned no candidates", zap.String("address", address))
		return domain.Coordinates{}, domain.ErrNoMatch
	}

	coords, err := parsePos(members[0].GeoObject.Point.Pos)
	if err != nil {
		return domain.Coordinates{}, &ServiceError{Op: "decode", Err: err}
	}

	c.logger.Debug("address resolved",
		zap.String("address", address),
		zap.Int("candidates", len(members)),
		zap.String("lon", coords.Longitude.String()),
		zap.String("lat", coords.Latitude.String()),
	)
	return coords, nil
}

// parsePos reads the "<lon> <lat>" pair Yandex puts into Point.pos.
func parsePos(pos string) (domain.Coordinates, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return domain.Coordinates{}, fmt.Errorf("malformed point %q", pos)
	}
	lon, err := decimal.NewFromString(parts[0])
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("malformed longitude %q: %w", parts[0], err)
	}
	lat, err := decimal.NewFromString(parts[1])
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("malformed latitude %q: %w", parts[1], err)
	}
	return domain.NewCoordinates(lon, lat), nil
}

// Yandex Geocoder response types. Only the fields we read are declared.

type response struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []featureMember `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

type featureMember struct {
	GeoObject struct {
		Point struct {
			Pos string `json:"pos"` // "lon lat"
		} `json:"Point"`
	} `json:"GeoObject"`
}
