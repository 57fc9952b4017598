// internal/service/places/client.go
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	xerrors "fleetdesk-service/internal/pkg/errors"

	"github.com/gregjones/httpcache"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	minInputRunes  = 3
	detailsFields  = "address_component,formatted_address,geometry"
)

type Config struct {
	APIKey  string
	BaseURL string
	// Country restricts predictions, as an ISO 3166-1 alpha-2 code.
	Country string
	Timeout time.Duration
}

type Prediction struct {
	PlaceID       string `json:"place_id"`
	Description   string `json:"description"`
	MainText      string `json:"main_text"`
	SecondaryText string `json:"secondary_text"`
}

// Address is a place broken into its postal components.
type Address struct {
	PlaceID            string  `json:"place_id"`
	FormattedAddress   string  `json:"formatted_address"`
	StreetNumber       string  `json:"street_number,omitempty"`
	Route              string  `json:"route,omitempty"`
	Locality           string  `json:"locality,omitempty"`
	AdministrativeArea string  `json:"administrative_area,omitempty"`
	PostalCode         string  `json:"postal_code,omitempty"`
	Country            string  `json:"country,omitempty"`
	CountryCode        string  `json:"country_code,omitempty"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
}

// Client calls the Places web service through an in-memory HTTP cache.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	country    string
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{
			Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
			Timeout:   cfg.Timeout,
		},
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		country: strings.ToLower(cfg.Country),
		logger:  logger,
	}
}

type autocompleteResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Predictions  []struct {
		PlaceID              string `json:"place_id"`
		Description          string `json:"description"`
		StructuredFormatting struct {
			MainText      string `json:"main_text"`
			SecondaryText string `json:"secondary_text"`
		} `json:"structured_formatting"`
	} `json:"predictions"`
}

// Autocomplete returns address predictions for partial input. Inputs shorter
// than three characters return nothing without calling upstream.
func (c *Client) Autocomplete(ctx context.Context, input, sessionToken string) ([]Prediction, error) {
	input = strings.TrimSpace(input)
	if utf8.RuneCountInString(input) < minInputRunes {
		return []Prediction{}, nil
	}

	q := url.Values{}
	q.Set("input", input)
	q.Set("types", "address")
	if c.country != "" {
		q.Set("components", "country:"+c.country)
	}

	var resp autocompleteResponse
	if err := c.get(ctx, "/autocomplete/json", q, sessionToken, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	out := make([]Prediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, Prediction{
			PlaceID:       p.PlaceID,
			Description:   p.Description,
			MainText:      p.StructuredFormatting.MainText,
			SecondaryText: p.StructuredFormatting.SecondaryText,
		})
	}
	return out, nil
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Details resolves a place id into a structured address. A place that no
// longer exists returns ErrNotFound.
func (c *Client) Details(ctx context.Context, placeID, sessionToken string) (*Address, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, fmt.Errorf("%w: place id is required", xerrors.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", detailsFields)

	var resp detailsResponse
	if err := c.get(ctx, "/details/json", q, sessionToken, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "ZERO_RESULTS" || resp.Status == "NOT_FOUND" {
		return nil, xerrors.ErrNotFound
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	addr := &Address{
		PlaceID:          placeID,
		FormattedAddress: resp.Result.FormattedAddress,
		Lat:              resp.Result.Geometry.Location.Lat,
		Lng:              resp.Result.Geometry.Location.Lng,
	}
	for _, comp := range resp.Result.AddressComponents {
		for _, typ := range comp.Types {
			switch typ {
			case "street_number":
				addr.StreetNumber = comp.LongName
			case "route":
				addr.Route = comp.LongName
			case "locality":
				addr.Locality = comp.LongName
			case "postal_town":
				if addr.Locality == "" {
					addr.Locality = comp.LongName
				}
			case "administrative_area_level_1":
				addr.AdministrativeArea = comp.LongName
			case "postal_code":
				addr.PostalCode = comp.LongName
			case "country":
				addr.Country = comp.LongName
				addr.CountryCode = comp.ShortName
			}
		}
	}
	return addr, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, sessionToken string, out interface{}) error {
	q.Set("key", c.apiKey)
	if sessionToken != "" {
		q.Set("sessiontoken", sessionToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build places request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error carries the request URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%w: places %s: %v", xerrors.ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("places request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Bool("cached", resp.Header.Get(httpcache.XFromCache) != ""),
	)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: places returned HTTP %d", xerrors.ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode places response: %v", xerrors.ErrUpstream, err)
	}
	return nil
}

func checkStatus(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	}
	if message != "" {
		return fmt.Errorf("%w: places status %s: %s", xerrors.ErrUpstream, status, message)
	}
	return fmt.Errorf("%w: places status %s", xerrors.ErrUpstream, status)
}
