package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kjstillabower/glancecast/internal/preferences"
)

// Store is a preferences.Store backed by the server's /api/preferences routes.
// The server applies defaults, so Get always reports ok for known keys.
type Store struct {
	c *Client
}

func NewStore(c *Client) *Store {
	return &Store{c: c}
}

type preferenceValue struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var out preferenceValue
	if err := s.c.do(ctx, http.MethodGet, "/api/preferences/"+url.PathEscape(key), nil, nil, &out); err != nil {
		return "", false, storeError(key, err)
	}
	return out.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.c.do(ctx, http.MethodPut, "/api/preferences/"+url.PathEscape(key), nil, preferenceValue{Value: value}, nil); err != nil {
		return storeError(key, err)
	}
	return nil
}

// Ping reads the location key.
func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.Get(ctx, preferences.LocationKey.Name())
	return err
}

// storeError maps envelope codes back to the preferences sentinels.
func storeError(key string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "UNKNOWN_KEY":
			return fmt.Errorf("%w: %q", preferences.ErrUnknownKey, key)
		case "INVALID_VALUE", "INVALID_LOCATION", "INVALID_SYMBOLS", "INVALID_BODY":
			return fmt.Errorf("%w: %s", preferences.ErrInvalidValue, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %v", preferences.ErrStoreUnavailable, key, err)
}
