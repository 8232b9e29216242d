package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/observability"
)

// Defaults applied when a key has never been written.
const (
	DefaultLocation   = "New York"
	DefaultSpotifyURL = "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"
)

// DefaultStocks returns a fresh copy of the default watch list.
func DefaultStocks() []string {
	return []string{"AAPL", "GOOGL", "TSLA"}
}

var (
	ErrUnknownKey   = errors.New("unknown preference key")
	ErrInvalidValue = errors.New("invalid preference value")
)

// Key describes one typed preference: its storage name, default and encoding.
type Key[T any] struct {
	name   string
	def    func() T
	decode func(string) (T, error)
	encode func(T) (string, error)
}

func (k Key[T]) Name() string { return k.name }
func (k Key[T]) Default() T   { return k.def() }

// stringKey treats an empty stored value as unset.
func stringKey(name, def string) Key[string] {
	return Key[string]{
		name: name,
		def:  func() string { return def },
		decode: func(s string) (string, error) {
			if s == "" {
				return def, nil
			}
			return s, nil
		},
		encode: func(s string) (string, error) { return s, nil },
	}
}

var (
	LocationKey   = stringKey("location", DefaultLocation)
	SpotifyURLKey = stringKey("spotify-url", DefaultSpotifyURL)
	// StocksKey is stored as a JSON array of symbols. An empty array is a valid
	// watch list, distinct from unset.
	StocksKey = Key[[]string]{
		name: "stocks",
		def:  DefaultStocks,
		decode: func(s string) ([]string, error) {
			var out []string
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, fmt.Errorf("%w: stocks must be a JSON array of strings: %v", ErrInvalidValue, err)
			}
			if out == nil {
				out = []string{}
			}
			return out, nil
		},
		encode: func(v []string) (string, error) {
			if v == nil {
				v = []string{}
			}
			raw, err := json.Marshal(v)
			return string(raw), err
		},
	}
)

// KeyNames lists every known preference key.
func KeyNames() []string {
	return []string{LocationKey.name, StocksKey.name, SpotifyURLKey.name}
}

// Get reads key from store, applying its default when unset. A stored value that
// no longer decodes is logged and replaced by the default.
func Get[T any](ctx context.Context, store Store, key Key[T]) (T, error) {
	raw, ok, err := store.Get(ctx, key.name)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		return key.def(), nil
	}
	v, err := key.decode(raw)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("stored preference unreadable, using default",
			zap.String("key", key.name), zap.Error(err))
		return key.def(), nil
	}
	return v, nil
}

// Set overwrites key with v.
func Set[T any](ctx context.Context, store Store, key Key[T], v T) error {
	raw, err := key.encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key.name, err)
	}
	if err := store.Set(ctx, key.name, raw); err != nil {
		return err
	}
	observability.PreferenceWritesTotal.WithLabelValues(key.name).Inc()
	return nil
}

// Repository is the typed view over a Store.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Location(ctx context.Context) (string, error) {
	return Get(ctx, r.store, LocationKey)
}

func (r *Repository) SetLocation(ctx context.Context, location string) error {
	return Set(ctx, r.store, LocationKey, location)
}

func (r *Repository) Stocks(ctx context.Context) ([]string, error) {
	return Get(ctx, r.store, StocksKey)
}

func (r *Repository) SetStocks(ctx context.Context, symbols []string) error {
	return Set(ctx, r.store, StocksKey, symbols)
}

func (r *Repository) SpotifyURL(ctx context.Context) (string, error) {
	return Get(ctx, r.store, SpotifyURLKey)
}

func (r *Repository) SetSpotifyURL(ctx context.Context, url string) error {
	return Set(ctx, r.store, SpotifyURLKey, url)
}

// Load reads every key independently.
func (r *Repository) Load(ctx context.Context) (models.Preferences, error) {
	var p models.Preferences
	var err error
	if p.Location, err = r.Location(ctx); err != nil {
		return models.Preferences{}, err
	}
	if p.Stocks, err = r.Stocks(ctx); err != nil {
		return models.Preferences{}, err
	}
	if p.SpotifyURL, err = r.SpotifyURL(ctx); err != nil {
		return models.Preferences{}, err
	}
	return p, nil
}

// GetRaw returns the encoded value of the named key, or its encoded default.
func (r *Repository) GetRaw(ctx context.Context, name string) (string, error) {
	switch name {
	case LocationKey.name:
		return r.Location(ctx)
	case SpotifyURLKey.name:
		return r.SpotifyURL(ctx)
	case StocksKey.name:
		v, err := r.Stocks(ctx)
		if err != nil {
			return "", err
		}
		return StocksKey.encode(v)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
}

// SetRaw stores an encoded value for the named key after checking it decodes.
func (r *Repository) SetRaw(ctx context.Context, name, value string) error {
	switch name {
	case LocationKey.name:
		return r.SetLocation(ctx, value)
	case SpotifyURLKey.name:
		return r.SetSpotifyURL(ctx, value)
	case StocksKey.name:
		v, err := StocksKey.decode(value)
		if err != nil {
			return err
		}
		return r.SetStocks(ctx, v)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// ParseSymbols turns comma-separated user input into upper-case symbols.
// Blank entries are dropped; duplicates are kept in order.
func ParseSymbols(input string) []string {
	out := []string{}
	for _, part := range strings.Split(input, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
