// Package dashboard is the presentation state machine behind the terminal
// client. A Board owns the view state of every panel; fetches run as Jobs off
// the UI goroutine and come back as Updates that Apply folds in.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/playlist"
	"github.com/kjstillabower/glancecast/internal/preferences"
	"github.com/kjstillabower/glancecast/internal/validation"
)

// Notice titles and fixed descriptions shown to the user.
const (
	WeatherErrorTitle      = "Error fetching weather"
	NewsErrorTitle         = "Error fetching news"
	StocksErrorTitle       = "Error fetching stocks"
	MissingDataTitle       = "Missing Data"
	BriefErrorTitle        = "Error"
	SettingsErrorTitle     = "Error saving settings"
	MissingDataDescription = "Cannot generate brief without weather, news, and stock data."
)

// Status is a panel's load state.
type Status int

const (
	Idle Status = iota
	Loading
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Actions is the orchestration surface the board fetches through.
type Actions interface {
	FetchWeather(ctx context.Context, location string) models.Result[models.WeatherReading]
	FetchNews(ctx context.Context, location string) models.Result[[]models.NewsItem]
	FetchStocks(ctx context.Context, symbols []string, location string) models.Result[models.StocksReport]
	ComposeBrief(ctx context.Context, in models.BriefInput) models.Result[models.Brief]
}

// Preferences persists the settings panel.
type Preferences interface {
	Load(ctx context.Context) (models.Preferences, error)
	SetLocation(ctx context.Context, location string) error
	SetStocks(ctx context.Context, symbols []string) error
	SetSpotifyURL(ctx context.Context, url string) error
}

// Notice is a transient message, shown once.
type Notice struct {
	Title       string
	Description string
}

// Panel is one feed's view state. Data is the zero value unless Status is Loaded.
type Panel[T any] struct {
	Status Status
	Data   T
	// seq is the ticket of the latest trigger; older results are discarded.
	seq uint64
}

// begin starts a new trigger and returns its ticket.
func (p *Panel[T]) begin() uint64 {
	p.seq++
	p.Status = Loading
	var zero T
	p.Data = zero
	return p.seq
}

// settle records a result for ticket seq. It reports false when seq is stale.
func (p *Panel[T]) settle(seq uint64, res models.Result[T]) bool {
	if seq != p.seq {
		return false
	}
	if res.OK() {
		p.Status = Loaded
		p.Data = res.Data
	} else {
		p.Status = Failed
		var zero T
		p.Data = zero
	}
	return true
}

// Job runs one fetch. It must not touch the board; its Update is applied later.
type Job func(ctx context.Context) Update

// Update is a finished fetch waiting to be applied.
type Update interface {
	apply(b *Board) bool
}

// Snapshot is a copy of the board for rendering.
type Snapshot struct {
	Settings       models.Preferences
	EmbedURL       string
	PlaylistLoaded bool
	Weather        Panel[models.WeatherReading]
	News           Panel[[]models.NewsItem]
	Stocks         Panel[models.StocksReport]
	Brief          Panel[string]
}

// Board holds the dashboard state. All methods are safe for concurrent use.
type Board struct {
	actions Actions
	prefs   Preferences
	limits  validation.Limits
	logger  *zap.Logger

	mu       sync.Mutex
	settings models.Preferences
	weather  Panel[models.WeatherReading]
	news     Panel[[]models.NewsItem]
	stocks   Panel[models.StocksReport]
	brief    Panel[string]
	notices  []Notice
}

// New returns a board with default settings. Call Start to load saved ones.
// Saved locations and watch lists are checked against limits; zero fields take
// validation.DefaultLimits.
func New(actions Actions, prefs Preferences, limits validation.Limits, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{
		actions: actions,
		prefs:   prefs,
		limits:  limits.WithDefaults(),
		logger:  logger,
		settings: models.Preferences{
			Location:   preferences.DefaultLocation,
			Stocks:     preferences.DefaultStocks(),
			SpotifyURL: preferences.DefaultSpotifyURL,
		},
	}
}

// Start loads saved settings and triggers every feed. When preferences cannot be
// read the defaults stay in place and a notice is raised.
func (b *Board) Start(ctx context.Context) []Job {
	p, err := b.prefs.Load(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.logger.Warn("preferences unavailable, using defaults", zap.Error(err))
		b.notifyLocked(SettingsErrorTitle, "Could not load saved settings. Using defaults.")
	} else {
		b.settings = p
	}
	return b.refreshLocked()
}

// Refresh re-triggers weather, news and stocks for the current settings.
func (b *Board) Refresh() []Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshLocked()
}

func (b *Board) refreshLocked() []Job {
	jobs := []Job{b.weatherJobLocked(), b.newsJobLocked()}
	if j := b.stocksJobLocked(); j != nil {
		jobs = append(jobs, j)
	}
	return jobs
}

func (b *Board) weatherJobLocked() Job {
	seq := b.weather.begin()
	loc := b.settings.Location
	return func(ctx context.Context) Update {
		return weatherUpdate{seq: seq, res: b.actions.FetchWeather(ctx, loc)}
	}
}

func (b *Board) newsJobLocked() Job {
	seq := b.news.begin()
	loc := b.settings.Location
	return func(ctx context.Context) Update {
		return newsUpdate{seq: seq, res: b.actions.FetchNews(ctx, loc)}
	}
}

// stocksJobLocked returns nil for an empty watch list: the panel settles
// immediately on an empty category without a fetch.
func (b *Board) stocksJobLocked() Job {
	seq := b.stocks.begin()
	if len(b.settings.Stocks) == 0 {
		b.stocks.settle(seq, models.Success(models.StocksReport{
			StockData: []models.StockCategory{{Category: models.DefaultStockCategory, Stocks: []models.StockQuote{}}},
		}))
		return nil
	}
	symbols := append([]string(nil), b.settings.Stocks...)
	loc := b.settings.Location
	return func(ctx context.Context) Update {
		return stocksUpdate{seq: seq, res: b.actions.FetchStocks(ctx, symbols, loc)}
	}
}

// GenerateBrief starts a brief when weather, news and stocks are all loaded and
// stocks has a first category. Otherwise it raises the missing-data notice and
// returns nil. It also returns nil while a brief is already generating.
func (b *Board) GenerateBrief() Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.brief.Status == Loading {
		return nil
	}
	first, hasFirst := b.stocks.Data.First()
	if b.weather.Status != Loaded || b.news.Status != Loaded || b.stocks.Status != Loaded || !hasFirst {
		b.brief.Status = Idle
		b.brief.Data = ""
		b.notifyLocked(MissingDataTitle, MissingDataDescription)
		return nil
	}

	in, err := briefInput(b.weather.Data, b.news.Data, first.Stocks)
	if err != nil {
		b.notifyLocked(BriefErrorTitle, err.Error())
		return nil
	}
	seq := b.brief.begin()
	return func(ctx context.Context) Update {
		return briefUpdate{seq: seq, res: b.actions.ComposeBrief(ctx, in)}
	}
}

// briefInput serialises the panels the way the composer expects: the whole
// weather reading, the headline list and the first category's quotes.
func briefInput(w models.WeatherReading, news []models.NewsItem, quotes []models.StockQuote) (models.BriefInput, error) {
	wj, err := json.Marshal(w)
	if err != nil {
		return models.BriefInput{}, fmt.Errorf("encode weather: %w", err)
	}
	nj, err := json.Marshal(news)
	if err != nil {
		return models.BriefInput{}, fmt.Errorf("encode news: %w", err)
	}
	if quotes == nil {
		quotes = []models.StockQuote{}
	}
	sj, err := json.Marshal(quotes)
	if err != nil {
		return models.BriefInput{}, fmt.Errorf("encode stocks: %w", err)
	}
	return models.BriefInput{Weather: string(wj), News: string(nj), Stocks: string(sj)}, nil
}

// Apply folds a finished fetch into the board. It reports false when the
// update was superseded by a newer trigger and discarded.
func (b *Board) Apply(u Update) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return u.apply(b)
}

type weatherUpdate struct {
	seq uint64
	res models.Result[models.WeatherReading]
}

func (u weatherUpdate) apply(b *Board) bool {
	return settleLocked(b, "weather", &b.weather, u.seq, u.res, WeatherErrorTitle)
}

type newsUpdate struct {
	seq uint64
	res models.Result[[]models.NewsItem]
}

func (u newsUpdate) apply(b *Board) bool {
	return settleLocked(b, "news", &b.news, u.seq, u.res, NewsErrorTitle)
}

type stocksUpdate struct {
	seq uint64
	res models.Result[models.StocksReport]
}

func (u stocksUpdate) apply(b *Board) bool {
	return settleLocked(b, "stocks", &b.stocks, u.seq, u.res, StocksErrorTitle)
}

type briefUpdate struct {
	seq uint64
	res models.Result[models.Brief]
}

func (u briefUpdate) apply(b *Board) bool {
	title := BriefErrorTitle
	if u.res.MissingData {
		title = MissingDataTitle
	}
	text := models.Result[string]{Data: u.res.Data.Brief, Error: u.res.Error}
	return settleLocked(b, "brief", &b.brief, u.seq, text, title)
}

// settleLocked applies res to p and raises a notice on failure. Must be called with mu held.
func settleLocked[T any](b *Board, panel string, p *Panel[T], seq uint64, res models.Result[T], title string) bool {
	if !p.settle(seq, res) {
		b.logger.Debug("discarding stale result", zap.String("panel", panel), zap.Uint64("seq", seq))
		return false
	}
	if !res.OK() {
		b.notifyLocked(title, res.Error)
	}
	return true
}

func (b *Board) notifyLocked(title, description string) {
	b.notices = append(b.notices, Notice{Title: title, Description: description})
}

// TakeNotices returns pending notices and clears them.
func (b *Board) TakeNotices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

// Snapshot copies the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Settings: b.settings,
		Weather:  b.weather,
		News:     b.news,
		Stocks:   b.stocks,
		Brief:    b.brief,
	}
	s.Settings.Stocks = append([]string(nil), b.settings.Stocks...)
	s.EmbedURL, s.PlaylistLoaded = playlist.EmbedURL(b.settings.SpotifyURL)
	return s
}

// SaveLocation validates and stores a new location, then re-triggers every feed.
func (b *Board) SaveLocation(ctx context.Context, location string) ([]Job, error) {
	loc, err := b.limits.Location(location)
	if err != nil {
		return nil, err
	}
	if err := b.prefs.SetLocation(ctx, loc); err != nil {
		return nil, b.saveFailed("location", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings.Location = loc
	return b.refreshLocked(), nil
}

// SaveStocks parses comma-separated input, stores the symbols (duplicates kept)
// and re-triggers every feed. A list the server would reject is not saved.
func (b *Board) SaveStocks(ctx context.Context, input string) ([]Job, error) {
	symbols := preferences.ParseSymbols(input)
	if err := b.limits.Symbols(symbols); err != nil {
		return nil, err
	}
	if err := b.prefs.SetStocks(ctx, symbols); err != nil {
		return nil, b.saveFailed("stocks", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings.Stocks = symbols
	return b.refreshLocked(), nil
}

// SaveSpotifyURL stores the playlist link. Nothing is re-fetched.
func (b *Board) SaveSpotifyURL(ctx context.Context, url string) error {
	if err := b.prefs.SetSpotifyURL(ctx, url); err != nil {
		return b.saveFailed("spotify-url", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings.SpotifyURL = url
	return nil
}

func (b *Board) saveFailed(key string, err error) error {
	b.logger.Warn("saving preference failed", zap.String("key", key), zap.Error(err))
	b.mu.Lock()
	b.notifyLocked(SettingsErrorTitle, "Could not save "+key+". Please try again.")
	b.mu.Unlock()
	return fmt.Errorf("save %s: %w", key, err)
}
