package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/apiclient"
	"github.com/kjstillabower/glancecast/internal/dashboard"
	"github.com/kjstillabower/glancecast/internal/observability"
	"github.com/kjstillabower/glancecast/internal/preferences"
	"github.com/kjstillabower/glancecast/internal/tui"
	"github.com/kjstillabower/glancecast/internal/validation"
)

const defaultServer = "http://localhost:8080"

type options struct {
	server     string
	timeout    time.Duration
	logFile    string
	localPrefs string
	limits     validation.Limits
}

// session is everything a command needs, built from the persistent flags.
type session struct {
	board  *dashboard.Board
	logger *zap.Logger
	close  func()
}

func rootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "glance",
		Short:         "A glanceable dashboard of weather, news, stocks and a daily brief",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts)
			if err != nil {
				return err
			}
			defer s.close()
			p := tea.NewProgram(tui.New(cmd.Context(), s.board, s.logger), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}

	server := os.Getenv("GLANCE_SERVER")
	if server == "" {
		server = defaultServer
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", server, "glancecast server URL (env GLANCE_SERVER)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file (default: no logging)")
	flags.StringVar(&opts.localPrefs, "local-prefs", "", "keep preferences in this SQLite file instead of on the server")
	defaults := validation.DefaultLimits()
	flags.IntVar(&opts.limits.LocationMaxLength, "max-location-length", defaults.LocationMaxLength, "longest location the client will save; match the server's validation.location_max_length")
	flags.IntVar(&opts.limits.MaxSymbols, "max-symbols", defaults.MaxSymbols, "most stock symbols the client will save; match the server's validation.max_symbols")

	root.AddCommand(showCmd(opts), setCmd(opts))
	return root
}

func open(opts *options) (*session, error) {
	logger := zap.NewNop()
	if opts.logFile != "" {
		l, err := observability.NewFileLogger(opts.logFile)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		logger = l
	}

	client, err := apiclient.New(opts.server, opts.timeout, apiclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var store preferences.Store = apiclient.NewStore(client)
	closeStore := func() error { return nil }
	if opts.localPrefs != "" {
		sqlite, err := preferences.NewSQLiteStore(opts.localPrefs)
		if err != nil {
			return nil, fmt.Errorf("local preferences: %w", err)
		}
		store, closeStore = sqlite, sqlite.Close
	}

	board := dashboard.New(client, preferences.NewRepository(store), opts.limits, logger)
	return &session{
		board:  board,
		logger: logger,
		close: func() {
			if err := closeStore(); err != nil {
				logger.Warn("closing preferences", zap.Error(err))
			}
			_ = logger.Sync()
		},
	}, nil
}

func showCmd(opts *options) *cobra.Command {
	var withBrief, asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Fetch every feed once and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			s.board.Run(ctx, s.board.Start(ctx)...)
			if withBrief {
				s.board.Run(ctx, s.board.GenerateBrief())
			}
			for _, n := range s.board.TakeNotices() {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Title, n.Description)
			}

			snap := s.board.Snapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&withBrief, "brief", false, "also compose the daily brief")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func setCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <location|stocks|spotify-url> <value>",
		Short: "Save one setting",
		Long:  "Save one setting. Stocks take comma-separated symbols, e.g. \"AAPL, MSFT\".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			key, value := args[0], args[1]
			switch key {
			case preferences.LocationKey.Name():
				_, err = s.board.SaveLocation(ctx, value)
			case preferences.StocksKey.Name():
				_, err = s.board.SaveStocks(ctx, value)
			case preferences.SpotifyURLKey.Name():
				err = s.board.SaveSpotifyURL(ctx, strings.TrimSpace(value))
			default:
				return fmt.Errorf("unknown setting %q (want one of %s)", key, strings.Join(preferences.KeyNames(), ", "))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", key)
			return nil
		},
	}
}

func printSnapshot(w io.Writer, snap dashboard.Snapshot, now time.Time) {
	face := dashboard.ReadClock(now, snap.Settings.Location)
	fmt.Fprintf(w, "%s  %s  (%s %s)\n%s\n\n", face.Label, face.Time, dashboard.SecondaryClockLocation, face.Secondary, face.Date)

	fmt.Fprintln(w, "Weather")
	if snap.Weather.Status == dashboard.Loaded {
		r := snap.Weather.Data
		fmt.Fprintf(w, "  %.0f°%s %s\n", r.Temperature, r.Unit, r.Condition)
		for _, h := range r.Hourly {
			fmt.Fprintf(w, "  %-6s %.0f°%s %s\n", h.Time, h.Temperature, r.Unit, h.Condition)
		}
	} else {
		fmt.Fprintf(w, "  %s\n", snap.Weather.Status)
	}

	fmt.Fprintln(w, "\nNews")
	if snap.News.Status == dashboard.Loaded {
		for _, item := range snap.News.Data {
			fmt.Fprintf(w, "  • %s (%s, %s)\n", item.Title, item.Source, item.Time)
		}
	} else {
		fmt.Fprintf(w, "  %s\n", snap.News.Status)
	}

	fmt.Fprintln(w, "\nStocks")
	if cat, ok := snap.Stocks.Data.First(); snap.Stocks.Status == dashboard.Loaded && ok {
		for _, q := range cat.Stocks {
			fmt.Fprintf(w, "  %-6s %10.2f %s %s\n", q.Symbol, q.Price, q.Currency, q.Change)
		}
	} else {
		fmt.Fprintf(w, "  %s\n", snap.Stocks.Status)
	}

	if snap.Brief.Status == dashboard.Loaded {
		fmt.Fprintf(w, "\nDaily Brief\n%s\n", snap.Brief.Data)
	}
	if snap.PlaylistLoaded {
		fmt.Fprintf(w, "\nPlaylist %s\n", snap.EmbedURL)
	}
}

