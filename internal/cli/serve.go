package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/bot"
	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/config"
	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/game"
	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/ws"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	ConfigPath string
	Addr       string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Long: `Run the websocket game server until interrupted.

Settings come from --config (YAML) and are overridden by environment
variables such as PORT, ORIGIN_ALLOWLIST and SETGAME_BOTS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.Addr == "" {
				opts.Addr = ":" + cfg.Server.Port
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel, rootOpts.Verbose)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts.Addr, log)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default :$PORT)")

	return cmd
}

// server is everything serve builds from a config, before it listens.
type server struct {
	engine *game.Engine
	hub    *ws.Hub
	http   *http.Server
}

func newServer(cfg *config.Config, addr string, log *slog.Logger) *server {
	hub := ws.NewHub(cfg.Server.OriginAllowlist, log)
	engine := game.New(
		game.WithBroadcaster(hub),
		game.WithLogger(log),
		game.WithCountdown(cfg.Game.Countdown),
		game.WithTickInterval(cfg.Game.Tick),
		game.WithStaleAfter(cfg.Game.StaleAfter),
		game.WithSweepInterval(cfg.Game.SweepInterval),
		game.WithRecentClaimsCap(cfg.Game.RecentClaimsCap),
		game.WithPlacements(cfg.Game.Placements),
	)
	hub.Attach(engine)

	return &server{
		engine: engine,
		hub:    hub,
		http: &http.Server{
			Addr:              addr,
			Handler:           newHandler(hub, cfg.Server.OriginAllowlist),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, addr string, log *slog.Logger) error {
	s := newServer(cfg, addr, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	waitBots := func() {}
	if cfg.Bots.Count > 0 {
		src, err := bot.LoadScript(cfg.Bots.Script)
		if err != nil {
			return err
		}
		waitBots, err = bot.Spawn(ctx, cfg.Bots.Count, s.engine, src, cfg.Bots.ThinkTime, log)
		if err != nil {
			return err
		}
		log.Info("bots joined", "count", cfg.Bots.Count)
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		_ = s.engine.Run(ctx)
	}()
	go s.hub.Run(ctx)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		listenErr <- s.http.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			err = fmt.Errorf("listen %s: %w", addr, err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if serr := s.http.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", "error", serr)
	}
	cancel()
	waitBots()
	<-engineDone
	return err
}

// newHandler mounts the game endpoints behind the CORS filter.
func newHandler(hub *ws.Hub, allow []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/state", hub.ServeState)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return cors(allow, mux)
}

func cors(allow []string, next http.Handler) http.Handler {
	allowSet := map[string]struct{}{}
	for _, a := range allow {
		if a != "" {
			allowSet[a] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowSet[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
