package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/config"
	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/game"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "setgame", cmd.Use)

	for _, name := range []string{"serve", "check"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr string
	}{
		{args: []string{"1", "2", "3"}, want: "1 2 3 is a set\n"},
		{args: []string{"1", "2", "4"}, want: "1 2 4 is not a set\n"},
		{args: []string{"1", "2"}, want: "1 2 -> 3\n"},
		{args: []string{"81", "81"}, want: "81 81 -> 81\n"},
		{args: []string{"0", "2"}, wantErr: "out of range"},
		{args: []string{"1", "x", "3"}, wantErr: "not a number"},
		{args: []string{"1"}, wantErr: "accepts between 2 and 3 arg(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.want+tt.wantErr, func(t *testing.T) {
			out, err := execute(t, append([]string{"check"}, tt.args...)...)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestServeCommand_BadConfig(t *testing.T) {
	_, err := execute(t, "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	assert.False(t, newLogger(io.Discard, "info", false).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newLogger(io.Discard, "debug", false).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newLogger(io.Discard, "warn", true).Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger(io.Discard, "warn", false).Enabled(ctx, slog.LevelInfo))
}

func TestHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Server.OriginAllowlist = []string{"https://play.example"}
	s := newServer(&cfg, ":0", quiet())

	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Origin", "https://play.example")
	rec = httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://play.example", rec.Header().Get("Access-Control-Allow-Origin"))
	var st game.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, game.StatusPlaying, st.Status)

	req = httptest.NewRequest(http.MethodOptions, "/state", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Bots.Count = 2
	cfg.Bots.ThinkTime = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runServe(ctx, &cfg, "127.0.0.1:0", quiet()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunServe_BadBotScript(t *testing.T) {
	cfg := config.Default()
	cfg.Bots.Count = 1
	cfg.Bots.Script = filepath.Join(t.TempDir(), "missing.lua")

	err := runServe(context.Background(), &cfg, "127.0.0.1:0", quiet())
	require.ErrorContains(t, err, "read bot script")
}
