package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/ayusman/natya/internal/app"
	"github.com/ayusman/natya/internal/config"
	"github.com/ayusman/natya/internal/logger"
	"github.com/ayusman/natya/internal/metrics"
	"github.com/ayusman/natya/internal/server"
	"github.com/ayusman/natya/internal/store"
	"github.com/ayusman/natya/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "natya: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Named("main")

	dataDir, err := dataDir()
	if err != nil {
		return err
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "natya.db")
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(dataDir, "plugins")
	}

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	m := metrics.NewManager()

	appCfg, err := app.ConfigFrom(cfg, st, m)
	if err != nil {
		return err
	}
	application, err := app.New(ctx, appCfg)
	if err != nil {
		return fmt.Errorf("start recognition: %w", err)
	}
	defer application.Close()

	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir(dataDir)
	}
	if webDir != "" {
		log.Info(ctx, "serving static files", logger.String("dir", webDir))
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Recognizer: application,
		Plugins:    application.PluginManager(),
		Metrics:    m,
		Logger:     logger.Named("server"),
	})

	if !cfg.Tray {
		return srv.ListenAndServe(ctx, cfg.Addr)
	}

	// The tray owns the main thread; the server runs beside it.
	t := tray.New(tray.Handlers{
		Toggle: application.SetEnabled,
		Settings: func() {
			if err := openBrowser(settingsURL(cfg.Addr)); err != nil {
				log.Warn(ctx, "failed to open browser", logger.Error(err))
			}
		},
		Quit: stop,
	})
	application.OnRecognized(t.SetLastGesture)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.Addr)
		t.Quit()
	}()
	t.Run()
	stop()
	return <-errCh
}

func dataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".natya")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

// findWebDir searches "web", "../web", "../../web" and <dataDir>/web, and
// returns the first existing directory or "".
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
