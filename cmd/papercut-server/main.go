package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercut-news/go-papercut/internal/auth"
	"github.com/papercut-news/go-papercut/internal/config"
	"github.com/papercut-news/go-papercut/internal/eventlog"
	"github.com/papercut-news/go-papercut/internal/metrics"
	"github.com/papercut-news/go-papercut/internal/nntp"
	"github.com/papercut-news/go-papercut/internal/storage"
	"github.com/papercut-news/go-papercut/internal/storage/cached"
	"github.com/papercut-news/go-papercut/internal/storage/maildir"
	"github.com/papercut-news/go-papercut/internal/storage/proxy"
	"github.com/papercut-news/go-papercut/internal/web"
)

var Prof *prof.Profiler

func main() {
	log.Printf("Starting Papercut NNTP server (version: %s)", nntp.Version)

	var (
		configPath = flag.String("config", "", "Path to papercut.yaml (default: standard search path)")
		hostname   = flag.String("hostname", "", "Override nntp_hostname")
		port       = flag.Int("port", 0, "Override nntp_port")
		webListen  = flag.String("weblisten", "", "Override web_listen (host:port for the status server)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *hostname != "" {
		cfg.Hostname = *hostname
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *webListen != "" {
		cfg.WebListen = *webListen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if cfg.ProfilerListen != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(cfg.ProfilerListen)
	}

	router, err := buildRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to build backend router: %v", err)
	}

	var authenticator auth.Authenticator
	if cfg.AuthEnabled() {
		store, err := auth.Open(cfg.AuthDBPath)
		if err != nil {
			log.Fatalf("Failed to open auth backend: %v", err)
		}
		defer store.Close()
		authenticator = store
	}

	events := eventlog.New(cfg.LogFile)

	var collector metrics.Collector = &metrics.NoopCollector{}
	var registry *prometheus.Registry
	if cfg.WebListen != "" {
		registry = prometheus.NewRegistry()
		collector = metrics.NewPrometheusCollector(registry)
	}

	wg := &sync.WaitGroup{}
	server, err := nntp.NewServer(cfg, router, authenticator, events, collector, wg)
	if err != nil {
		log.Fatalf("Failed to create NNTP server: %v", err)
	}
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start NNTP server: %v", err)
	}

	if cfg.WebListen != "" {
		webServer := web.NewServer(server, registry)
		go func() {
			if err := webServer.Start(cfg.WebListen); err != nil {
				log.Printf("Status web server stopped: %v", err)
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Printf("Received signal %v, shutting down", sig)

	server.Stop()
	wg.Wait()
	log.Println("Shutdown complete")
}

// buildRouter constructs the backend registry from the configuration: the
// global backend under the reserved prefix, plus one backend per
// configured hierarchy.
func buildRouter(cfg *config.Config) (*storage.Router, error) {
	router := storage.NewRouter()

	if cfg.StorageBackend != "" {
		backend, err := buildBackend(cfg, cfg.StorageBackend, config.Hierarchy{}, storage.DefaultHierarchy)
		if err != nil {
			return nil, fmt.Errorf("global backend: %w", err)
		}
		if err := router.Register(storage.DefaultHierarchy, backend); err != nil {
			return nil, err
		}
	}

	for name, h := range cfg.Hierarchies {
		backend, err := buildBackend(cfg, cfg.BackendName(h), h, name)
		if err != nil {
			return nil, fmt.Errorf("hierarchy %s: %w", name, err)
		}
		if err := router.Register(name, backend); err != nil {
			return nil, err
		}
	}
	return router, nil
}

// buildBackend instantiates one backend by module name, wrapping it in the
// result cache when enabled.
func buildBackend(cfg *config.Config, name string, h config.Hierarchy, hierarchy string) (storage.Backend, error) {
	var (
		backend storage.Backend
		err     error
	)
	switch name {
	case "maildir":
		path := h.MaildirPath
		if path == "" {
			path = cfg.MaildirPath
		}
		serverType := h.ServerType
		if serverType == "" {
			serverType = cfg.ServerType
		}
		backend, err = maildir.New(maildir.Config{
			Path:     path,
			Hostname: cfg.Hostname,
			ReadOnly: serverType == "read-only",
		})
	case "forwarding_proxy", "proxy":
		host := h.ForwardHost
		if host == "" {
			host = cfg.ForwardHost
		}
		backend, err = proxy.New(proxy.Config{Host: host})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", name)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheEnabled() {
		backend, err = cached.New(backend, cached.Config{
			Path: filepath.Join(cfg.CachePath, hierarchy),
			TTL:  cfg.CacheTTL(),
		})
		if err != nil {
			return nil, err
		}
	}
	return backend, nil
}
