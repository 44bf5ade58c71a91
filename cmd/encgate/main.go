// Command encgate runs the compressor/decompressor filter pair in
// front of a single upstream, as a net/http reverse proxy. It exists to
// exercise the filter pair end to end; production deployments are
// expected to wire internal/compressor and internal/decompressor into
// their own http.Handler chains directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wudi/encgate/config"
	"github.com/wudi/encgate/internal/compressor"
	"github.com/wudi/encgate/internal/decompressor"
	"github.com/wudi/encgate/internal/featuregate"
	"github.com/wudi/encgate/internal/logging"
	"github.com/wudi/encgate/internal/middleware"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/encgate.yaml", "Path to filter configuration file")
	listenAddr := flag.String("listen", ":8080", "Address the proxy listens on")
	metricsAddr := flag.String("metrics-listen", ":9090", "Address the Prometheus /metrics endpoint listens on")
	upstream := flag.String("upstream", "http://127.0.0.1:8081", "Upstream base URL the proxy forwards to")
	logOutput := flag.String("log-output", "stdout", "Log output: stdout, stderr, or a file path")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("encgate %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	logger, closer, err := logging.New(logging.Config{Level: *logLevel, Output: *logOutput})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	logging.SetGlobal(logger)
	if closer != nil {
		defer closer.Close()
	}
	defer logging.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logging.Info("starting encgate",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.Int("routes", cfg.Routes.Len()))

	handler, err := buildHandler(cfg, *upstream)
	if err != nil {
		log.Fatalf("Failed to build handler: %v", err)
	}

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              *metricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logging.Info("listening", zap.String("addr", *listenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("proxy server: %w", err)
		}
	}()
	go func() {
		logging.Info("metrics listening", zap.String("addr", *metricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-quit:
		logging.Info("shutting down gracefully")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("proxy shutdown error", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logging.Warn("metrics shutdown error", zap.Error(err))
	}
}

// buildHandler resolves the per-route filter chain named by the
// X-Route-Id request header (falling back to "default") and wraps a
// reverse proxy to upstream with that route's compressor/decompressor
// middlewares: compressors outermost (closest to the client), then
// decompressors, then the proxy itself.
func buildHandler(cfg *config.Config, upstream string) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)

	chains := make(map[string]http.Handler, cfg.Routes.Len())
	var buildErr error
	cfg.Routes.Range(func(routeID string, rf config.RouteFilters) bool {
		chain, err := buildRouteChain(rf)
		if err != nil {
			buildErr = fmt.Errorf("route %q: %w", routeID, err)
			return false
		}
		chains[routeID] = chain.Then(proxy)
		return true
	})
	if buildErr != nil {
		return nil, buildErr
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routeID := r.Header.Get("X-Route-Id")
		if routeID == "" {
			routeID = "default"
		}
		h, ok := chains[routeID]
		if !ok {
			http.Error(w, "unknown route", http.StatusNotFound)
			return
		}
		h.ServeHTTP(w, r)
	}), nil
}

func buildRouteChain(rf config.RouteFilters) (*middleware.Chain, error) {
	gate := featuregate.StaticGate(true)

	var mws []middleware.Middleware
	for _, cc := range rf.Compressors {
		mw, err := compressor.New(cc, gate)
		if err != nil {
			return nil, fmt.Errorf("compressor %q: %w", cc.ContentEncoding, err)
		}
		mws = append(mws, mw)
	}
	for _, dc := range rf.Decompressors {
		mw, err := decompressor.New(dc, gate)
		if err != nil {
			return nil, fmt.Errorf("decompressor %q: %w", dc.ContentEncoding, err)
		}
		mws = append(mws, mw)
	}
	return middleware.NewChain(mws...), nil
}
