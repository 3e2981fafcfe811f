package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/events"
	"github.com/USA-RedDragon/crashgate/internal/gate"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Server struct {
	ipv4Server        *http.Server
	ipv6Server        *http.Server
	metricsIPV4Server *http.Server
	metricsIPV6Server *http.Server
	stopped           atomic.Bool
	config            *config.Config
}

// Deps are shared with every request handler. DB is nil when history is disabled.
type Deps struct {
	Gate   *gate.Gate
	Events *events.EventBus
	DB     *gorm.DB
}

const defTimeout = 120 * time.Second

type Router struct {
	*gin.Engine
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasSuffix(req.URL.Path, "/") {
		req.URL.Path = filepath.Clean(req.URL.Path)
	}
	r.Engine.ServeHTTP(w, req)
}

// NewRouter builds the API handler without any listeners.
func NewRouter(config *config.Config, deps Deps) *Router {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	if config.HTTP.PProf.Enabled {
		pprof.Register(r)
	}

	applyMiddleware(r, config, "api", deps)
	applyRoutes(r)
	return &Router{Engine: r}
}

func NewServer(config *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	if config.HTTP.PProf.Enabled {
		gin.SetMode(gin.DebugMode)
	}

	router := NewRouter(config, deps)

	var metricsIPV4Server *http.Server
	var metricsIPV6Server *http.Server

	if config.HTTP.Metrics.Enabled {
		metricsRouter := gin.New()
		applyMiddleware(metricsRouter, config, "metrics", deps)

		metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))
		metricsIPV4Server = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.HTTP.Metrics.IPV4Host, config.HTTP.Metrics.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           metricsRouter,
		}
		metricsIPV6Server = &http.Server{
			Addr:              fmt.Sprintf("[%s]:%d", config.HTTP.Metrics.IPV6Host, config.HTTP.Metrics.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           metricsRouter,
		}
	}

	return &Server{
		ipv4Server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.HTTP.IPV4Host, config.HTTP.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           router,
		},
		ipv6Server: &http.Server{
			Addr:              fmt.Sprintf("[%s]:%d", config.HTTP.IPV6Host, config.HTTP.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           router,
		},
		metricsIPV4Server: metricsIPV4Server,
		metricsIPV6Server: metricsIPV6Server,
		config:            config,
	}
}

func (s *Server) serve(name string, srv *http.Server, network string, waitGrp *sync.WaitGroup) error {
	if srv == nil {
		return nil
	}
	listener, err := net.Listen(network, srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	waitGrp.Add(1)
	go func() {
		defer waitGrp.Done()
		if err := srv.Serve(listener); err != nil && !s.stopped.Load() {
			slog.Error(name+" server error", "error", err.Error())
		}
	}()
	return nil
}

func (s *Server) Start() error {
	waitGrp := sync.WaitGroup{}
	if err := s.serve("HTTP IPv4", s.ipv4Server, "tcp4", &waitGrp); err != nil {
		return err
	}
	if err := s.serve("HTTP IPv6", s.ipv6Server, "tcp6", &waitGrp); err != nil {
		return err
	}
	slog.Info("HTTP server started", "ipv4", s.config.HTTP.IPV4Host, "ipv6", s.config.HTTP.IPV6Host, "port", s.config.HTTP.Port)

	if s.config.HTTP.Metrics.Enabled {
		if err := s.serve("Metrics IPv4", s.metricsIPV4Server, "tcp4", &waitGrp); err != nil {
			return err
		}
		if err := s.serve("Metrics IPv6", s.metricsIPV6Server, "tcp6", &waitGrp); err != nil {
			return err
		}
		slog.Info("Metrics server started", "ipv4", s.config.HTTP.Metrics.IPV4Host, "ipv6", s.config.HTTP.Metrics.IPV6Host, "port", s.config.HTTP.Metrics.Port)
	}

	go func() {
		waitGrp.Wait()
	}()
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 240*time.Second)
	defer cancel()

	s.stopped.Store(true)

	errGrp := errgroup.Group{}
	for _, srv := range []*http.Server{s.ipv4Server, s.ipv6Server, s.metricsIPV4Server, s.metricsIPV6Server} {
		if srv == nil {
			continue
		}
		errGrp.Go(func() error {
			return srv.Shutdown(ctx)
		})
	}

	return errGrp.Wait()
}
