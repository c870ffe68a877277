package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pion/turn/v4"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/connections"
	"ws-class-server/pkg/db"
	"ws-class-server/pkg/metrics"
	"ws-class-server/pkg/room"
	"ws-class-server/pkg/sfu"
	"ws-class-server/pkg/signaling"
	"ws-class-server/pkg/turnserver"
	"ws-class-server/pkg/whiteboard"
)

const shutdownTimeout = 5 * time.Second

// Components are the outer boundaries the signaling core runs against.
type Components struct {
	Directory signaling.ClassDirectory
	Boards    whiteboard.Store
	Engine    signaling.MediaEngine
}

// Server wires the signaling socket, the dispatcher and the media stack
// into one process.
type Server struct {
	conf       *config.Config
	logger     *zap.SugaredLogger
	hub        *connections.Hub
	dispatcher *signaling.Dispatcher
	handler    http.Handler
	httpServer *http.Server

	// closers run in reverse order on shutdown
	closers []func()
}

// New builds a server around already constructed components.
func New(conf *config.Config, c Components, logger *zap.SugaredLogger) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := connections.NewHub(conf.Signaling, logger.Named("connections"))
	dispatcher := signaling.NewDispatcher(signaling.Params{
		Registry:           room.NewRegistry(),
		Waiting:            room.NewWaitingQueue(),
		Boards:             c.Boards,
		Engine:             c.Engine,
		Directory:          c.Directory,
		Sink:               hub,
		Logger:             logger.Named("signaling"),
		Metrics:            metrics.New(reg),
		MediaTimeout:       conf.RTC.MediaTimeout,
		MaxIncomingBitrate: conf.RTC.MaxIncomingBitrate,
		IceServers:         turnserver.ClientICEServers(conf),
	})
	hub.SetHandler(dispatcher)

	metrics.RegisterGauges(reg, metrics.Gauges{
		Rooms:       dispatcher.Registry().Len,
		Waiting:     dispatcher.Waiting().Total,
		Connections: hub.Count,
	})

	s := &Server{
		conf:       conf,
		logger:     logger,
		hub:        hub,
		dispatcher: dispatcher,
	}

	router := mux.NewRouter()
	router.Handle("/ws", hub)
	router.HandleFunc("/healthz", s.healthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.handler = router

	s.httpServer = &http.Server{
		Addr:              conf.ListenAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Build connects the configured backends and returns a ready server.
func Build(ctx context.Context, conf *config.Config, logger *zap.SugaredLogger) (*Server, error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var directory signaling.ClassDirectory
	if conf.Database.URL != "" {
		database, closeDB, err := db.Connect(ctx, conf.Database, logger.Named("db"))
		if err != nil {
			return nil, err
		}
		closers = append(closers, closeDB)
		directory = database
	} else {
		logger.Warnw("no database configured, every class id is accepted")
		directory = db.NewStaticDirectory()
	}

	var boards whiteboard.Store = whiteboard.NewMemoryStore()
	if conf.Redis.Address != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{conf.Redis.Address},
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			cleanup()
			return nil, fmt.Errorf("connecting to redis at %s: %w", conf.Redis.Address, err)
		}
		closers = append(closers, func() { _ = client.Close() })
		boards = whiteboard.NewRedisStore(client, conf.Redis.KeyPrefix, 0)
		logger.Infow("whiteboards stored in redis", "address", conf.Redis.Address)
	}

	turnServer, err := turnserver.NewTurnServer(conf, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	if turnServer != nil {
		closers = append(closers, closeTurn(turnServer, logger))
	}

	engine, err := sfu.NewEngine(conf.RTC, iceServers(conf), logger.Named("sfu"))
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, engine.Shutdown)

	s := New(conf, Components{Directory: directory, Boards: boards, Engine: engine}, logger)
	s.closers = closers
	return s, nil
}

func closeTurn(server *turn.Server, logger *zap.SugaredLogger) func() {
	return func() {
		if err := server.Close(); err != nil {
			logger.Warnw("closing TURN server", "error", err)
		}
	}
}

// iceServers are used by the server's own gatherers to find their
// reflexive addresses.
func iceServers(conf *config.Config) []webrtc.ICEServer {
	if len(conf.RTC.STUNServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: conf.RTC.STUNServers}}
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled or the listener fails, then shuts
// everything down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Infow("starting class server", "address", s.httpServer.Addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.shutdown()
	})
	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Infow("shutting down")
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	return err
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
