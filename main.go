package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facegram/data/database/mgo/mongoutil"
	"facegram/global"
	"facegram/logger"
	mid "facegram/middleware"
	midsec "facegram/middleware/security"
	chatapi "facegram/module/chat"
	"facegram/module/chat/service"
	"facegram/service/chat"
	"facegram/service/chat/handlers"
	"facegram/service/kafka"
	"facegram/service/metrics"
	mgoSrv "facegram/service/mgo"
	"facegram/service/natsx"
	"facegram/service/storage"
	redis "facegram/service/storage/redis"
	"facegram/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg, err := global.Load()
	if err != nil {
		logger.Error("load config", zap.Error(err))
		os.Exit(1)
	}
	log := logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway stopped", zap.Error(err))
		os.Exit(1)
	}
}

type gateway struct {
	cfg global.Config
	log *zap.Logger
	met *metrics.Metrics

	hub       *chat.Hub
	mirror    *storage.PresenceMirror
	sessions  *mgoSrv.SessionLog
	publisher service.EventPublisher
	store     service.MessageStore

	closers []func() // run in reverse on shutdown
}

func run(ctx context.Context, cfg global.Config, log *zap.Logger) error {
	g := &gateway{cfg: cfg, log: log, met: metrics.New()}
	defer g.close()

	if err := g.connectBackends(ctx); err != nil {
		return err
	}

	// 1) hub + observers
	opts := []chat.Option{
		chat.WithLogger(log.Named("hub")),
		chat.WithMetrics(g.met),
		chat.WithCloseReplaced(cfg.CloseReplaced),
	}
	if g.mirror != nil {
		opts = append(opts, chat.WithPresenceObserver(g.mirror))
	}
	if g.sessions != nil {
		opts = append(opts, chat.WithSessionObserver(g.sessions))
	}
	g.hub = chat.NewHub(opts...)
	if g.mirror != nil {
		g.mirror.Start()
		g.closers = append(g.closers, g.mirror.Close)
	}
	if g.sessions != nil {
		g.sessions.Start()
		g.closers = append(g.closers, g.sessions.Close)
	}

	// 2) websocket endpoint
	wsConf := chat.ServerConf{
		Conn: chat.ConnConf{
			SendQueueSize: cfg.SendQueueSize,
			PingInterval:  cfg.PingInterval,
			PongWait:      cfg.PongWait,
			WriteWait:     cfg.WriteWait,
			MaxMessage:    cfg.MaxMessageBytes,
		},
		AllowedOrigins: cfg.Origins(),
		RequireAuth:    cfg.AuthRequired,
	}
	var authOpts *midsec.Options
	if cfg.JWTSecret != "" {
		authOpts = midsec.DefaultOptions([]byte(cfg.JWTSecret))
		wsConf.Authenticate = midsec.Authenticate(authOpts)
	}
	ws := chat.NewServer(g.hub, handlers.RegisterAll(chat.NewDispatcher()), wsConf)

	// 3) http routes
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), mid.NewManager(mid.CORS(cfg.Origins())).Use())
	r.GET("/ws", ws.HandleWS)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.met.Registry, promhttp.HandlerOpts{})))

	switch {
	case g.store == nil:
		log.Warn("DATABASE_URL not set, conversation REST routes disabled")
	case authOpts == nil:
		log.Warn("JWT_SECRET not set, conversation REST routes disabled")
	default:
		svc := service.NewMessageService(g.store,
			service.WithPublisher(g.publisher),
			service.WithNotifier(g.hub),
			service.WithMetrics(g.met),
			service.WithLogger(log.Named("message")),
		)
		api := &chatapi.Server{Svc: svc, Online: g.hub}
		api.Routes(r, midsec.Middleware(authOpts))
	}

	// 4) grpc health
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.GRPCAddr, err)
	}
	gs := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		log.Info("[gRPC] listening", zap.String("addr", cfg.GRPCAddr))
		if err := gs.Serve(lis); err != nil {
			log.Error("gRPC server failed", zap.Error(err))
		}
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("[HTTP] listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		log.Error("HTTP server failed", zap.Error(err))
	}

	// 5) drain: stop accepting, close every connection, flush observers
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	g.hub.Close()
	ws.Wait()
	gs.GracefulStop()
	return err
}

// connectBackends opens every configured backend. Each one is optional
// except Postgres for the REST routes.
func (g *gateway) connectBackends(ctx context.Context) error {
	cfg := g.cfg

	if cfg.DatabaseURL != "" {
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		g.closers = append(g.closers, pool.Close)
		pg := storage.NewPgStore(pool, ids.NewGenerator(cfg.NodeID))
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		g.store = pg
	}

	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		g.closers = append(g.closers, func() { _ = rdb.Close() })
		host, _ := os.Hostname()
		g.mirror = storage.NewPresenceMirror(storage.NewRedisPresence(rdb),
			storage.MirrorConf{Node: fmt.Sprintf("%s/%d", host, cfg.NodeID), TTL: cfg.PresenceTTL},
			g.snapshot, g.met, g.log.Named("presence"))
	}

	if cfg.MongoURI != "" {
		cli, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{Uri: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return err
		}
		g.closers = append(g.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = cli.Close(ctx)
		})
		g.sessions = mgoSrv.NewSessionLog(mgoSrv.NewMongoSessions(cli.GetDB()), 0, g.met, g.log.Named("session"))
	}

	switch cfg.EventBus {
	case global.EventBusNats:
		nc, err := natsx.NewNatsxClient(natsx.NatsxConfig{
			Servers: []string{cfg.NatsURL},
			Name:    "facegram",
			Mode:    natsx.ParseMode(cfg.NatsMode),
		})
		if err != nil {
			return err
		}
		g.closers = append(g.closers, func() { _ = nc.Close() })
		g.publisher = natsx.NewMessagePublisher(nc, cfg.NatsSubject)
	case global.EventBusKafka:
		kc := kafka.DefaultConfig(cfg.Brokers(), cfg.KafkaTopic)
		kc.Partitions = int32(cfg.KafkaPartitions)
		kc.ReplicationFactor = int16(cfg.KafkaReplication)
		p, err := kafka.NewMessageProducer(kc)
		if err != nil {
			return err
		}
		g.closers = append(g.closers, func() { _ = p.Close() })
		g.publisher = p
	}
	return nil
}

// snapshot feeds the presence refresh loop; nil until the hub exists.
func (g *gateway) snapshot() []string {
	if g.hub == nil {
		return nil
	}
	return g.hub.Snapshot()
}

func (g *gateway) close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
}
