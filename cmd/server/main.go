package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/api"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/hub"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/metrics"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/permissions"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/registry"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/relay"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/roomsync"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/routers"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/status"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/utils"
)

var (
	defaultRedisAddr = "redis:6379"
	defaultPort      = "8080"

	listenAndServe = http.ListenAndServe
	exitFunc       = defaultExit
	exit           = os.Exit
)

func defaultExit(err error) {
	log.Printf("roomsync-svc: %v", err)
	exit(1)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func run(ctx context.Context) error {
	logger := utils.GetLogger()
	defer func() { _ = logger.Sync() }()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = defaultRedisAddr
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	// ROOM_TTL enables idle-room eviction; rooms live forever when unset.
	var roomTTL time.Duration
	if v := os.Getenv("ROOM_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid ROOM_TTL", zap.String("value", v), zap.Error(err))
			return err
		}
		roomTTL = d
	}

	reg := registry.New(roomTTL)
	perms := permissions.NewTable()
	connHub := hub.New()
	st := status.NewStore(rdb)

	coord := roomsync.New(reg, perms, connHub, logger)
	coord.SetStatusStore(st)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rl := relay.New(rdb, logger, coord.ApplyRemote)
	coord.SetRelay(rl)
	rl.Start(ctx)
	defer rl.Stop()

	if roomTTL > 0 {
		go reg.StartSweeper(ctx, roomTTL/2)
	}

	h := api.NewHandlers(logger, coord, connHub, perms, st)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware("roomsync"),
	)

	r.Mount("/", routers.New(h))

	r.Get("/healthz", healthHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	addr := ":" + port
	log.Printf("roomsync-svc listening on %s", addr)
	return listenAndServe(addr, r)
}

func main() {
	if err := run(context.Background()); err != nil {
		exitFunc(err)
	}
}
