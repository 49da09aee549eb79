// README: Entry point; loads config, wires infrastructure and services,
// starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"roadaid/internal/config"
	httptransport "roadaid/internal/http"
	"roadaid/internal/infra"
	"roadaid/internal/maps"
	"roadaid/internal/modules/assignment"
	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/notification"
	"roadaid/internal/modules/request"
	"roadaid/internal/modules/sos"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("database connect failed")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	pendingIndex := request.NewGeoStore(redisClient)

	var pusher notification.PushSender
	if cfg.Firebase.ProjectID != "" {
		fcm, err := infra.NewMessagingClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			logrus.WithError(err).Fatal("firebase init failed")
		}
		pusher = notification.NewPusher(fcm)
	} else {
		logrus.Warn("ROADAID_FIREBASE_PROJECT_ID not set, push delivery disabled")
	}

	var eta assignment.TravelEstimator
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logrus.WithError(err).Fatal("maps init failed")
		}
		eta = routeSvc
	} else {
		logrus.Warn("GOOGLE_MAPS_API_KEY not set, falling back to straight-line estimates")
	}

	dir := directory.NewStore(dbPool)
	notificationSvc := notification.NewService(notification.NewStore(dbPool), pusher)

	requestSvc := request.NewService(request.NewStore(dbPool), pendingIndex, dir, dir, notificationSvc)
	if err := requestSvc.RebuildPendingIndex(ctx); err != nil {
		logrus.WithError(err).Warn("pending geo index rebuild failed, nearby lookups will scan all pending requests")
	}
	assignmentStore := assignment.NewStore(dbPool)
	assignmentSvc := assignment.NewService(assignmentStore, request.NewStore(dbPool), dir, dir, pendingIndex, eta, notificationSvc)
	sosSvc := sos.NewService(sos.NewStore(dbPool), dir, dir, notificationSvc, pendingIndex)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Requests:        requestSvc,
		Assignments:     assignmentSvc,
		Alerts:          sosSvc,
		Providers:       dir,
		DefaultRadiusKm: cfg.Nearby.DefaultRadiusKm,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logrus.WithField("addr", cfg.HTTP.Addr).Info("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Fatal("server stopped")
	}
}
