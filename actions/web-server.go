package actions

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/logger"
)

// StatusServerConfig says where the status server listens. An empty Addr listens on all interfaces.
type StatusServerConfig struct {
	Addr net.IP
	Port int
}

func (s *StatusServerConfig) address() string {
	if s.Addr == nil {
		return fmt.Sprintf(":%v", s.Port)
	}
	return net.JoinHostPort(s.Addr.String(), fmt.Sprint(s.Port))
}

// newStatusRouter creates the routes that report on sess.
func newStatusRouter(log logger.Logger, sess *engine.Session) *mux.Router {
	r := mux.NewRouter()
	r.Path("/health").Methods(http.MethodGet).HandlerFunc(GetHandlerHealth(log))
	r.Path("/stats").Methods(http.MethodGet).HandlerFunc(GetHandlerStats(log, sess))
	r.Path("/status").Methods(http.MethodGet).HandlerFunc(GetHandlerStatusList(log, sess))
	r.Path("/status/{name}").Methods(http.MethodGet).HandlerFunc(GetHandlerStatus(log, sess))
	r.Path("/stop").Methods(http.MethodPost).HandlerFunc(GetHandlerStop(log, sess))
	return r
}

// runStatusServer starts a web server in the background and returns it.
func runStatusServer(log logger.Logger, cfg *StatusServerConfig, sess *engine.Session) *http.Server {
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         cfg.address(),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      newStatusRouter(log, sess),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Debug(err)
			} else {
				// The run carries on without the status server.
				log.Error("status server failed: ", err)
			}
		}
	}()
	log.Info("Status server listening on ", srv.Addr)
	return srv
}

func stopStatusServer(log logger.Logger, srv *http.Server) error {
	log.Debug("Shutting down status server...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	return srv.Shutdown(ctx) // waits for open connections until the deadline.
}
