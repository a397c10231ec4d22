// Package app composes the scheduler service: sqlite stores, the scheduling
// and notification services, and the JSON API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	notifdomain "github.com/meetgrid/meetgrid/internal/notifications/domain"
	notifsqlite "github.com/meetgrid/meetgrid/internal/notifications/storage/sqlite"
	"github.com/meetgrid/meetgrid/internal/scheduling/service"
	"github.com/meetgrid/meetgrid/internal/scheduling/session"
	schedsqlite "github.com/meetgrid/meetgrid/internal/scheduling/storage/sqlite"
	"github.com/meetgrid/meetgrid/internal/services/scheduler/api/httpjson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Config carries the composition inputs for one scheduler server.
type Config struct {
	HTTPAddr            string
	SchedulingDBPath    string
	NotificationsDBPath string
	Sessions            session.Config
}

// Server hosts the scheduler JSON API over its sqlite stores.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *schedsqlite.Store
	notifStore *notifsqlite.Store
}

// New creates a configured scheduler server listening on cfg.HTTPAddr.
func New(cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}

	store, err := openStore(cfg.SchedulingDBPath, "MEETGRID_SCHEDULER_DB_PATH", "scheduler.db")
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	notifStore, err := openNotifStore(cfg.NotificationsDBPath)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	localizer := message.NewPrinter(language.AmericanEnglish)
	inbox := notifdomain.NewService(notifStore, nil, nil, nil)
	scheduling := service.New(store, NewInboxNotifier(inbox, localizer), nil, nil)

	mux := http.NewServeMux()
	httpjson.RegisterRoutes(mux, httpjson.NewHandler(scheduling, inbox, cfg.Sessions, localizer))

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: httpjson.WithTracing(mux)},
		store:      store,
		notifStore: notifStore,
	}, nil
}

// Addr returns the listener address for the scheduler server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a scheduler server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the scheduler server and blocks until it stops or the context
// ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStores()

	log.Printf("scheduler server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func (s *Server) closeStores() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close scheduler store: %v", err)
		}
	}
	if s.notifStore != nil {
		if err := s.notifStore.Close(); err != nil {
			log.Printf("close notifications store: %v", err)
		}
	}
}

func openStore(path string, envVar string, defaultFile string) (*schedsqlite.Store, error) {
	resolved, err := resolveDBPath(path, envVar, defaultFile)
	if err != nil {
		return nil, err
	}
	store, err := schedsqlite.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open scheduler sqlite store: %w", err)
	}
	return store, nil
}

func openNotifStore(path string) (*notifsqlite.Store, error) {
	resolved, err := resolveDBPath(path, "MEETGRID_NOTIFICATIONS_DB_PATH", "notifications.db")
	if err != nil {
		return nil, err
	}
	store, err := notifsqlite.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open notifications sqlite store: %w", err)
	}
	return store, nil
}

func resolveDBPath(path string, envVar string, defaultFile string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envVar))
	}
	if path == "" {
		path = filepath.Join("data", defaultFile)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create storage dir: %w", err)
		}
	}
	return path, nil
}
