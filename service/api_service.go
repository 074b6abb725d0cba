package service

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tocipoco/DAO-Vote/api"
	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/dashboard"
	"github.com/tocipoco/DAO-Vote/log"
)

// shutdownTimeout bounds the wait for active requests on Stop.
const shutdownTimeout = 5 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	gateway   coprocessor.Gateway
	dashboard *dashboard.Controller
	api       *api.API
	mu        sync.Mutex
	host      string
	port      int
}

// NewAPI creates a new APIService instance serving the co-processor gateway
// and the dashboard session. Either may be nil.
func NewAPI(gateway coprocessor.Gateway, ctrl *dashboard.Controller, host string, port int) *APIService {
	return &APIService{
		gateway:   gateway,
		dashboard: ctrl,
		host:      host,
		port:      port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start. The server stops when ctx is
// done.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.api != nil {
		return fmt.Errorf("service already running")
	}

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:      as.host,
		Port:      as.port,
		Gateway:   as.gateway,
		Dashboard: as.dashboard,
	})
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	srv := as.api
	go func() {
		<-ctx.Done()
		as.stop(srv)
	}()
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	srv := as.api
	as.mu.Unlock()
	as.stop(srv)
}

func (as *APIService) stop(srv *api.API) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if srv == nil || as.api != srv {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Close(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err.Error())
	}
	as.api = nil
}

// HostPort returns the host and port of the API server. Once started, the
// port is the one actually listened on.
func (as *APIService) HostPort() (string, int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api != nil {
		if addr, ok := as.api.Addr().(*net.TCPAddr); ok {
			return as.host, addr.Port
		}
	}
	return as.host, as.port
}
