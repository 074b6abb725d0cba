package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/dashboard"
	"github.com/tocipoco/DAO-Vote/log"
)

// APIConfig type represents the configuration for the API HTTP server.
// Gateway and Dashboard are optional, the endpoints of a missing component
// answer with ErrServiceUnavailable.
type APIConfig struct {
	Host string
	Port int
	// Gateway serves the co-processor decryption endpoints.
	Gateway coprocessor.Gateway
	// Dashboard serves the member session endpoints.
	Dashboard *dashboard.Controller
}

// API type represents the API HTTP server.
type API struct {
	router    *chi.Mux
	server    *http.Server
	listener  net.Listener
	gateway   coprocessor.Gateway
	dashboard *dashboard.Controller
}

// New creates a new API instance with the given configuration and starts
// serving it.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	a := &API{
		gateway:   conf.Gateway,
		dashboard: conf.Dashboard,
	}

	// Initialize router
	a.initRouter()
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.Port))
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %s:%d: %w", conf.Host, conf.Port, err)
	}
	a.listener = ln
	a.server = &http.Server{Handler: a.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("Starting API server", "address", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on.
func (a *API) Addr() net.Addr {
	return a.listener.Addr()
}

// Close stops the server, waiting for active requests until ctx is done.
func (a *API) Close(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	// co-processor gateway
	log.Infow("register handler", "endpoint", GatewayInfoEndpoint, "method", "GET")
	a.router.Get(GatewayInfoEndpoint, a.withGateway(a.gatewayInfo))
	log.Infow("register handler", "endpoint", GatewayUserDecryptEndpoint, "method", "POST")
	a.router.Post(GatewayUserDecryptEndpoint, a.withGateway(a.userDecrypt))

	// dashboard
	log.Infow("register handler", "endpoint", DashboardEndpoint, "method", "GET")
	a.router.Get(DashboardEndpoint, a.withDashboard(a.view))
	log.Infow("register handler", "endpoint", MembersEndpoint, "method", "POST")
	a.router.Post(MembersEndpoint, a.withDashboard(a.addMember))
	log.Infow("register handler", "endpoint", ProposalsEndpoint, "method", "POST")
	a.router.Post(ProposalsEndpoint, a.withDashboard(a.newProposal))
	log.Infow("register handler", "endpoint", ProposalEndpoint, "method", "GET")
	a.router.Get(ProposalEndpoint, a.withDashboard(a.proposal))
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.withDashboard(a.vote))
	log.Infow("register handler", "endpoint", DecryptEndpoint, "method", "POST")
	a.router.Post(DecryptEndpoint, a.withDashboard(a.decrypt))
	log.Infow("register handler", "endpoint", ExecuteEndpoint, "method", "POST")
	a.router.Post(ExecuteEndpoint, a.withDashboard(a.execute))
	log.Infow("register handler", "endpoint", EventsEndpoint, "method", "GET")
	a.router.Get(EventsEndpoint, a.withDashboard(a.events))

	// session
	log.Infow("register handler", "endpoint", SessionAccountEndpoint, "method", "POST")
	a.router.Post(SessionAccountEndpoint, a.withDashboard(a.switchAccount))
	log.Infow("register handler", "endpoint", SessionNetworkEndpoint, "method", "POST")
	a.router.Post(SessionNetworkEndpoint, a.withDashboard(a.switchNetwork))
	log.Infow("register handler", "endpoint", SessionSignOutEndpoint, "method", "POST")
	a.router.Post(SessionSignOutEndpoint, a.withDashboard(a.signOut))
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(3 * time.Minute))

	// Register the API handlers
	a.registerHandlers()
}

func (a *API) withGateway(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.gateway == nil {
			ErrServiceUnavailable.With("no co-processor gateway").Write(w)
			return
		}
		h(w, r)
	}
}

func (a *API) withDashboard(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.dashboard == nil {
			ErrServiceUnavailable.With("no dashboard session").Write(w)
			return
		}
		h(w, r)
	}
}
