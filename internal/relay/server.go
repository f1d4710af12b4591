// Package relay assembles the HTTP surface of the Instagram relay: the
// webhook endpoint, the OAuth callback, the read-only Graph API proxy, the
// status page, and the middleware shared by the server and Lambda binaries.
package relay

import (
	"context"
	"net/http"

	"github.com/fpang/instagram-relay/internal/config"
	"github.com/fpang/instagram-relay/internal/instagram"
	"github.com/fpang/instagram-relay/internal/metrics"
	"github.com/fpang/instagram-relay/internal/retention"
	"github.com/fpang/instagram-relay/internal/tokenstore"
	"github.com/fpang/instagram-relay/internal/webhook"
)

// Graph is the read-only Graph API surface the proxy routes use.
// *instagram.Client satisfies it.
type Graph interface {
	Me(ctx context.Context, accessToken string) (*instagram.Response, error)
	UserInsights(ctx context.Context, accountID, accessToken string) (*instagram.Response, error)
	MediaInsights(ctx context.Context, mediaID string, mediaType instagram.MediaType, accessToken string) (*instagram.Response, error)
	ListMedia(ctx context.Context, accountID, accessToken string) (*instagram.Response, error)
}

// Exchanger performs the OAuth token exchange. *instagram.OAuth satisfies it.
type Exchanger interface {
	AuthorizeURL() string
	ExchangeCode(ctx context.Context, code string) (*instagram.ShortLivedToken, error)
	ExchangeLongLivedToken(ctx context.Context, shortToken string) (*instagram.LongLivedToken, error)
}

// Deps are the collaborators of a Server. Only Config is required.
type Deps struct {
	Config *config.Config

	// Updates defaults to a ring sized by Config.Webhook.RetentionCapacity.
	Updates *retention.Ring
	// Graph and OAuth default to live Instagram clients built from Config.
	Graph Graph
	OAuth Exchanger

	// Optional.
	Tokens    tokenstore.Store
	Publisher webhook.Publisher
	Metrics   *metrics.Collectors
	// EMF emits one CloudWatch EMF line per request and per webhook outcome.
	EMF bool
}

// Server serves the relay routes.
type Server struct {
	cfg     *config.Config
	updates *retention.Ring
	graph   Graph
	oauth   Exchanger
	tokens  tokenstore.Store
	webhook *webhook.Handler
	metrics *metrics.Collectors
	emf     bool
	mux     *http.ServeMux
}

// New builds a Server and registers its routes.
func New(d Deps) *Server {
	cfg := d.Config
	s := &Server{
		cfg:     cfg,
		updates: d.Updates,
		graph:   d.Graph,
		oauth:   d.OAuth,
		tokens:  d.Tokens,
		metrics: d.Metrics,
		emf:     d.EMF,
		mux:     http.NewServeMux(),
	}
	if s.updates == nil {
		s.updates = retention.New(cfg.Webhook.RetentionCapacity)
	}
	if s.graph == nil {
		s.graph = instagram.NewClient()
	}
	if s.oauth == nil {
		s.oauth = instagram.NewOAuth(cfg.Instagram.AppID, cfg.Instagram.AppSecret, cfg.Instagram.RedirectURI)
	}

	var opts []webhook.Option
	if d.Publisher != nil {
		opts = append(opts, webhook.WithPublisher(d.Publisher))
	}
	var obs observers
	if s.metrics != nil {
		obs = append(obs, s.metrics)
	}
	if s.emf {
		obs = append(obs, emfObserver{})
	}
	if len(obs) > 0 {
		opts = append(opts, webhook.WithObserver(obs))
	}
	s.webhook = webhook.NewHandler(cfg.Webhook.VerifyToken, cfg.Instagram.AppSecret, s.updates, opts...)

	s.routes()
	return s
}

// Updates returns the retention ring backing the status page.
func (s *Server) Updates() *retention.Ring {
	return s.updates
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// One handler, two mount points.
	s.mux.Handle("/instagram", s.webhook)
	s.mux.Handle("/webhooks/instagram", s.webhook)

	for _, prefix := range []string{"", "/insights"} {
		s.mux.HandleFunc("GET "+prefix+"/auth/instagram/callback", s.handleOAuthCallback)
		s.mux.HandleFunc("GET "+prefix+"/ids", s.handleIDs)
		s.mux.HandleFunc("GET "+prefix+"/insights/user", s.handleUserInsights)
		s.mux.HandleFunc("GET "+prefix+"/insights/media", s.handleMediaInsights)
		s.mux.HandleFunc("GET "+prefix+"/list-media", s.handleListMedia)
	}

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the routes wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = withGzip(h)
	h = s.withMetrics(h)
	h = withCORS(h)
	h = withLogging(h)
	h = withRequestID(h)
	return h
}

// observers fans a webhook outcome out to several observers.
type observers []webhook.Observer

func (o observers) ObserveWebhook(outcome string) {
	for _, ob := range o {
		ob.ObserveWebhook(outcome)
	}
}

// emfObserver records webhook outcomes as EMF counts.
type emfObserver struct{}

func (emfObserver) ObserveWebhook(outcome string) {
	metrics.New().
		Dimension("Outcome", outcome).
		Count("WebhookNotifications").
		Flush()
}
