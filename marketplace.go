// Package marketplace is the public entry point of the marketplace client
// SDK. It wires the session, the request dispatcher, the cart/order façade,
// and the order lifecycle together, and re-exports their types for
// consumers.
package marketplace

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/salehnevergiveup/marketplace-sdk/internal/config"
	"github.com/salehnevergiveup/marketplace-sdk/internal/lifecycle"
	"github.com/salehnevergiveup/marketplace-sdk/internal/session"
	"github.com/salehnevergiveup/marketplace-sdk/internal/storefront"
	"github.com/salehnevergiveup/marketplace-sdk/internal/transport"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/logger"
)

// Re-exported types so callers outside the module can name them.
type (
	Config           = config.Config
	Session          = session.Session
	Claims           = session.Claims
	Permissions      = session.Permissions
	Request          = transport.Request
	Response         = transport.Response
	Metrics          = transport.Metrics
	CartItem         = storefront.CartItem
	ItemStatus       = storefront.ItemStatus
	Product          = storefront.Product
	ProductStatus    = storefront.ProductStatus
	PendingOrder     = storefront.PendingOrder
	BuyerItem        = storefront.BuyerItem
	DeliveryStage    = storefront.DeliveryStage
	RebateAmountList = storefront.RebateAmountList
	RebateAmount     = storefront.RebateAmount
	PaymentRequest   = storefront.PaymentRequest
	Flow             = lifecycle.Flow
	Storefront       = storefront.Service
	Logger           = logger.Logger
)

// LoadConfig reads SDK configuration from the environment.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// SDK bundles one user's session with the clients built on it. Construct it
// at login time, drop it at logout; the session inside is the single owner
// of the access token.
type SDK struct {
	session    *session.Session
	client     *transport.Client
	storefront *storefront.Service
	flow       *lifecycle.Flow
}

// Option adjusts SDK construction.
type Option func(*options)

type options struct {
	metrics *transport.Metrics
	log     *logger.Logger
}

// NewMetrics creates dispatcher metrics registered on reg, for use with
// WithMetrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return transport.NewMetrics(reg)
}

// WithMetrics attaches dispatcher metrics.
func WithMetrics(m *transport.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// New builds an SDK instance from configuration.
func New(cfg *Config, opts ...Option) *SDK {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = logger.NewDefault("marketplace")
	}

	sess := session.New()
	client := transport.NewClient(sess, transport.Config{
		AuthBaseURL:   cfg.AuthBaseURL,
		PublicBaseURL: cfg.PublicBaseURL,
		Timeout:       cfg.RequestTimeout,
		RefreshSkew:   cfg.RefreshSkew,
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
		Metrics:       o.metrics,
		Logger:        log.WithField("layer", "transport"),
	})
	svc := storefront.New(client, log.WithField("layer", "storefront"))
	return &SDK{
		session:    sess,
		client:     client,
		storefront: svc,
		flow:       lifecycle.New(svc, log.WithField("layer", "lifecycle")),
	}
}

// Session returns the token store backing this SDK instance.
func (s *SDK) Session() *Session {
	return s.session
}

// Storefront returns the cart/order façade.
func (s *SDK) Storefront() *Storefront {
	return s.storefront
}

// Flow returns the order lifecycle orchestrator.
func (s *SDK) Flow() *Flow {
	return s.flow
}

// DecodeClaims parses a bearer token's claims without verifying its
// signature. Returns nil for malformed input.
func DecodeClaims(token string) *Claims {
	return session.DecodeClaims(token)
}
