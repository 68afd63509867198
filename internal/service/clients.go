package service

import (
	"time"

	"github.com/parisxmas/fsdash/internal/metrics"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"go.uber.org/zap"
)

// Clients builds API clients bound to a session's persisted endpoint. Every
// client reports its calls to the logger and the upstream metrics.
type Clients struct {
	timeout time.Duration
	log     *zap.Logger
}

func NewClients(timeout time.Duration, log *zap.Logger) *Clients {
	return &Clients{timeout: timeout, log: log}
}

// Options returns the client options shared by every instrumented client.
func (c *Clients) Options() []fsclient.Option {
	opts := []fsclient.Option{fsclient.WithObserver(c.observe)}
	if c.timeout > 0 {
		opts = append(opts, fsclient.WithTimeout(c.timeout))
	}
	return opts
}

// New returns a client for an explicit endpoint.
func (c *Clients) New(apiURL, apiKey string) *fsclient.Client {
	return fsclient.New(apiURL, apiKey, c.Options()...)
}

// For returns a client for the endpoint persisted in s.
func (c *Clients) For(s *session.Session) *fsclient.Client {
	creds := s.Credentials()
	return c.New(creds.APIURL, creds.APIKey)
}

func (c *Clients) observe(op string, code int, elapsed time.Duration, err error) {
	metrics.ObserveUpstream(op, elapsed, err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("status", code),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		c.log.Warn("upstream call failed", append(fields, zap.Error(err))...)
		return
	}
	c.log.Debug("upstream call", fields...)
}
