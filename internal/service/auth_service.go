package service

import (
	"context"
	"errors"

	"github.com/parisxmas/fsdash/internal/metrics"
	"github.com/parisxmas/fsdash/internal/session"
	"go.uber.org/zap"
)

type AuthService struct {
	sessions *session.Manager
	log      *zap.Logger
}

func NewAuthService(sessions *session.Manager, log *zap.Logger) *AuthService {
	return &AuthService{sessions: sessions, log: log}
}

// Login checks creds and creates a persisted session. Refused credentials
// yield session.ErrLoginRejected.
func (a *AuthService) Login(ctx context.Context, creds session.Credentials) (*session.Session, error) {
	s, err := a.sessions.Login(ctx, creds)
	switch {
	case err == nil:
		metrics.Logins.WithLabelValues("ok").Inc()
		a.log.Info("operator logged in", zap.String("session", s.ID), zap.String("api_url", s.Credentials().APIURL))
	case errors.Is(err, session.ErrLoginRejected):
		metrics.Logins.WithLabelValues("rejected").Inc()
		a.log.Info("login rejected", zap.Error(err))
	default:
		metrics.Logins.WithLabelValues("error").Inc()
		a.log.Error("login failed", zap.Error(err))
	}
	return s, err
}

// Current resolves the session behind id, returning session.ErrNoSession when
// there is none.
func (a *AuthService) Current(ctx context.Context, id string) (*session.Session, error) {
	return a.sessions.Load(ctx, id)
}

func (a *AuthService) Logout(ctx context.Context, s *session.Session) error {
	if err := a.sessions.Logout(ctx, s); err != nil {
		a.log.Warn("logout cleanup failed", zap.String("session", s.ID), zap.Error(err))
		return err
	}
	a.log.Info("operator logged out", zap.String("session", s.ID))
	return nil
}

func (a *AuthService) Flash(ctx context.Context, s *session.Session, kind, message string) {
	if err := a.sessions.SetFlash(ctx, s, session.Flash{Kind: kind, Message: message}); err != nil {
		a.log.Warn("store flash failed", zap.Error(err))
	}
}

// TakeFlash returns and clears the pending notification.
func (a *AuthService) TakeFlash(ctx context.Context, s *session.Session) *session.Flash {
	f, err := a.sessions.TakeFlash(ctx, s)
	if err != nil {
		a.log.Warn("load flash failed", zap.Error(err))
		return nil
	}
	return f
}
