package service

import (
	"context"
	"testing"
	"time"

	"github.com/parisxmas/fsdash/internal/metrics"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type rejectAll struct{}

func (rejectAll) Verify(context.Context, session.Credentials) (session.Credentials, error) {
	return session.Credentials{}, session.ErrLoginRejected
}

func TestAuthService(t *testing.T) {
	mgr, err := session.NewManager(session.NewMemoryStore(), passThrough{}, "t:", time.Hour)
	require.NoError(t, err)
	a := NewAuthService(mgr, zaptest.NewLogger(t))
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.Logins.WithLabelValues("ok"))
	s, err := a.Login(ctx, session.Credentials{APIURL: "http://svc", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Logins.WithLabelValues("ok")))

	cur, err := a.Current(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://svc", cur.Credentials().APIURL)

	a.Flash(ctx, s, "success", "Login successful")
	f := a.TakeFlash(ctx, s)
	require.NotNil(t, f)
	assert.Equal(t, "Login successful", f.Message)
	assert.Nil(t, a.TakeFlash(ctx, s))

	require.NoError(t, a.Logout(ctx, s))
	_, err = a.Current(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestAuthService_Rejected(t *testing.T) {
	mgr, err := session.NewManager(session.NewMemoryStore(), rejectAll{}, "t:", time.Hour)
	require.NoError(t, err)
	a := NewAuthService(mgr, zaptest.NewLogger(t))

	before := testutil.ToFloat64(metrics.Logins.WithLabelValues("rejected"))
	_, err = a.Login(context.Background(), session.Credentials{APIURL: "http://svc", APIKey: "bad"})
	assert.ErrorIs(t, err, session.ErrLoginRejected)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Logins.WithLabelValues("rejected")))
}
