package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "status_404", Outcome(&fsclient.StatusError{Op: "get", StatusCode: 404}))
	assert.Equal(t, "transport", Outcome(&fsclient.TransportError{Op: "get", Err: errors.New("refused")}))
	assert.Equal(t, "decode", Outcome(&fsclient.DecodeError{Op: "get", Err: errors.New("eof")}))
	assert.Equal(t, "error", Outcome(errors.New("other")))
}

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("metrics_test", "ok"))
	ObserveUpstream("metrics_test", 10*time.Millisecond, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("metrics_test", "ok")))
}
