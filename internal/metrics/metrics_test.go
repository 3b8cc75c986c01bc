package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReconcileCountsByOutcome(t *testing.T) {
	ReconcileTotal.Reset()

	ObserveReconcile("consul", time.Now(), nil)
	ObserveReconcile("consul", time.Now(), errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(ReconcileTotal.WithLabelValues("consul", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ReconcileTotal.WithLabelValues("consul", "error")))
}

func TestObserveTriggerIncrementsFailuresOnlyOnFailure(t *testing.T) {
	TriggerFailuresTotal.Reset()

	ObserveTrigger("consul-server", time.Now(), false)
	assert.Equal(t, float64(0), testutil.ToFloat64(TriggerFailuresTotal.WithLabelValues("consul-server")))

	ObserveTrigger("consul-server", time.Now(), true)
	assert.Equal(t, float64(1), testutil.ToFloat64(TriggerFailuresTotal.WithLabelValues("consul-server")))
}
