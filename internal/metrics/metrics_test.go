package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Evaluation("bbob", "toy")
	c.Evaluation("bbob", "toy")
	c.Record("dat")
	c.TargetReached("toy")
	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()
	c.ObserveProblem("random", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Evaluations.WithLabelValues("bbob", "toy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Records.WithLabelValues("dat")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Records.WithLabelValues("tdat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TargetsReached.WithLabelValues("toy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveSessions))
	assert.Equal(t, 1, testutil.CollectAndCount(c.ProblemDuration))
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.Evaluation("bbob", "toy")
		c.Record("dat")
		c.TargetReached("toy")
		c.SessionOpened()
		c.SessionClosed()
		c.ObserveProblem("random", 1)
	})
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
