package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMutationCounts(t *testing.T) {
	before := testutil.ToFloat64(mutations.WithLabelValues("todos", "create", "error"))
	Mutation("todos", "create", errors.New("x"))
	assert.Equal(t, before+1, testutil.ToFloat64(mutations.WithLabelValues("todos", "create", "error")))
}

func TestOverlayGauge(t *testing.T) {
	Overlay("users", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(overlay.WithLabelValues("users")))
	Overlay("users", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(overlay.WithLabelValues("users")))
}
