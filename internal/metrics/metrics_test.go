package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStage_SuccessAndFailedAreDistinctSeries(t *testing.T) {
	RecordStage("code-analysis", OutcomeSuccess, 50*time.Millisecond)
	RecordStage("code-analysis", OutcomeFailed, 10*time.Millisecond)

	successCount := testutil.ToFloat64(stageTotal.WithLabelValues("code-analysis", OutcomeSuccess))
	failedCount := testutil.ToFloat64(stageTotal.WithLabelValues("code-analysis", OutcomeFailed))

	assert.GreaterOrEqual(t, successCount, float64(1))
	assert.GreaterOrEqual(t, failedCount, float64(1))
}

func TestRecordFailover_Increments(t *testing.T) {
	before := testutil.ToFloat64(failoverTotal.WithLabelValues())
	RecordFailover()
	after := testutil.ToFloat64(failoverTotal.WithLabelValues())
	assert.Equal(t, before+1, after)
}
