package metrics_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"finledger/internal/core"
	"finledger/internal/metrics"
)

func newMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	return metrics.NewWithRegistry(reg, reg)
}

func TestRecorder(t *testing.T) {
	m := newMetrics()

	m.EntryPosted(core.SourceExpense, core.OutcomePosted)
	m.EntryPosted(core.SourceExpense, core.OutcomePosted)
	m.EntryPosted(core.SourceIncome, core.OutcomeRejected)
	m.EntryReversed(core.OutcomePosted)
	m.MovementRecorded(core.MovementIn, core.ReasonPurchase, core.OutcomePosted)
	m.IntegrityViolation("trial_balance")
	m.ReportServed("trial_balance", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesPosted.WithLabelValues("EXPENSE", "posted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesPosted.WithLabelValues("INCOME", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesReversed.WithLabelValues("posted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MovementsRecorded.WithLabelValues("IN", "PURCHASE", "posted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrityViolations.WithLabelValues("trial_balance")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReportDuration))
}

func TestRecorder_UnknownLabelValuesCollapse(t *testing.T) {
	m := newMetrics()

	for i := 0; i < 5; i++ {
		m.EntryPosted(core.SourceType(fmt.Sprintf("BOGUS-%d", i)), core.OutcomeRejected)
		m.MovementRecorded(core.MovementType(fmt.Sprintf("T%d", i)), core.Reason(fmt.Sprintf("R%d", i)), core.OutcomeRejected)
	}
	m.MovementRecorded(core.MovementIn, core.Reason("NOT-A-REASON"), core.OutcomeRejected)
	m.MovementRecorded(core.MovementOut, core.ReasonPurchase, core.OutcomeRejected)

	assert.Equal(t, 1, testutil.CollectAndCount(m.EntriesPosted))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.EntriesPosted.WithLabelValues("invalid", "rejected")))

	assert.Equal(t, 3, testutil.CollectAndCount(m.MovementsRecorded))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.MovementsRecorded.WithLabelValues("invalid", "invalid", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MovementsRecorded.WithLabelValues("IN", "invalid", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MovementsRecorded.WithLabelValues("OUT", "invalid", "rejected")))
}
