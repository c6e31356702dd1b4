package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCommitOkIncrementsCommitted(t *testing.T) {
	before := testutil.ToFloat64(RecordsCommittedTotal)
	RecordCommit(true, 5, time.Microsecond)
	after := testutil.ToFloat64(RecordsCommittedTotal)
	require.Equal(t, before+5, after)
}

func TestRecordCommitDroppedIncrementsDropped(t *testing.T) {
	before := testutil.ToFloat64(RecordsDroppedTotal)
	RecordCommit(false, 3, time.Microsecond)
	after := testutil.ToFloat64(RecordsDroppedTotal)
	require.Equal(t, before+3, after)
}

func TestHandlerNonNil(t *testing.T) {
	require.NotNil(t, Handler())
}
