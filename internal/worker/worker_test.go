package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCancelRegistryCancelsRegisteredJob(t *testing.T) {
	r := newCancelRegistry()
	ctx, cancelFn := context.WithCancel(context.Background())
	r.register("job-1", cancelFn)

	require.True(t, r.Cancel("job-1"))
	require.Error(t, ctx.Err())
}

func TestCancelRegistryReportsFalseForUnknownJob(t *testing.T) {
	r := newCancelRegistry()
	require.False(t, r.Cancel("missing-job"))
}

func TestCancelRegistryUnregisterRemovesEntry(t *testing.T) {
	r := newCancelRegistry()
	ctx, cancelFn := context.WithCancel(context.Background())
	r.register("job-1", cancelFn)
	r.unregister("job-1")

	require.False(t, r.Cancel("job-1"))
	require.NoError(t, ctx.Err())
}
