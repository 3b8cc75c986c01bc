package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/psapi/psapitest"
)

func TestApplicationsMonitorDiff(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	client := psapi.New(psapi.Config{ServerURL: server.URL()})

	server.SeedApp(psapi.Application{Name: "shop", Components: []string{"web"}})
	monitor := NewApplicationsMonitor(client.Apps)

	diff, err := monitor.Diff(context.Background())
	require.NoError(t, err)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "shop", diff.Added[0].Name)
	assert.Empty(t, diff.Updated)
	assert.Empty(t, diff.Deleted)

	diff, err = monitor.Diff(context.Background())
	require.NoError(t, err)
	assert.True(t, diff.Empty(), "unchanged application set yields an empty diff")

	server.SeedApp(psapi.Application{Name: "shop", Components: []string{"web", "cart"}})
	diff, err = monitor.Diff(context.Background())
	require.NoError(t, err)
	require.Len(t, diff.Updated, 1)
	assert.Equal(t, "shop", diff.Updated[0].Name)

	require.NoError(t, client.Apps.Destroy(context.Background(), "shop"))
	diff, err = monitor.Diff(context.Background())
	require.NoError(t, err)
	require.Len(t, diff.Deleted, 1)
	assert.Equal(t, "shop", diff.Deleted[0].Name)
}

type diffReconcilerSpy struct {
	diffs []Diff
	err   error
}

func (s *diffReconcilerSpy) ReconcileDiff(ctx context.Context, diff Diff) error {
	s.diffs = append(s.diffs, diff)
	return s.err
}

func TestMonitorExecutorSkipsEmptyDiff(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	client := psapi.New(psapi.Config{ServerURL: server.URL()})

	monitor := NewApplicationsMonitor(client.Apps)
	reconciler := &diffReconcilerSpy{}
	exec := NewMonitorExecutor(monitor, reconciler, nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := exec.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, reconciler.diffs, "an empty application set yields an empty diff, which is never reconciled")
}
