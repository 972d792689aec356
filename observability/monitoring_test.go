package observability

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Collect(t *testing.T) {
	req := require.New(t)
	monitor, err := NewMonitor(int32(os.Getpid()))
	req.NoError(err)

	stats, err := monitor.Collect()

	req.NoError(err)
	req.Positive(stats.RSSBytes)
	req.Positive(stats.Goroutines)
	req.False(stats.CollectedAt.IsZero())

	// Latest serves the stored sample without re-sampling.
	req.Equal(stats, monitor.Latest())
}

func TestMonitor_UnknownPID(t *testing.T) {
	req := require.New(t)

	_, err := NewMonitor(-1)
	req.Error(err)
}
