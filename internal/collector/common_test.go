package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/catid/timesync/internal/config"
	"github.com/catid/timesync/internal/peersync"
	"github.com/catid/timesync/pkg/metrics"
	"github.com/catid/timesync/timesync"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	return cfg
}

func testManager() *peersync.Manager {
	return peersync.NewManager(peersync.ManagerConfig{
		MaxConcurrency: 4,
	})
}

func seedPeer(mgr *peersync.Manager, peer peersync.PeerID) {
	mgr.Ingest(peer, timesync.Counter24(100), timesync.Usec64(10_000))
}

func TestNewCommonCollector(t *testing.T) {
	cfg := testConfig()
	mgr := testManager()
	m := metrics.NewPeerMetrics()
	collector := NewCommonCollector(cfg, mgr, m, "test")

	assert.NotNil(t, collector)
	assert.Equal(t, "test", collector.Name())
	assert.True(t, collector.Enabled())
	assert.Equal(t, cfg, collector.GetConfig())
	assert.NotNil(t, collector.GetManager())
	assert.Equal(t, m, collector.GetMetrics())
}

func TestCommonCollector_Name(t *testing.T) {
	cfg := testConfig()
	mgr := testManager()

	tests := []struct {
		name          string
		collectorName string
	}{
		{"base_collector", "base"},
		{"security_collector", "security"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewPeerMetrics()
			collector := NewCommonCollector(cfg, mgr, m, tt.collectorName)
			assert.Equal(t, tt.collectorName, collector.Name())
		})
	}
}

func TestCommonCollector_Enabled(t *testing.T) {
	cfg := testConfig()
	mgr := testManager()
	m := metrics.NewPeerMetrics()
	collector := NewCommonCollector(cfg, mgr, m, "test")

	assert.True(t, collector.Enabled())
}

func TestCommonCollector_IterateSnapshot(t *testing.T) {
	t.Run("successful_iteration", func(t *testing.T) {
		cfg := testConfig()
		mgr := testManager()
		seedPeer(mgr, "peer1")
		seedPeer(mgr, "peer2")
		seedPeer(mgr, "peer3")

		m := metrics.NewPeerMetrics()
		collector := NewCommonCollector(cfg, mgr, m, "test")

		callCount := 0
		collectFunc := func(ctx context.Context, status peersync.PeerStatus) error {
			callCount++
			return nil
		}

		ctx := context.Background()
		err := collector.IterateSnapshot(ctx, collectFunc, "test")

		assert.NoError(t, err)
		assert.Equal(t, 3, callCount)
	})

	t.Run("continues_on_error", func(t *testing.T) {
		cfg := testConfig()
		mgr := testManager()
		seedPeer(mgr, "peer1")
		seedPeer(mgr, "peer2")
		seedPeer(mgr, "peer3")

		m := metrics.NewPeerMetrics()
		collector := NewCommonCollector(cfg, mgr, m, "test")

		callCount := 0
		collectFunc := func(ctx context.Context, status peersync.PeerStatus) error {
			callCount++
			if status.Peer == "peer2" {
				return errors.New("simulated error")
			}
			return nil
		}

		ctx := context.Background()
		err := collector.IterateSnapshot(ctx, collectFunc, "test")

		assert.NoError(t, err)    // Should not return error, just continue
		assert.Equal(t, 3, callCount) // Should call all peers
	})

	t.Run("empty_sessions", func(t *testing.T) {
		cfg := testConfig()
		mgr := testManager()

		m := metrics.NewPeerMetrics()
		collector := NewCommonCollector(cfg, mgr, m, "test")

		callCount := 0
		collectFunc := func(ctx context.Context, status peersync.PeerStatus) error {
			callCount++
			return nil
		}

		ctx := context.Background()
		err := collector.IterateSnapshot(ctx, collectFunc, "test")

		assert.NoError(t, err)
		assert.Equal(t, 0, callCount)
	})

	t.Run("context_passed_through", func(t *testing.T) {
		cfg := testConfig()
		mgr := testManager()
		seedPeer(mgr, "peer1")

		m := metrics.NewPeerMetrics()
		collector := NewCommonCollector(cfg, mgr, m, "test")

		type contextKey string
		key := contextKey("test-key")
		expectedValue := "test-value"

		var receivedValue string
		collectFunc := func(ctx context.Context, status peersync.PeerStatus) error {
			if val := ctx.Value(key); val != nil {
				receivedValue = val.(string)
			}
			return nil
		}

		ctx := context.WithValue(context.Background(), key, expectedValue)
		err := collector.IterateSnapshot(ctx, collectFunc, "test")

		assert.NoError(t, err)
		assert.Equal(t, expectedValue, receivedValue)
	})
}

func TestCommonCollector_GettersSetters(t *testing.T) {
	cfg := testConfig()
	mgr := testManager()
	seedPeer(mgr, "peer1")

	m := metrics.NewPeerMetrics()
	collector := NewCommonCollector(cfg, mgr, m, "test")

	// Test all getters return non-nil values
	assert.NotNil(t, collector.GetConfig())
	assert.NotNil(t, collector.GetManager())
	assert.NotNil(t, collector.GetMetrics())

	// Test values are correct
	assert.Equal(t, cfg, collector.GetConfig())
	assert.Equal(t, m, collector.GetMetrics())
}

func TestCommonCollector_MultipleInstances(t *testing.T) {
	cfg := testConfig()
	mgr := testManager()

	m := metrics.NewPeerMetrics()

	// Create multiple collectors
	collector1 := NewCommonCollector(cfg, mgr, m, "collector1")
	collector2 := NewCommonCollector(cfg, mgr, m, "collector2")
	collector3 := NewCommonCollector(cfg, mgr, m, "collector3")

	// Ensure they are independent
	assert.NotEqual(t, collector1.Name(), collector2.Name())
	assert.NotEqual(t, collector2.Name(), collector3.Name())
	assert.NotEqual(t, collector1.Name(), collector3.Name())

	// But share config and metrics
	assert.Equal(t, collector1.GetConfig(), collector2.GetConfig())
	assert.Equal(t, collector1.GetMetrics(), collector2.GetMetrics())
}

func BenchmarkCommonCollector_IterateSnapshot(b *testing.B) {
	cfg := testConfig()
	mgr := testManager()
	seedPeer(mgr, "peer1")
	seedPeer(mgr, "peer2")
	seedPeer(mgr, "peer3")

	m := metrics.NewPeerMetrics()
	collector := NewCommonCollector(cfg, mgr, m, "test")

	collectFunc := func(ctx context.Context, status peersync.PeerStatus) error {
		return nil
	}

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = collector.IterateSnapshot(ctx, collectFunc, "test")
	}
}

func BenchmarkNewCommonCollector(b *testing.B) {
	cfg := testConfig()
	mgr := testManager()

	m := metrics.NewPeerMetrics()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NewCommonCollector(cfg, mgr, m, "test")
	}
}
