package registry

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/mockconsole"
)

// profileStore is an in-memory interfaces.ConfigManager.
type profileStore struct {
	profiles map[string]*interfaces.Profile
}

func (s *profileStore) LoadProfile(name string) (*interfaces.Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return p, nil
}

func (s *profileStore) SaveProfile(p *interfaces.Profile) error {
	s.profiles[p.Name] = p
	return nil
}

func (s *profileStore) ListProfiles() ([]string, error) {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	return names, nil
}

func (s *profileStore) DeleteProfile(name string) error {
	delete(s.profiles, name)
	return nil
}

func (s *profileStore) LoadTheme(string) (*interfaces.Theme, error) { return &interfaces.Theme{}, nil }
func (s *profileStore) ValidateProfile(*interfaces.Profile) error { return nil }
func (s *profileStore) GetConfigPath() string { return "" }

// notConsole accepts connections and answers like a web server.
func notConsole(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
			conn.Close()
		}
	}()
	return listener.Addr().String()
}

// closedPort returns an address nothing listens on.
func closedPort(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

func newTestRegistry(t *testing.T) (*Manager, *mockconsole.Server) {
	t.Helper()
	server := mockconsole.NewServer(mockconsole.Script{Username: "admin", Password: "secret"}, mockconsole.Options{})
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Close() })

	store := &profileStore{profiles: map[string]*interfaces.Profile{
		"local":  {Name: "local", Host: server.Addr()},
		"web":    {Name: "web", Host: notConsole(t)},
		"gone":   {Name: "gone", Host: closedPort(t)},
		"noport": {Name: "noport", Host: "localhost"},
	}}

	manager, err := NewManager(store, RegistryPreferences{HealthCheckTimeout: time.Second})
	require.NoError(t, err)
	return manager, server
}

func TestListProfilesIsSorted(t *testing.T) {
	manager, _ := newTestRegistry(t)

	profiles, err := manager.ListProfiles()
	require.NoError(t, err)
	var names []string
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"gone", "local", "noport", "web"}, names)
}

func TestCheckHealthClassifiesConsoles(t *testing.T) {
	manager, server := newTestRegistry(t)
	ctx := context.Background()

	health, err := manager.CheckHealth(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, "ready", health.Status)
	assert.Equal(t, "DGD administrative console", health.Banner)
	assert.Empty(t, health.Error)
	assert.Zero(t, server.Stats().Logins, "the probe never logs in")

	health, err = manager.CheckHealth(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "error", health.Status)
	assert.Contains(t, health.Error, "no login prompt")

	health, err = manager.CheckHealth(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, "offline", health.Status)

	health, err = manager.CheckHealth(ctx, "noport")
	require.NoError(t, err)
	assert.Equal(t, "error", health.Status)

	_, err = manager.CheckHealth(ctx, "missing")
	assert.Error(t, err)

	stored, ok := manager.GetHealth("local")
	require.True(t, ok)
	assert.Equal(t, "ready", stored.Status)

	stats := manager.GetRegistryStatistics()
	assert.Equal(t, int64(4), stats.TotalHealthChecks)
	assert.Equal(t, int64(1), stats.ReadyChecks)
	assert.Equal(t, 1, stats.ReadyProfiles)
	assert.Equal(t, 1, stats.OfflineProfiles)
	assert.Equal(t, 2, stats.ErrorProfiles)
}

func TestHealthMonitoringCycle(t *testing.T) {
	manager, _ := newTestRegistry(t)

	require.NoError(t, manager.StartHealthMonitoring(context.Background(), time.Hour))
	assert.Error(t, manager.StartHealthMonitoring(context.Background(), time.Hour))

	assert.Eventually(t, func() bool {
		_, ok := manager.GetHealth("gone")
		_, ok2 := manager.GetHealth("local")
		return ok && ok2
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, manager.StopHealthMonitoring())
	assert.Error(t, manager.StopHealthMonitoring())
}

func TestHealthHistoryAndTrends(t *testing.T) {
	manager, server := newTestRegistry(t)
	ctx := context.Background()

	_, err := manager.CheckHealth(ctx, "local")
	require.NoError(t, err)
	server.Close()
	_, err = manager.CheckHealth(ctx, "local")
	require.NoError(t, err)

	history := manager.HealthMonitor().GetHealthHistory("local", 0)
	require.Len(t, history, 2)
	assert.Equal(t, "ready", history[0].Status)
	assert.Equal(t, "offline", history[1].Status)
	assert.Equal(t, "connection_refused", history[1].ErrorType)

	trends, err := manager.HealthMonitor().GetHealthTrends("local", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, trends.SampleCount)
	assert.InDelta(t, 50.0, trends.UptimePercentage, 0.01)
	assert.Equal(t, "degrading", trends.AvailabilityTrend)

	_, err = manager.HealthMonitor().GetHealthTrends("nobody", time.Hour)
	assert.Error(t, err)

	manager.HealthMonitor().ClearHealthHistory("local")
	assert.Empty(t, manager.HealthMonitor().GetHealthHistory("local", 10))
}
