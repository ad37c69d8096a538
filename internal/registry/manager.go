package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/logging"
)

var _ interfaces.RegistryManager = (*Manager)(nil)

// Manager implements interfaces.RegistryManager over the configured profiles
type Manager struct {
	configManager    interfaces.ConfigManager
	healthMonitor    *HealthMonitor
	profileHealth    map[string]*interfaces.ProfileHealth
	mutex            sync.RWMutex
	monitoringActive bool
	monitoringCancel context.CancelFunc
	monitoringDone   chan struct{}
	preferences      RegistryPreferences
	statistics       RegistryStatistics
	logger           *logging.Logger
}

// RegistryPreferences controls health monitoring
type RegistryPreferences struct {
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	HealthCheckTimeout  time.Duration `json:"healthCheckTimeout"`
	ConcurrentChecks    int           `json:"concurrentChecks"`
}

// DefaultPreferences returns the monitoring defaults
func DefaultPreferences() RegistryPreferences {
	return RegistryPreferences{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		ConcurrentChecks:    5,
	}
}

// RegistryStatistics counts health checks across all profiles
type RegistryStatistics struct {
	TotalHealthChecks int64     `json:"totalHealthChecks"`
	ReadyChecks       int64     `json:"readyChecks"`
	FailedChecks      int64     `json:"failedChecks"`
	ReadyProfiles     int       `json:"readyProfiles"`
	OfflineProfiles   int       `json:"offlineProfiles"`
	ErrorProfiles     int       `json:"errorProfiles"`
	LastUpdateTime    time.Time `json:"lastUpdateTime"`
}

// NewManager creates a registry over configManager's profiles
func NewManager(configManager interfaces.ConfigManager, preferences RegistryPreferences) (*Manager, error) {
	if configManager == nil {
		return nil, fmt.Errorf("configManager cannot be nil")
	}
	defaults := DefaultPreferences()
	if preferences.HealthCheckInterval <= 0 {
		preferences.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if preferences.HealthCheckTimeout <= 0 {
		preferences.HealthCheckTimeout = defaults.HealthCheckTimeout
	}
	if preferences.ConcurrentChecks <= 0 {
		preferences.ConcurrentChecks = defaults.ConcurrentChecks
	}

	return &Manager{
		configManager: configManager,
		healthMonitor: NewHealthMonitor(preferences.HealthCheckTimeout),
		profileHealth: make(map[string]*interfaces.ProfileHealth),
		preferences:   preferences,
		logger:        logging.GetRegistryLogger(),
	}, nil
}

// ListProfiles returns all configured profiles sorted by name
func (m *Manager) ListProfiles() ([]*interfaces.Profile, error) {
	names, err := m.configManager.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	sort.Strings(names)

	profiles := make([]*interfaces.Profile, 0, len(names))
	for _, name := range names {
		profile, err := m.configManager.LoadProfile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile '%s': %w", name, err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// GetHealth returns a copy of the last health result for a profile
func (m *Manager) GetHealth(name string) (*interfaces.ProfileHealth, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	health, exists := m.profileHealth[name]
	if !exists {
		return nil, false
	}
	healthCopy := *health
	return &healthCopy, true
}

// Preferences returns the monitoring settings in effect
func (m *Manager) Preferences() RegistryPreferences {
	return m.preferences
}

// HealthMonitor exposes the probe history
func (m *Manager) HealthMonitor() *HealthMonitor {
	return m.healthMonitor
}

// CheckHealth probes a profile's console immediately
func (m *Manager) CheckHealth(ctx context.Context, name string) (*interfaces.ProfileHealth, error) {
	profile, err := m.configManager.LoadProfile(name)
	if err != nil {
		return nil, fmt.Errorf("profile '%s' not found: %w", name, err)
	}

	health := m.check(ctx, profile)
	healthCopy := *health
	return &healthCopy, nil
}

func (m *Manager) check(ctx context.Context, profile *interfaces.Profile) *interfaces.ProfileHealth {
	checkCtx, cancel := context.WithTimeout(ctx, 2*m.preferences.HealthCheckTimeout)
	defer cancel()

	health := m.healthMonitor.CheckProfile(checkCtx, profile)
	m.record(health)
	return health
}

func (m *Manager) record(health *interfaces.ProfileHealth) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	previousStatus := "unknown"
	if existing, exists := m.profileHealth[health.Profile]; exists {
		previousStatus = existing.Status
	}
	m.profileHealth[health.Profile] = health
	m.updateStatistics(health)

	if previousStatus != health.Status {
		m.logger.Info("Profile health changed",
			"profile", health.Profile,
			"host", health.Host,
			"from", previousStatus,
			"to", health.Status,
			"error", health.Error,
		)
	}
}

// StartHealthMonitoring probes every profile now and then every interval
// until StopHealthMonitoring or ctx is done. A zero interval uses the
// preference.
func (m *Manager) StartHealthMonitoring(ctx context.Context, interval time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.monitoringActive {
		return fmt.Errorf("health monitoring is already active")
	}
	if interval <= 0 {
		interval = m.preferences.HealthCheckInterval
	}

	monitoringCtx, cancel := context.WithCancel(ctx)
	m.monitoringCancel = cancel
	m.monitoringDone = make(chan struct{})
	m.monitoringActive = true

	m.logger.Debug("Health monitoring started", "interval", interval)
	go m.runHealthMonitoring(monitoringCtx, interval, m.monitoringDone)
	return nil
}

// StopHealthMonitoring stops background probing and waits for the running cycle
func (m *Manager) StopHealthMonitoring() error {
	m.mutex.Lock()
	if !m.monitoringActive {
		m.mutex.Unlock()
		return fmt.Errorf("health monitoring is not currently active")
	}
	m.monitoringCancel()
	done := m.monitoringDone
	m.monitoringCancel = nil
	m.monitoringActive = false
	m.mutex.Unlock()

	<-done
	m.logger.Debug("Health monitoring stopped")
	return nil
}

// GetRegistryStatistics returns a snapshot of the check counters
func (m *Manager) GetRegistryStatistics() RegistryStatistics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.statistics
}

func (m *Manager) runHealthMonitoring(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.performHealthCheckCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.performHealthCheckCycle(ctx)
		}
	}
}

// performHealthCheckCycle checks every profile with bounded concurrency
func (m *Manager) performHealthCheckCycle(ctx context.Context) {
	profiles, err := m.ListProfiles()
	if err != nil {
		m.logger.Warn("Health check cycle skipped", "error", err)
		return
	}

	semaphore := make(chan struct{}, m.preferences.ConcurrentChecks)
	var wg sync.WaitGroup
	defer wg.Wait()

	for _, profile := range profiles {
		select {
		case <-ctx.Done():
			return
		case semaphore <- struct{}{}:
			wg.Add(1)
			go func(p *interfaces.Profile) {
				defer func() { <-semaphore; wg.Done() }()
				m.check(ctx, p)
			}(profile)
		}
	}
}

func (m *Manager) updateStatistics(health *interfaces.ProfileHealth) {
	m.statistics.TotalHealthChecks++
	m.statistics.LastUpdateTime = time.Now()
	if health.Status == "ready" {
		m.statistics.ReadyChecks++
	} else {
		m.statistics.FailedChecks++
	}

	m.statistics.ReadyProfiles = 0
	m.statistics.OfflineProfiles = 0
	m.statistics.ErrorProfiles = 0
	for _, h := range m.profileHealth {
		switch h.Status {
		case "ready":
			m.statistics.ReadyProfiles++
		case "offline":
			m.statistics.OfflineProfiles++
		case "error":
			m.statistics.ErrorProfiles++
		}
	}
}
