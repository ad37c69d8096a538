// Package registry lists the configured console profiles and monitors whether
// each profile's server answers with a login banner.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

// loginPrompt ends the banner of every administrative console.
const loginPrompt = "login:"

// HealthMonitor probes console ports and keeps a short history per profile
type HealthMonitor struct {
	dialer         *net.Dialer
	bannerTimeout  time.Duration
	healthHistory  map[string][]HealthSnapshot
	mutex          sync.RWMutex
	maxHistorySize int
}

// HealthSnapshot captures a point-in-time health assessment
type HealthSnapshot struct {
	Timestamp    time.Time     `json:"timestamp"`
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"responseTime"`
	Error        string        `json:"error,omitempty"`
	ErrorType    string        `json:"errorType,omitempty"`
}

// HealthTrends summarizes the recent history of a profile
type HealthTrends struct {
	Profile             string        `json:"profile"`
	AnalysisPeriod      time.Duration `json:"analysisPeriod"`
	SampleCount         int           `json:"sampleCount"`
	UptimePercentage    float64       `json:"uptimePercentage"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	AvailabilityTrend   string        `json:"availabilityTrend"` // "improving", "degrading", "stable"
}

// NewHealthMonitor creates a monitor that gives each probe timeout to
// connect and the same again to see the login prompt.
func NewHealthMonitor(timeout time.Duration) *HealthMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{
		dialer:         &net.Dialer{Timeout: timeout},
		bannerTimeout:  timeout,
		healthHistory:  make(map[string][]HealthSnapshot),
		maxHistorySize: 100,
	}
}

// CheckProfile probes the profile's console. The connection is closed as
// soon as the login prompt appears; no credentials are sent.
//
//   - "ready": the server printed its banner and login prompt
//   - "offline": the TCP connection failed
//   - "error": something answered, but not with a console banner
func (hm *HealthMonitor) CheckProfile(ctx context.Context, profile *interfaces.Profile) *interfaces.ProfileHealth {
	startTime := time.Now()
	health := &interfaces.ProfileHealth{
		Profile: profile.Name,
		Host:    profile.Host,
	}

	snapshot := hm.probe(ctx, profile.Host, health)
	health.ResponseTime = time.Since(startTime)
	health.LastCheck = time.Now()

	snapshot.Timestamp = health.LastCheck
	snapshot.Status = health.Status
	snapshot.ResponseTime = health.ResponseTime
	snapshot.Error = health.Error
	hm.recordHealthSnapshot(profile.Name, snapshot)

	return health
}

func (hm *HealthMonitor) probe(ctx context.Context, host string, health *interfaces.ProfileHealth) HealthSnapshot {
	if _, _, err := net.SplitHostPort(host); err != nil {
		health.Status = "error"
		health.Error = "invalid host format: port required"
		return HealthSnapshot{ErrorType: "invalid_host"}
	}

	conn, err := hm.dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		health.Status = "offline"
		health.Error = fmt.Sprintf("connection failed: %v", err)
		return HealthSnapshot{ErrorType: classifyNetworkError(err)}
	}
	defer conn.Close()

	deadline := time.Now().Add(hm.bannerTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		health.Status = "error"
		health.Error = err.Error()
		return HealthSnapshot{ErrorType: "unknown_network_error"}
	}

	banner, err := readBanner(conn)
	health.Banner = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(banner), loginPrompt))
	if err != nil {
		health.Status = "error"
		health.Error = fmt.Sprintf("no login prompt: %v", err)
		return HealthSnapshot{ErrorType: classifyNetworkError(err)}
	}

	health.Status = "ready"
	return HealthSnapshot{}
}

// readBanner reads until the login prompt, the deadline or EOF.
func readBanner(conn net.Conn) (string, error) {
	var received bytes.Buffer
	chunk := make([]byte, 512)
	for received.Len() < 4096 {
		n, err := conn.Read(chunk)
		received.Write(chunk[:n])
		if bytes.Contains(received.Bytes(), []byte(loginPrompt)) {
			return received.String(), nil
		}
		if err != nil {
			return received.String(), err
		}
	}
	return received.String(), fmt.Errorf("banner exceeds %d bytes", received.Len())
}

// GetHealthHistory returns up to limit of the most recent snapshots
func (hm *HealthMonitor) GetHealthHistory(profile string, limit int) []HealthSnapshot {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	history := hm.healthHistory[profile]
	start := 0
	if limit > 0 && len(history) > limit {
		start = len(history) - limit
	}

	result := make([]HealthSnapshot, len(history[start:]))
	copy(result, history[start:])
	return result
}

// GetHealthTrends analyzes the snapshots taken within duration
func (hm *HealthMonitor) GetHealthTrends(profile string, duration time.Duration) (*HealthTrends, error) {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	history, exists := hm.healthHistory[profile]
	if !exists {
		return nil, fmt.Errorf("no health history available for profile '%s'", profile)
	}

	cutoffTime := time.Now().Add(-duration)
	var recentHistory []HealthSnapshot
	for _, snapshot := range history {
		if snapshot.Timestamp.After(cutoffTime) {
			recentHistory = append(recentHistory, snapshot)
		}
	}

	trends := &HealthTrends{
		Profile:           profile,
		AnalysisPeriod:    duration,
		SampleCount:       len(recentHistory),
		AvailabilityTrend: "stable",
	}
	if len(recentHistory) == 0 {
		return trends, nil
	}

	var totalResponseTime time.Duration
	for _, snapshot := range recentHistory {
		totalResponseTime += snapshot.ResponseTime
	}
	trends.UptimePercentage = readyPercent(recentHistory)
	trends.AverageResponseTime = totalResponseTime / time.Duration(len(recentHistory))

	if len(recentHistory) >= 2 {
		half := len(recentHistory) / 2
		before, after := readyPercent(recentHistory[:half]), readyPercent(recentHistory[half:])
		switch {
		case after > before:
			trends.AvailabilityTrend = "improving"
		case after < before:
			trends.AvailabilityTrend = "degrading"
		}
	}

	return trends, nil
}

// ClearHealthHistory removes all history for a profile
func (hm *HealthMonitor) ClearHealthHistory(profile string) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	delete(hm.healthHistory, profile)
}

func readyPercent(snapshots []HealthSnapshot) float64 {
	ready := 0
	for _, snapshot := range snapshots {
		if snapshot.Status == "ready" {
			ready++
		}
	}
	return float64(ready) / float64(len(snapshots)) * 100
}

func (hm *HealthMonitor) recordHealthSnapshot(profile string, snapshot HealthSnapshot) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.healthHistory[profile] = append(hm.healthHistory[profile], snapshot)
	if len(hm.healthHistory[profile]) > hm.maxHistorySize {
		hm.healthHistory[profile] = hm.healthHistory[profile][1:]
	}
}

// classifyNetworkError categorizes network errors for diagnostics
func classifyNetworkError(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") {
		return "connection_refused"
	}
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "no such host") {
		return "dns_failure"
	}
	if strings.Contains(errStr, "network unreachable") {
		return "network_unreachable"
	}
	if strings.Contains(errStr, "EOF") {
		return "closed_by_server"
	}

	return "unknown_network_error"
}
