package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rustradar/rustradar/internal/logging"
	"github.com/rustradar/rustradar/internal/models"
)

// Report is the daily operational summary written next to the backups.
type Report struct {
	GeneratedAt      time.Time    `json:"generated_at"`
	UptimeSeconds    float64      `json:"uptime_seconds"`
	ConnectedClients int          `json:"connected_clients"`
	Stats            models.Stats `json:"stats"`
}

// WriteReport generates the dated report file for today and returns its
// path.
func (s *Store) WriteReport(reportDir string, uptime time.Duration, connectedClients int) (string, error) {
	report := Report{
		GeneratedAt:      time.Now(),
		UptimeSeconds:    uptime.Seconds(),
		ConnectedClients: connectedClients,
		Stats:            s.Stats(),
	}

	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(reportDir, fmt.Sprintf("report-%s.json", time.Now().Format("2006-01-02")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Info("Daily report written", logging.WithField("path", path))
	return path, nil
}
