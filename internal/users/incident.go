package users

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

// IncidentFileName is the incident log inside the data directory.
const IncidentFileName = "security_incidents.log"

// Incident types written by the user manager.
const (
	IncidentDeletion         = "DELETION_ATTEMPT"
	IncidentQuotaDeletion    = "QUOTA_DELETION_ATTEMPT"
	IncidentModification     = "MODIFICATION_ATTEMPT"
	IncidentUserModification = "USER_MODIFICATION_ATTEMPT"
	IncidentSessionEnd       = "SESSION_END_ATTEMPT"
)

const unknownActor = "UNKNOWN"

// Severity is CRITICAL for deletion attempts and HIGH otherwise.
func Severity(incidentType string) string {
	if strings.Contains(incidentType, "DELETION") {
		return "CRITICAL"
	}
	return "HIGH"
}

// IncidentLog appends one line per incident:
//
//	2025-06-10T08:00:00.000000 - DELETION_ATTEMPT - Target: Mohamed Abdo - Actor: eve
type IncidentLog struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewIncidentLog(dataDir string) *IncidentLog {
	return &IncidentLog{path: filepath.Join(dataDir, IncidentFileName), now: time.Now}
}

// Path returns the log file location.
func (il *IncidentLog) Path() string {
	return il.path
}

// Append writes one incident line.
func (il *IncidentLog) Append(incidentType, target, actor string) error {
	if actor == "" {
		actor = unknownActor
	}
	line := fmt.Sprintf("%s - %s - Target: %s - Actor: %s\n", timex.Format(il.now()), incidentType, target, actor)

	il.mu.Lock()
	defer il.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(il.path), 0o770); err != nil {
		return err
	}
	f, err := os.OpenFile(il.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *Manager) incident(ctx context.Context, incidentType, target, actor string) {
	m.logger.Critical(ctx, "security incident",
		"type", incidentType,
		"target_user", target,
		"actor_user", actor,
		"severity", Severity(incidentType),
	)
	if m.incidents == nil {
		return
	}
	if err := m.incidents.Append(incidentType, target, actor); err != nil {
		m.logger.Error(ctx, "writing incident log failed", "error", err)
	}
}
