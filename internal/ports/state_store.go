package ports

import (
	"context"
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// StateDocument is the single persistent document:
// positions, cooldowns, day-equity fields, equity history, symbol stats,
// circuit-breaker state, and a heartbeat timestamp.
type StateDocument struct {
	Positions      map[string]domain.Position
	Cooldowns      map[string]domain.CooldownEntry
	Risk           domain.RiskState
	Equity         domain.EquityHistory
	SymbolStats    map[string]domain.SymbolStats
	Breaker        domain.APICircuitBreaker
	HeartbeatAt    time.Time
}

// StateStore owns the persistent document exclusively (ownership
// note). Reads tolerate absence (return defaults) and corrupt JSON (log
// and return defaults, never crash). Writes are atomic: temp file in the
// same directory, fsync, rename.
type StateStore interface {
	Load(ctx context.Context) (StateDocument, error)
	Save(ctx context.Context, doc StateDocument) error

	// Heartbeat updates the sibling heartbeat file's timestamp without
	// rewriting the full document.
	Heartbeat(ctx context.Context, at time.Time) error

	// EmergencyStopActive reports whether the zero-byte EMERGENCY_STOP
	// sentinel file is present next to the state file.
	EmergencyStopActive() bool
}
