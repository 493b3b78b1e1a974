package ports

import (
	"context"
	"time"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

// OHLCVCache persiste bars por (symbol, timeframe, timestamp). Las
// escrituras deben ser lo bastante transaccionales como para que un
// crash a mitad de escritura no deje filas parciales visibles para ese
// (symbol, timeframe, rango).
type OHLCVCache interface {
	// GetRange devuelve los bars en caché dentro de [from, to]; no
	// consulta el exchange.
	GetRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error)

	// MissingTimestamps calcula, dado un rango esperado, qué timestamps
	// alineados al timeframe faltan en caché.
	MissingTimestamps(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]time.Time, error)

	// PutBars escribe bars en una sola transacción; un bar con la misma
	// clave ya presente se sobrescribe (upsert).
	PutBars(ctx context.Context, bars []domain.Bar) error

	Close() error
}

// Validator aplica las comprobaciones de sanidad sobre bars ya obtenidos.
// Las fallas son warnings no fatales: se registran con una etiqueta
// estructurada y no eliminan bars de los datos.
type Validator interface {
	// ValidateSanity revisa low<=open,close<=high y volumen no negativo.
	ValidateSanity(bars []domain.Bar) []error

	// DetectGaps encuentra timestamps faltantes dentro del rango dado.
	DetectGaps(bars []domain.Bar, tf domain.Timeframe, from, to time.Time) []time.Time

	// DetectSpikes marca bars cuyo z-score de log-retorno frente a una
	// ventana móvil supera el umbral configurado.
	DetectSpikes(bars []domain.Bar, lookback int, zThreshold float64) []domain.Bar
}
