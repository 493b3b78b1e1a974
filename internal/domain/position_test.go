package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition_UnrealizedR_Long(t *testing.T) {
	p := Position{Size: 1, EntryPrice: 100, InitialR: 5}
	assert.InDelta(t, 2.0, p.UnrealizedR(110), 1e-9)
}

func TestPosition_UnrealizedR_Short(t *testing.T) {
	p := Position{Size: -1, EntryPrice: 100, InitialR: 5}
	assert.InDelta(t, 2.0, p.UnrealizedR(90), 1e-9)
}

func TestPosition_UnrealizedR_ZeroInitialR(t *testing.T) {
	p := Position{Size: 1, EntryPrice: 100, InitialR: 0}
	assert.Equal(t, 0.0, p.UnrealizedR(110))
}

func TestPosition_StopIsOnLossSide_LongOK(t *testing.T) {
	p := Position{State: PositionOpen, Size: 1, EntryPrice: 100, StopPrice: 95}
	assert.True(t, p.StopIsOnLossSide())
}

func TestPosition_StopIsOnLossSide_LongWrongSide(t *testing.T) {
	p := Position{State: PositionOpen, Size: 1, EntryPrice: 100, StopPrice: 105}
	assert.False(t, p.StopIsOnLossSide())
}

func TestPosition_StopIsOnLossSide_ShortOK(t *testing.T) {
	p := Position{State: PositionOpen, Size: -1, EntryPrice: 100, StopPrice: 105}
	assert.True(t, p.StopIsOnLossSide())
}

func TestPosition_StopIsOnLossSide_FlatAlwaysOK(t *testing.T) {
	p := Position{State: PositionFlat}
	assert.True(t, p.StopIsOnLossSide())
}

func TestPosition_HasTakenLevel(t *testing.T) {
	p := Position{Partials: []ProfitTargetHit{{RMultiple: 1.0}, {RMultiple: 2.0}}}
	assert.True(t, p.HasTakenLevel(1.0))
	assert.False(t, p.HasTakenLevel(3.0))
}
