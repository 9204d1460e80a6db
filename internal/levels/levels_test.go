package levels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFallsBackToNone(t *testing.T) {
	assert.Equal(t, ModeNone, Get("turbo").Mode)
	assert.Equal(t, ModeNone, Get("").Mode)
}

func TestPresetModes(t *testing.T) {
	assert.Equal(t, ModeNone, Get(None).Mode)
	assert.Equal(t, ModeSmart, Get(Min).Mode)
	assert.Equal(t, ModeAll, Get(Med).Mode)
	assert.Equal(t, ModeAll, Get(Max).Mode)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(None))
	assert.True(t, Valid(Max))
	assert.False(t, Valid(""))
	assert.False(t, Valid("medium"))
}

func TestImageParams(t *testing.T) {
	p, ok := ImageParams(Med)
	assert.True(t, ok)
	assert.Equal(t, 75, p.QStart)
	assert.Equal(t, 1280, p.MaxSide)

	// None and unknown levels leave images alone.
	_, ok = ImageParams(None)
	assert.False(t, ok)
	_, ok = ImageParams("bogus")
	assert.False(t, ok)
}

func TestMinPresetKeepsFullResolution(t *testing.T) {
	p, _ := ImageParams(Min)
	assert.Zero(t, p.MaxSide)
	assert.True(t, p.KeepMin > 0)
}

func TestResolve(t *testing.T) {
	perPage := []Level{Min, "", "bogus", Max}

	// Valid per-page entry wins.
	assert.Equal(t, Min, Resolve(perPage, Med, 0))
	assert.Equal(t, Max, Resolve(perPage, Med, 3))

	// Empty or invalid entries fall back to the global level.
	assert.Equal(t, Med, Resolve(perPage, Med, 1))
	assert.Equal(t, Med, Resolve(perPage, Med, 2))

	// Out-of-range index falls back too.
	assert.Equal(t, Med, Resolve(perPage, Med, 9))

	// No usable level anywhere means no compression.
	assert.Equal(t, None, Resolve(nil, "", 0))
	assert.Equal(t, None, Resolve(perPage, "bogus", 1))
}
