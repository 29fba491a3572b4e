package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModels_Get(t *testing.T) {
	m := Models{
		TierSmall: {Name: "haiku", MaxChars: 8000},
		TierLarge: {Name: "opus", MaxChars: 20000},
	}

	assert.Equal(t, "haiku", m.Get(TierSmall).Name)
	assert.Equal(t, "opus", m.Get(TierLarge).Name)
	// Medium is unset; the next larger tier serves it.
	assert.Equal(t, "opus", m.Get(TierMedium).Name)
}

func TestModels_GetFallsBackToSmaller(t *testing.T) {
	m := Models{TierSmall: {Name: "haiku"}}
	assert.Equal(t, "haiku", m.Get(TierLarge).Name)
}

func TestModels_GetEmpty(t *testing.T) {
	assert.Equal(t, Model{}, Models{}.Get(TierMedium))
}
