package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/models"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name     string
		fuelType models.FuelType
		amount   float64
		want     float64
		wantErr  bool
	}{
		{"diesel", models.FuelDiesel, 5, 50, false},
		{"petrol", models.FuelPetrol, 2.5, 250, false},
		{"electric", models.FuelElectric, 1, 1000, false},
		{"zero amount", models.FuelDiesel, 0, 0, false},
		{"fractional", models.FuelDiesel, 0.333, 3.33, false},
		{"unknown fuel", models.FuelType("Kerosene"), 1, 0, true},
		{"negative amount", models.FuelPetrol, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(tt.fuelType, tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteOrder(t *testing.T) {
	t.Run("final is price plus fee plus tip", func(t *testing.T) {
		q, err := QuoteOrder(models.FuelPetrol, 3, 4.99, 2.01)
		require.NoError(t, err)
		assert.Equal(t, 300.0, q.Price)
		assert.Equal(t, 307.0, q.Final)
	})

	t.Run("no float drift", func(t *testing.T) {
		q, err := QuoteOrder(models.FuelDiesel, 0.1, 0.2, 0)
		require.NoError(t, err)
		assert.Equal(t, 1.0, q.Price)
		assert.Equal(t, 1.2, q.Final)
	})

	t.Run("negative fee", func(t *testing.T) {
		_, err := QuoteOrder(models.FuelDiesel, 1, -1, 0)
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})

	t.Run("unknown fuel", func(t *testing.T) {
		_, err := QuoteOrder("Hydrogen", 1, 0, 0)
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})
}

func TestApplyDiscount(t *testing.T) {
	assert.Equal(t, 90.0, ApplyDiscount(100, 10))
	assert.Equal(t, 0.0, ApplyDiscount(100, 100))
	assert.Equal(t, 66.66, ApplyDiscount(99.99, 33.33))
	assert.Equal(t, 100.0, ApplyDiscount(100, 0))
}
