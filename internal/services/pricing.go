package services

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/models"
)

// unit rates per fuel type
var fuelRates = map[models.FuelType]decimal.Decimal{
	models.FuelDiesel:   decimal.NewFromInt(10),
	models.FuelPetrol:   decimal.NewFromInt(100),
	models.FuelElectric: decimal.NewFromInt(1000),
}

// Quote is the frozen price snapshot stored on an order.
type Quote struct {
	Price float64
	Final float64
}

func price(fuelType models.FuelType, amount float64) (decimal.Decimal, error) {
	rate, ok := fuelRates[fuelType]
	if !ok {
		return decimal.Zero, apperr.InvalidInput(fmt.Sprintf("invalid fuel type %q", fuelType))
	}
	if amount < 0 {
		return decimal.Zero, apperr.InvalidInput("amount must not be negative")
	}
	return rate.Mul(decimal.NewFromFloat(amount)).Round(2), nil
}

// Price is amount times the unit rate of fuelType.
func Price(fuelType models.FuelType, amount float64) (float64, error) {
	p, err := price(fuelType, amount)
	if err != nil {
		return 0, err
	}
	return p.InexactFloat64(), nil
}

// QuoteOrder computes price and the total payable, price + deliveryFee + tip.
func QuoteOrder(fuelType models.FuelType, amount, deliveryFee, tip float64) (Quote, error) {
	p, err := price(fuelType, amount)
	if err != nil {
		return Quote{}, err
	}
	if deliveryFee < 0 || tip < 0 {
		return Quote{}, apperr.InvalidInput("deliveryFee and tip must not be negative")
	}
	final := p.Add(decimal.NewFromFloat(deliveryFee)).Add(decimal.NewFromFloat(tip)).Round(2)
	return Quote{Price: p.InexactFloat64(), Final: final.InexactFloat64()}, nil
}

// ApplyDiscount takes percent off amount.
func ApplyDiscount(amount, percent float64) float64 {
	a := decimal.NewFromFloat(amount)
	off := a.Mul(decimal.NewFromFloat(percent)).Div(decimal.NewFromInt(100))
	return a.Sub(off).Round(2).InexactFloat64()
}
