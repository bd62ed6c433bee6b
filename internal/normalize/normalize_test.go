package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_VehicleTypeMapping(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want domain.VehicleType
		warn bool
	}{
		{"New", domain.VehicleTypeNew, false},
		{"used", domain.VehicleTypeUsed, false},
		{"Pre-Owned", domain.VehicleTypeUsed, false},
		{"CPO", domain.VehicleTypeCertified, false},
		{"certified pre-owned", domain.VehicleTypeCertified, false},
		{"demo", domain.VehicleTypeUnknown, true},
		{"", domain.VehicleTypeUnknown, true},
	}
	for _, c := range cases {
		raw := domain.RawVehicle{VIN: "1HGCM82633A004352", VehicleType: domain.VehicleType(c.in)}
		v, warnings := Normalize(raw, now)
		assert.Equal(t, c.want, v.VehicleType, "input %q", c.in)
		if c.warn {
			assert.NotEmpty(t, warnings)
		}
	}
}

func TestNormalize_VINIncompleteFlag(t *testing.T) {
	now := time.Now()

	v, warnings := Normalize(domain.RawVehicle{VIN: "SHORT", VehicleType: domain.VehicleTypeNew}, now)
	assert.True(t, v.Incomplete)
	assert.Contains(t, warningFields(warnings), "vin")

	v2, warnings2 := Normalize(domain.RawVehicle{VIN: "1hgcm82633a004352", VehicleType: domain.VehicleTypeNew}, now)
	assert.False(t, v2.Incomplete)
	assert.Equal(t, "1HGCM82633A004352", v2.VIN)
	assert.NotContains(t, warningFields(warnings2), "vin")
}

func TestNormalize_YearOutOfRangeBecomesNull(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tooOld := 1899
	v, warnings := Normalize(domain.RawVehicle{VIN: "1HGCM82633A004352", Year: &tooOld, VehicleType: domain.VehicleTypeUsed}, now)
	assert.Nil(t, v.Year)
	assert.Contains(t, warningFields(warnings), "year")

	tooNew := now.Year() + 3
	v2, _ := Normalize(domain.RawVehicle{VIN: "1HGCM82633A004352", Year: &tooNew, VehicleType: domain.VehicleTypeUsed}, now)
	assert.Nil(t, v2.Year)

	okYear := now.Year() + 2
	v3, _ := Normalize(domain.RawVehicle{VIN: "1HGCM82633A004352", Year: &okYear, VehicleType: domain.VehicleTypeUsed}, now)
	require.NotNil(t, v3.Year)
	assert.Equal(t, okYear, *v3.Year)
}

func TestNormalize_MileageNewDefaultsToZero(t *testing.T) {
	now := time.Now()

	v, _ := Normalize(domain.RawVehicle{VIN: "1HGCM82633A004352", VehicleType: domain.VehicleTypeNew}, now)
	require.NotNil(t, v.Mileage)
	assert.Equal(t, 0, *v.Mileage)
	assert.Equal(t, "0 mi", v.MileageFormatted)

	v2, _ := Normalize(domain.RawVehicle{VIN: "1HGCM82633A004352", VehicleType: domain.VehicleTypeUsed}, now)
	assert.Nil(t, v2.Mileage)
	assert.Equal(t, "N/A", v2.MileageFormatted)
}

func TestNormalize_NegativeMileageAndPriceBecomeNull(t *testing.T) {
	now := time.Now()
	negMiles := -5
	negPrice := decimal.NewFromInt(-100)

	v, warnings := Normalize(domain.RawVehicle{
		VIN: "1HGCM82633A004352", VehicleType: domain.VehicleTypeUsed,
		Mileage: &negMiles, Price: &negPrice,
	}, now)
	assert.Nil(t, v.Mileage)
	assert.Nil(t, v.Price)
	assert.Equal(t, "N/A", v.PriceFormatted)
	assert.Contains(t, warningFields(warnings), "mileage")
	assert.Contains(t, warningFields(warnings), "price")
}

func TestNormalize_FormattedStrings(t *testing.T) {
	now := time.Now()
	price := decimal.NewFromInt(23500)
	miles := 45210

	v, _ := Normalize(domain.RawVehicle{
		VIN: "1HGCM82633A004352", VehicleType: domain.VehicleTypeUsed,
		Price: &price, Mileage: &miles,
	}, now)
	assert.Equal(t, "$23,500", v.PriceFormatted)
	assert.Equal(t, "45,210 mi", v.MileageFormatted)
}

func TestParsePrice(t *testing.T) {
	cases := map[string]bool{ // input -> expect nil
		"":                true,
		"Call for Price":  true,
		"call":            true,
		"contact":         true,
		"$23,500.00":      false,
		"23500":           false,
		"-500":            true,
	}
	for in, wantNil := range cases {
		got := ParsePrice(in)
		if wantNil {
			assert.Nil(t, got, "input %q", in)
		} else {
			assert.NotNil(t, got, "input %q", in)
		}
	}
}

func warningFields(ws []domain.NormalizeWarning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Field
	}
	return out
}
