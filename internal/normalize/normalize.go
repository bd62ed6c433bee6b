// Package normalize implements the pure raw-row to canonical-row transform
// (§4.1). Normalize never returns an error; problematic input degrades to
// nulls plus a companion warning list.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/silverfox/cao-engine/internal/domain"
)

// Normalize converts one raw scraped/uploaded row into its canonical form.
func Normalize(raw domain.RawVehicle, now time.Time) (domain.Vehicle, []domain.NormalizeWarning) {
	var warnings []domain.NormalizeWarning

	vin := strings.ToUpper(strings.TrimSpace(raw.VIN))
	incomplete := len(vin) != 17

	vehicleType, ok := normalizeVehicleType(raw.VehicleType)
	if !ok {
		warnings = append(warnings, domain.NormalizeWarning{Field: "vehicle_type", Message: "unrecognized vehicle type, defaulted to unknown"})
	}

	year, yearWarn := normalizeYear(raw.Year, now)
	if yearWarn != "" {
		warnings = append(warnings, domain.NormalizeWarning{Field: "year", Message: yearWarn})
	}

	mileage, mileageWarn := normalizeMileage(raw.Mileage, vehicleType)
	if mileageWarn != "" {
		warnings = append(warnings, domain.NormalizeWarning{Field: "mileage", Message: mileageWarn})
	}

	price := raw.Price
	if price != nil && price.IsNegative() {
		price = nil
		warnings = append(warnings, domain.NormalizeWarning{Field: "price", Message: "negative price treated as null"})
	}

	v := domain.Vehicle{
		VIN:              vin,
		Location:         raw.Location,
		Stock:            strings.TrimSpace(raw.Stock),
		Year:             year,
		Make:             strings.TrimSpace(raw.Make),
		Model:            strings.TrimSpace(raw.Model),
		Trim:             strings.TrimSpace(raw.Trim),
		Price:            price,
		Mileage:          mileage,
		VehicleType:      vehicleType,
		ExteriorColor:    strings.TrimSpace(raw.ExteriorColor),
		VehicleURL:       raw.VehicleURL,
		PriceFormatted:   formatPrice(price),
		MileageFormatted: formatMileage(mileage),
		FirstScraped:     now,
		LastScraped:      now,
		ScrapeCount:      1,
		Incomplete:       incomplete,
		ImportID:         raw.ImportID,
	}

	if incomplete {
		warnings = append(warnings, domain.NormalizeWarning{Field: "vin", Message: fmt.Sprintf("vin length %d, expected 17", len(vin))})
	}

	return v, warnings
}

func normalizeVehicleType(t domain.VehicleType) (domain.VehicleType, bool) {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "new":
		return domain.VehicleTypeNew, true
	case "used", "pre-owned", "preowned", "po":
		return domain.VehicleTypeUsed, true
	case "certified", "cpo", "certified pre-owned":
		return domain.VehicleTypeCertified, true
	default:
		return domain.VehicleTypeUnknown, false
	}
}

func normalizeYear(y *int, now time.Time) (*int, string) {
	if y == nil {
		return nil, ""
	}
	max := now.Year() + 2
	if *y < 1900 || *y > max {
		return nil, fmt.Sprintf("year %d out of range [1900, %d]", *y, max)
	}
	val := *y
	return &val, ""
}

func normalizeMileage(m *int, vt domain.VehicleType) (*int, string) {
	if m == nil {
		if vt == domain.VehicleTypeNew {
			zero := 0
			return &zero, ""
		}
		return nil, ""
	}
	if *m < 0 {
		return nil, "negative mileage treated as null"
	}
	val := *m
	return &val, ""
}

// ParsePrice accepts a numeric string (possibly with currency symbols and
// thousands separators) and returns a decimal, or nil for blank/"call"/
// "contact"/negative input.
func ParsePrice(raw string) *decimal.Decimal {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "call" || s == "contact" || s == "call for price" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}

func formatPrice(p *decimal.Decimal) string {
	if p == nil {
		return "N/A"
	}
	whole := p.Round(0).IntPart()
	return "$" + thousands(whole)
}

func formatMileage(m *int) string {
	if m == nil {
		return "N/A"
	}
	return thousands(int64(*m)) + " mi"
}

func thousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
