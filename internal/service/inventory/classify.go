// Package inventory aggregates and mutates the station battery inventory.
package inventory

import (
	"sort"
	"strings"

	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
)

// Capacity bands by health percentage.
const (
	BandHigh     = "high"     // >= 90
	BandMedium   = "medium"   // 70-89
	BandLow      = "low"      // 50-69
	BandCritical = "critical" // < 50
)

// Model families.
const (
	FamilyTesla   = "tesla"
	FamilyBYD     = "byd"
	FamilyVinFast = "vinfast"
	FamilyOther   = "other"
)

// Condition categories, in priority order.
const (
	ConditionMaintenance = "maintenance"
	ConditionCritical    = "critical"
	ConditionOverheated  = "overheated"
	ConditionAged        = "aged"
	ConditionGood        = "good"
)

// Classification thresholds.
const (
	criticalHealthPercent = 50.0
	overheatTemperature   = 45.0
	agedCycleCount        = 1000
)

// CapacityBand maps a unit to exactly one capacity band.
func CapacityBand(unit *coreapi.BatteryUnit) string {
	switch {
	case unit.HealthPercent >= 90:
		return BandHigh
	case unit.HealthPercent >= 70:
		return BandMedium
	case unit.HealthPercent >= 50:
		return BandLow
	default:
		return BandCritical
	}
}

// ModelFamily maps a unit to a family by substring match on the model name.
func ModelFamily(unit *coreapi.BatteryUnit) string {
	name := strings.ToLower(unit.BatteryModelName)
	switch {
	case strings.Contains(name, "tesla"):
		return FamilyTesla
	case strings.Contains(name, "byd"):
		return FamilyBYD
	case strings.Contains(name, "vinfast"):
		return FamilyVinFast
	default:
		return FamilyOther
	}
}

// ConditionCategory maps a unit to a condition. The first matching rule wins:
// maintenance status beats everything, then critical health, overheating and
// age.
func ConditionCategory(unit *coreapi.BatteryUnit) string {
	switch {
	case unit.Status == coreapi.BatteryStatusMaintenance:
		return ConditionMaintenance
	case unit.HealthPercent < criticalHealthPercent:
		return ConditionCritical
	case unit.Temperature > overheatTemperature:
		return ConditionOverheated
	case unit.CycleCount > agedCycleCount:
		return ConditionAged
	default:
		return ConditionGood
	}
}

// Stats is the inventory summary.
type Stats struct {
	Total         int            `json:"total"`
	ByCapacity    map[string]int `json:"by_capacity"`
	ByFamily      map[string]int `json:"by_family"`
	ByCondition   map[string]int `json:"by_condition"`
	ByStatus      map[string]int `json:"by_status"`
	FullCount     int            `json:"full_count"`
	ReservedCount int            `json:"reserved_count"`
}

// StatusNames maps battery status codes to display names.
var StatusNames = map[int]string{
	coreapi.BatteryStatusEmpty:       "Empty",
	coreapi.BatteryStatusCharging:    "Charging",
	coreapi.BatteryStatusFull:        "Full",
	coreapi.BatteryStatusMaintenance: "Maintenance",
	coreapi.BatteryStatusIssued:      "Issued",
}

// Summarize counts units per capacity band, model family, condition category
// and status. Station inventories are tens to low hundreds of units, so the
// repeated passes per category are fine.
func Summarize(units []coreapi.BatteryUnit) *Stats {
	stats := &Stats{
		Total:       len(units),
		ByCapacity:  map[string]int{BandHigh: 0, BandMedium: 0, BandLow: 0, BandCritical: 0},
		ByFamily:    map[string]int{FamilyTesla: 0, FamilyBYD: 0, FamilyVinFast: 0, FamilyOther: 0},
		ByCondition: map[string]int{ConditionMaintenance: 0, ConditionCritical: 0, ConditionOverheated: 0, ConditionAged: 0, ConditionGood: 0},
		ByStatus:    map[string]int{},
	}

	for i := range units {
		unit := &units[i]
		stats.ByCapacity[CapacityBand(unit)]++
		stats.ByFamily[ModelFamily(unit)]++
		stats.ByCondition[ConditionCategory(unit)]++

		name, ok := StatusNames[unit.Status]
		if !ok {
			name = "Unknown"
		}
		stats.ByStatus[name]++

		if unit.Status == coreapi.BatteryStatusFull {
			stats.FullCount++
		}
		if unit.IsReserved {
			stats.ReservedCount++
		}
	}
	return stats
}

// Filter keys accepted by FilterAndSort. A bare key works while it names
// exactly one category; "critical" is both a capacity band and a condition,
// so it must be qualified with its axis, as in "capacity:critical" or
// "condition:critical".
const (
	FilterAll = "all"

	axisCapacity  = "capacity"
	axisFamily    = "family"
	axisCondition = "condition"
)

// Sort keys accepted by FilterAndSort.
const (
	SortHealthDesc      = "health"
	SortCyclesDesc      = "cycles"
	SortTemperatureDesc = "temperature"
	SortVoltageDesc     = "voltage"
	SortModelAsc        = "model"
	SortStatusAsc       = "status"
	SortSlotAsc         = "slot"
)

// FilterAndSort selects units matching filterKey and orders them by sortKey.
// filterKey is "all", a bare category name or an axis-qualified key like
// "condition:critical"; unknown and ambiguous keys match nothing. The default
// order is by slot.
func FilterAndSort(units []coreapi.BatteryUnit, filterKey, sortKey string) []coreapi.BatteryUnit {
	result := make([]coreapi.BatteryUnit, 0, len(units))
	for i := range units {
		if matchesFilter(&units[i], filterKey) {
			result = append(result, units[i])
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := &result[i], &result[j]
		switch sortKey {
		case SortHealthDesc:
			return a.HealthPercent > b.HealthPercent
		case SortCyclesDesc:
			return a.CycleCount > b.CycleCount
		case SortTemperatureDesc:
			return a.Temperature > b.Temperature
		case SortVoltageDesc:
			return a.Voltage > b.Voltage
		case SortModelAsc:
			return a.BatteryModelName < b.BatteryModelName
		case SortStatusAsc:
			return a.Status < b.Status
		default:
			return a.SlotNumber < b.SlotNumber
		}
	})
	return result
}

func matchesFilter(unit *coreapi.BatteryUnit, filterKey string) bool {
	if axis, key, ok := strings.Cut(filterKey, ":"); ok {
		switch axis {
		case axisCapacity:
			return CapacityBand(unit) == key
		case axisFamily:
			return ModelFamily(unit) == key
		case axisCondition:
			return ConditionCategory(unit) == key
		default:
			return false
		}
	}

	switch filterKey {
	case FilterAll, "":
		return true
	case BandHigh, BandMedium, BandLow:
		return CapacityBand(unit) == filterKey
	case FamilyTesla, FamilyBYD, FamilyVinFast, FamilyOther:
		return ModelFamily(unit) == filterKey
	case ConditionMaintenance, ConditionOverheated, ConditionAged, ConditionGood:
		return ConditionCategory(unit) == filterKey
	default:
		// bare "critical" lands here too: the band and the condition are
		// different predicates, callers must pick an axis
		return false
	}
}
