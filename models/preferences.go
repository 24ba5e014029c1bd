package models

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator"
)

type Occasion string

const (
	OccasionStreet Occasion = "Street"
	OccasionWork   Occasion = "Work"
	OccasionGym    Occasion = "Gym"
	OccasionDate   Occasion = "Date"
	OccasionTravel Occasion = "Travel"
)

var Occasions = []Occasion{OccasionStreet, OccasionWork, OccasionGym, OccasionDate, OccasionTravel}

type Fit string

const (
	FitSlim      Fit = "Slim"
	FitRegular   Fit = "Regular"
	FitOversized Fit = "Oversized"
)

var Fits = []Fit{FitSlim, FitRegular, FitOversized}

type Weather string

const (
	WeatherWarm Weather = "Warm"
	WeatherCold Weather = "Cold"
	WeatherRain Weather = "Rain"
)

var Weathers = []Weather{WeatherWarm, WeatherCold, WeatherRain}

type Budget string

const (
	BudgetLow  Budget = "$"
	BudgetMid  Budget = "$$"
	BudgetHigh Budget = "$$$"
)

var Budgets = []Budget{BudgetLow, BudgetMid, BudgetHigh}

type VariationName string

const (
	VariationMinimal  VariationName = "Minimal"
	VariationStreet   VariationName = "Street"
	VariationElevated VariationName = "Elevated"
)

var VariationNames = []VariationName{VariationMinimal, VariationStreet, VariationElevated}

type BodyZone string

const (
	BodyZoneHead        BodyZone = "head"
	BodyZoneTorso       BodyZone = "torso"
	BodyZoneLegs        BodyZone = "legs"
	BodyZoneFeet        BodyZone = "feet"
	BodyZoneAccessories BodyZone = "accessories"
)

var BodyZones = []BodyZone{BodyZoneHead, BodyZoneTorso, BodyZoneLegs, BodyZoneFeet, BodyZoneAccessories}

func IsBodyZone(value string) bool {
	return slices.Contains(BodyZones, BodyZone(value))
}

func IsVariationName(value string) bool {
	return slices.Contains(VariationNames, VariationName(value))
}

func ValidateOccasion(fl validator.FieldLevel) bool {
	return slices.Contains(Occasions, Occasion(fl.Field().String()))
}

func ValidateFit(fl validator.FieldLevel) bool {
	return slices.Contains(Fits, Fit(fl.Field().String()))
}

func ValidateWeather(fl validator.FieldLevel) bool {
	return slices.Contains(Weathers, Weather(fl.Field().String()))
}

func ValidateBudget(fl validator.FieldLevel) bool {
	return slices.Contains(Budgets, Budget(fl.Field().String()))
}

// FileReader output is `data:image/png;base64,...`; extra parameters before base64 are tolerated.
var dataImageRule = regexp.MustCompile(`^data:image/[a-zA-Z0-9+]+(;[^;]+)*;base64,[A-Za-z0-9+/=\s]+$`)

func ValidateItemImage(fl validator.FieldLevel) bool {
	return ValidateItemImageRaw(fl.Field().String())
}

func ValidateItemImageRaw(value string) bool {
	if strings.HasPrefix(value, "data:") {
		return dataImageRule.MatchString(value)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https":
		return parsed.Host != ""
	case "blob":
		return parsed.Opaque != "" || parsed.Host != "" || parsed.Path != ""
	}
	return false
}

func ValidateVariationName(fl validator.FieldLevel) bool {
	return IsVariationName(fl.Field().String())
}

func ValidateBodyZone(fl validator.FieldLevel) bool {
	return IsBodyZone(fl.Field().String())
}
