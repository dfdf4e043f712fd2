package domain

import (
	"encoding/json"
	"math"
)

// Prices are NaN when unavailable. JSON has no NaN, so they travel as null.

func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(struct {
		alias
		Entry *float64 `json:"entry"`
		SL    *float64 `json:"sl"`
		TP    *float64 `json:"tp"`
	}{alias(r), finite(r.Entry), finite(r.SL), finite(r.TP)})
}

func (r *Report) UnmarshalJSON(data []byte) error {
	type alias Report
	aux := struct {
		*alias
		Entry *float64 `json:"entry"`
		SL    *float64 `json:"sl"`
		TP    *float64 `json:"tp"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Entry, r.SL, r.TP = orNaN(aux.Entry), orNaN(aux.SL), orNaN(aux.TP)
	return nil
}

type levelsJSON struct {
	Price    *float64 `json:"price"`
	DayHigh  *float64 `json:"day_high"`
	DayLow   *float64 `json:"day_low"`
	H1High   *float64 `json:"h1_high"`
	H1Low    *float64 `json:"h1_low"`
	High24h  *float64 `json:"high_24h"`
	Low24h   *float64 `json:"low_24h"`
	VIXClose *float64 `json:"vix"`
}

func (l Levels) MarshalJSON() ([]byte, error) {
	return json.Marshal(levelsJSON{
		Price:    finite(l.Price),
		DayHigh:  finite(l.DayHigh),
		DayLow:   finite(l.DayLow),
		H1High:   finite(l.H1High),
		H1Low:    finite(l.H1Low),
		High24h:  finite(l.High24h),
		Low24h:   finite(l.Low24h),
		VIXClose: finite(l.VIXClose),
	})
}

func (l *Levels) UnmarshalJSON(data []byte) error {
	var aux levelsJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Levels{
		Price:    orNaN(aux.Price),
		DayHigh:  orNaN(aux.DayHigh),
		DayLow:   orNaN(aux.DayLow),
		H1High:   orNaN(aux.H1High),
		H1Low:    orNaN(aux.H1Low),
		High24h:  orNaN(aux.High24h),
		Low24h:   orNaN(aux.Low24h),
		VIXClose: orNaN(aux.VIXClose),
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
