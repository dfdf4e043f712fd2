package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyConfig mirrors the strategy YAML file: indicator params and decision rules.
type StrategyConfig struct {
	Params Params `yaml:"params"`
	Rules  Rules  `yaml:"rules"`
}

type Params struct {
	EMAFast      int        `yaml:"ema_fast"`
	EMASlow      int        `yaml:"ema_slow"`
	RSILen       int        `yaml:"rsi_len"`
	ADXLen       int        `yaml:"adx_len"`
	ATRLen       int        `yaml:"atr_len"`
	BreakoutBars int        `yaml:"breakout_bars"`
	PSAR         PSARParams `yaml:"psar"`
}

type PSARParams struct {
	AF    float64 `yaml:"af"`
	MaxAF float64 `yaml:"max_af"`
}

type Rules struct {
	ADXMin             float64 `yaml:"adx_min"`
	EMA50SlopeLookback int     `yaml:"ema50_slope_lookback"`
	PullbackATRFrac    float64 `yaml:"pullback_atr_frac"`
	SLATRMult          float64 `yaml:"sl_atr_mult"`
	TPATRMult          float64 `yaml:"tp_atr_mult"`
	BreakoutATRBuffer  float64 `yaml:"breakout_atr_buffer"`
	BreakoutSLMult     float64 `yaml:"breakout_sl_mult"`
	BreakoutTPMult     float64 `yaml:"breakout_tp_mult"`
}

func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		Params: Params{
			EMAFast:      50,
			EMASlow:      200,
			RSILen:       14,
			ADXLen:       14,
			ATRLen:       14,
			BreakoutBars: 10,
			PSAR:         PSARParams{AF: 0.02, MaxAF: 0.2},
		},
		Rules: Rules{
			ADXMin:             0,
			EMA50SlopeLookback: 50,
			PullbackATRFrac:    0.25,
			SLATRMult:          1.5,
			TPATRMult:          2.0,
			BreakoutATRBuffer:  0.25,
			BreakoutSLMult:     1.0,
			BreakoutTPMult:     1.5,
		},
	}
}

// LoadStrategy reads the YAML file at path. An empty path yields the defaults.
func LoadStrategy(path string) (StrategyConfig, error) {
	if path == "" {
		return DefaultStrategy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return StrategyConfig{}, fmt.Errorf("read strategy config: %w", err)
	}
	var cfg StrategyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StrategyConfig{}, fmt.Errorf("parse strategy config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (s *StrategyConfig) applyDefaults() {
	d := DefaultStrategy()
	p, r := &s.Params, &s.Rules

	intOr(&p.EMAFast, d.Params.EMAFast)
	intOr(&p.EMASlow, d.Params.EMASlow)
	intOr(&p.RSILen, d.Params.RSILen)
	intOr(&p.ADXLen, d.Params.ADXLen)
	intOr(&p.ATRLen, d.Params.ATRLen)
	intOr(&p.BreakoutBars, d.Params.BreakoutBars)
	floatOr(&p.PSAR.AF, d.Params.PSAR.AF)
	floatOr(&p.PSAR.MaxAF, d.Params.PSAR.MaxAF)

	if r.ADXMin < 0 {
		r.ADXMin = 0
	}
	intOr(&r.EMA50SlopeLookback, d.Rules.EMA50SlopeLookback)
	floatOr(&r.PullbackATRFrac, d.Rules.PullbackATRFrac)
	floatOr(&r.SLATRMult, d.Rules.SLATRMult)
	floatOr(&r.TPATRMult, d.Rules.TPATRMult)
	floatOr(&r.BreakoutATRBuffer, d.Rules.BreakoutATRBuffer)
	floatOr(&r.BreakoutSLMult, d.Rules.BreakoutSLMult)
	floatOr(&r.BreakoutTPMult, d.Rules.BreakoutTPMult)
}

func intOr(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func floatOr(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}
