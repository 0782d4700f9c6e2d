package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fleemy/internal/core"
	"fleemy/internal/planning"
	"fleemy/internal/revenue"
)

// PolicyFile is the YAML form of the planning policy. Unset keys keep the
// value coming from the environment.
//
//	client_name_required: true
//	overlay_tasks: false
//	hourly_rate: "65.00"
//	earnings_source: remote
//	timezone: Europe/Rome
//	first_hour: 8
//	last_hour: 19
type PolicyFile struct {
	ClientNameRequired *bool    `yaml:"client_name_required,omitempty"`
	OverlayTasks       *bool    `yaml:"overlay_tasks,omitempty"`
	HourlyRate         string   `yaml:"hourly_rate,omitempty"`
	EarningsSource     string   `yaml:"earnings_source,omitempty"`
	Timezone           string   `yaml:"timezone,omitempty"`
	FirstHour          *int     `yaml:"first_hour,omitempty"`
	LastHour           *int     `yaml:"last_hour,omitempty"`
	Slots              []string `yaml:"slots,omitempty"`
}

// LoadPolicyFile reads and decodes a policy file.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	if path == "" {
		return nil, errors.New("policy path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode policy file %s: %w", path, err)
	}
	return &pf, nil
}

// Apply overlays the file on p.
func (pf *PolicyFile) Apply(p planning.Policy) (planning.Policy, error) {
	if pf.ClientNameRequired != nil {
		p.ClientNameRequired = *pf.ClientNameRequired
	}
	if pf.OverlayTasks != nil {
		p.OverlayTasks = *pf.OverlayTasks
	}
	if pf.HourlyRate != "" {
		rate, err := parseRate(pf.HourlyRate)
		if err != nil {
			return p, err
		}
		p.HourlyRate = rate
	}
	if pf.EarningsSource != "" {
		if pf.EarningsSource != revenue.SourceLocal && pf.EarningsSource != revenue.SourceRemote {
			return p, fmt.Errorf("invalid earnings source %q", pf.EarningsSource)
		}
		p.EarningsSource = pf.EarningsSource
	}
	if pf.Timezone != "" {
		loc, err := time.LoadLocation(pf.Timezone)
		if err != nil {
			return p, fmt.Errorf("invalid timezone %q: %w", pf.Timezone, err)
		}
		p.Location = loc
	}

	switch {
	case len(pf.Slots) > 0:
		slots := make([]core.Clock, 0, len(pf.Slots))
		for _, s := range pf.Slots {
			c, err := core.ParseClock(s)
			if err != nil {
				return p, fmt.Errorf("invalid slot %q: %w", s, err)
			}
			if c.Minute() != 0 {
				return p, fmt.Errorf("slot %s does not start on the hour", c)
			}
			if len(slots) > 0 && !slots[len(slots)-1].Before(c) {
				return p, fmt.Errorf("slots must be increasing, got %s after %s", c, slots[len(slots)-1])
			}
			slots = append(slots, c)
		}
		p.Slots = slots
	case pf.FirstHour != nil || pf.LastHour != nil:
		first, last := 9, 18
		if pf.FirstHour != nil {
			first = *pf.FirstHour
		}
		if pf.LastHour != nil {
			last = *pf.LastHour
		}
		if first < 0 || last > 24 || last <= first {
			return p, fmt.Errorf("invalid slot hours %d-%d", first, last)
		}
		p.Slots = core.HourlySlots(first, last)
	}
	return p, nil
}

// Policy builds the planning policy from the environment and, when set, the
// policy file.
func (c *Config) Policy() (planning.Policy, error) {
	p := planning.DefaultPolicy()
	p.ClientNameRequired = c.ClientNameRequired
	if c.EarningsSource != "" {
		p.EarningsSource = c.EarningsSource
	}
	if c.HourlyRate != "" {
		rate, err := parseRate(c.HourlyRate)
		if err != nil {
			return p, err
		}
		p.HourlyRate = rate
	}
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return p, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
		p.Location = loc
	}
	if c.PolicyFile == "" {
		return p, nil
	}
	pf, err := LoadPolicyFile(c.PolicyFile)
	if err != nil {
		return p, err
	}
	return pf.Apply(p)
}

func parseRate(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(s))
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid hourly rate %q: %w", s, err)
	}
	if cents <= 0 {
		return core.Money{}, fmt.Errorf("invalid hourly rate %q: must be positive", s)
	}
	return core.Cents(cents), nil
}
