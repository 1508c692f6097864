package model

import (
	"fmt"
	"strings"
)

// Reason is a bit set of the reasons a profile is retained for.
type Reason uint8

const (
	ReasonNone Reason = 0

	ReasonManual     Reason = 1 << 0
	ReasonSlow       Reason = 1 << 1
	ReasonFlameAll   Reason = 1 << 2
	ReasonStackDepth Reason = 1 << 3

	ReasonAll = ReasonManual | ReasonSlow | ReasonFlameAll | ReasonStackDepth
)

// ReasonInfo describes a single reason variant.
type ReasonInfo struct {
	Reason Reason
	Label  string
	// QuotaKey names the quota section in the retention config.
	// Empty for reasons that are not bound by a quota.
	QuotaKey string
	// CacheKey is the suffix identifying the reason in boundary cache keys.
	CacheKey string
}

var reasons = [...]ReasonInfo{
	{Reason: ReasonManual, Label: "manual", CacheKey: "m"},
	{Reason: ReasonSlow, Label: "slow", QuotaKey: "slow", CacheKey: "s"},
	{Reason: ReasonFlameAll, Label: "flameall", CacheKey: "f"},
	{Reason: ReasonStackDepth, Label: "stackdepth", CacheKey: "d"},
}

// Reasons returns all the known reason variants in bit order.
func Reasons() []ReasonInfo {
	r := make([]ReasonInfo, len(reasons))
	copy(r, reasons[:])
	return r
}

// Info returns the variant description of a single-bit reason.
// For combined or unknown values, only Reason and Label are set.
func (r Reason) Info() ReasonInfo {
	for _, info := range reasons {
		if info.Reason == r {
			return info
		}
	}
	return ReasonInfo{Reason: r, Label: r.String()}
}

func (r Reason) Has(x Reason) bool { return r&x != 0 }

func (r Reason) Without(x Reason) Reason { return r &^ x }

// Bits splits the set into single-bit reasons.
func (r Reason) Bits() []Reason {
	var bits []Reason
	for _, info := range reasons {
		if r&info.Reason != 0 {
			bits = append(bits, info.Reason)
		}
	}
	return bits
}

// QuotaBound reports whether the reason is subject to retention quotas.
func (r Reason) QuotaBound() bool { return r.Info().QuotaKey != "" }

// WithoutQuotaBound returns r without its quota-bound reasons.
func (r Reason) WithoutQuotaBound() Reason {
	for _, b := range r.Bits() {
		if b.QuotaBound() {
			r = r.Without(b)
		}
	}
	return r
}

func (r Reason) String() string {
	if r == ReasonNone {
		return "none"
	}
	var labels []string
	for _, info := range reasons {
		if r&info.Reason != 0 {
			labels = append(labels, info.Label)
		}
	}
	if unknown := r &^ ReasonAll; unknown != 0 {
		labels = append(labels, fmt.Sprintf("0x%x", uint8(unknown)))
	}
	return strings.Join(labels, ",")
}

// ParseReason parses a comma separated list of reason labels.
func ParseReason(s string) (Reason, error) {
	var r Reason
	for _, label := range strings.Split(s, ",") {
		label = strings.TrimSpace(strings.ToLower(label))
		if label == "" || label == "none" {
			continue
		}
		var found bool
		for _, info := range reasons {
			if info.Label == label {
				r |= info.Reason
				found = true
				break
			}
		}
		if !found {
			return ReasonNone, ValidationError{fmt.Errorf("unknown reason %q", label)}
		}
	}
	return r, nil
}
