package focus

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ViolationKind is a category of disqualifying condition.
type ViolationKind string

const (
	KindTabSwitch       ViolationKind = "tab_switch"
	KindWindowMinimized ViolationKind = "window_minimized"
	KindSplitScreen     ViolationKind = "split_screen"
	KindEyeAway         ViolationKind = "eye_away"
	KindUnauthorizedURL ViolationKind = "unauthorized_url"
	KindCameraOff       ViolationKind = "camera_off"
)

// Kinds lists every violation kind in evaluation order. Warnings are requested in this order,
// so the last active kind in the list wins the screen when several cross their threshold together.
var Kinds = []ViolationKind{
	KindTabSwitch,
	KindWindowMinimized,
	KindSplitScreen,
	KindEyeAway,
	KindUnauthorizedURL,
	KindCameraOff,
}

// Valid reports whether k is a known kind.
func (k ViolationKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Mode selects warning copy. Exam copy is stricter and shorter.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeExam     Mode = "exam"
)

// KindPolicy holds the per-kind thresholds.
type KindPolicy struct {
	Grace     time.Duration `yaml:"grace"`
	WarnAfter time.Duration `yaml:"warn_after"`
	Penalty   float64       `yaml:"penalty"`
	Countdown bool          `yaml:"countdown"`
}

// Policy configures a monitoring session.
type Policy struct {
	TickInterval  time.Duration                `yaml:"tick_interval"`
	RecoveryRate  float64                      `yaml:"recovery_rate"`
	FallbackFlush time.Duration                `yaml:"fallback_flush"`
	AutoDismiss   time.Duration                `yaml:"auto_dismiss"`
	SplitRatio    float64                      `yaml:"split_ratio"`
	Mode          Mode                         `yaml:"mode"`
	AllowedHosts  []string                     `yaml:"allowed_hosts"`
	BlockedHosts  []string                     `yaml:"blocked_hosts"`
	Kinds         map[ViolationKind]KindPolicy `yaml:"kinds"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		TickInterval:  5 * time.Second,
		RecoveryRate:  0.5,
		FallbackFlush: 30 * time.Second,
		AutoDismiss:   5 * time.Second,
		SplitRatio:    0.8,
		Mode:          ModeStandard,
		Kinds: map[ViolationKind]KindPolicy{
			KindTabSwitch:       {Grace: 10 * time.Second, WarnAfter: 0, Penalty: 2, Countdown: true},
			KindWindowMinimized: {Grace: 10 * time.Second, WarnAfter: 10 * time.Second, Penalty: 2},
			KindSplitScreen:     {Grace: 15 * time.Second, WarnAfter: 15 * time.Second, Penalty: 1},
			KindEyeAway:         {Grace: 5 * time.Second, WarnAfter: 5 * time.Second, Penalty: 1},
			KindUnauthorizedURL: {Grace: 5 * time.Second, WarnAfter: 0, Penalty: 3, Countdown: true},
			KindCameraOff:       {Grace: 30 * time.Second, WarnAfter: 30 * time.Second, Penalty: 1},
		},
	}
}

// For returns the policy of kind k.
func (p Policy) For(k ViolationKind) KindPolicy {
	return p.Kinds[k]
}

// LoadPolicy reads a YAML policy file on top of DefaultPolicy. Keys missing from the
// file keep their defaults, including the fields of a kind that is only partly given.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy: %w", err)
	}
	var file struct {
		Kinds map[ViolationKind]yaml.Node `yaml:"kinds"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return p, fmt.Errorf("parse policy: %w", err)
	}

	defaults := DefaultPolicy().Kinds
	kinds := make(map[ViolationKind]KindPolicy, len(defaults)+len(file.Kinds))
	for k, kp := range defaults {
		kinds[k] = kp
	}
	for k, node := range file.Kinds {
		kp := defaults[k]
		if err := node.Decode(&kp); err != nil {
			return p, fmt.Errorf("parse policy: kinds.%s: %w", k, err)
		}
		kinds[k] = kp
	}
	p.Kinds = kinds

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks thresholds.
func (p Policy) Validate() error {
	if p.TickInterval <= 0 {
		return errors.New("tick_interval must be > 0")
	}
	if p.RecoveryRate < 0 {
		return errors.New("recovery_rate must be >= 0")
	}
	if p.Mode != ModeStandard && p.Mode != ModeExam {
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
	for k, kp := range p.Kinds {
		if !k.Valid() {
			return fmt.Errorf("unknown violation kind %q", k)
		}
		if kp.Grace < 0 || kp.WarnAfter < 0 {
			return fmt.Errorf("%s: negative threshold", k)
		}
		if kp.Penalty < 0 {
			return fmt.Errorf("%s: penalty must be >= 0", k)
		}
	}
	return nil
}
