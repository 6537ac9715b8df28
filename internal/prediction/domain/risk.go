package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownRiskLevel indicates a risk level name that does not parse.
var ErrUnknownRiskLevel = errors.New("prediction: unknown risk level")

// RiskLevel is the ordered risk classification LOW < MEDIUM < HIGH < CRITICAL.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// UnknownLocation is the location label used when no readings are available.
const UnknownLocation = "Unknown"

// String returns the level name.
func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
}

// Description returns the fixed operator guidance for the level.
func (l RiskLevel) Description() string {
	switch l {
	case RiskLow:
		return "Safe conditions"
	case RiskMedium:
		return "Monitor closely"
	case RiskHigh:
		return "Evacuation recommended"
	case RiskCritical:
		return "Immediate evacuation required"
	default:
		return ""
	}
}

// Valid reports whether l is one of the four defined levels.
func (l RiskLevel) Valid() bool {
	return l >= RiskLow && l <= RiskCritical
}

// ParseRiskLevel parses a level name, case-insensitively.
func ParseRiskLevel(value string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	case "CRITICAL":
		return RiskCritical, nil
	default:
		return RiskLow, fmt.Errorf("%w: %q", ErrUnknownRiskLevel, value)
	}
}

// MarshalJSON encodes the level as its name.
func (l RiskLevel) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRiskLevel, int(l))
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseRiskLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// RiskAssessment is the outcome of one prediction.
type RiskAssessment struct {
	Level               RiskLevel `json:"risk_level"`
	Confidence          float64   `json:"confidence_score"`
	Location            string    `json:"location"`
	AssessedAt          time.Time `json:"assessed_at"`
	ContributingFactors []string  `json:"contributing_factors"`
}

// Degraded returns the safe default assessment used when prediction fails.
func Degraded(at time.Time) RiskAssessment {
	return RiskAssessment{
		Level:               RiskLow,
		Confidence:          0,
		Location:            UnknownLocation,
		AssessedAt:          at,
		ContributingFactors: []string{},
	}
}
