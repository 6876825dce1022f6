package models

// Threat level boundaries on the 0–100 risk scale
const (
	MediumThreshold = 30
	HighThreshold   = 70
)

// ClampScore bounds a score to [0,100]
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// LevelFor maps a risk score to its threat level
func LevelFor(risk int) ThreatLevel {
	risk = ClampScore(risk)
	switch {
	case risk >= HighThreshold:
		return ThreatHigh
	case risk >= MediumThreshold:
		return ThreatMedium
	default:
		return ThreatLow
	}
}
