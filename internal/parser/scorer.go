package parser

import (
	"transaction-automation-service/internal/models"
	"transaction-automation-service/pkg/stats"
)

// Signals records which parts of a message were extracted
type Signals struct {
	Institution     bool
	Amount          bool
	Balance         bool
	Reference       bool
	Merchant        bool
	Reason          bool
	Direction       models.Direction
	AlternateScript bool
}

// Scorer computes a deterministic confidence in [0,1] from extraction signals
type Scorer struct {
	weights ScoreWeights
}

// NewScorer creates a scorer with the given weights
func NewScorer(weights ScoreWeights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns the clamped weighted sum of the signals
func (s *Scorer) Score(sig Signals) float64 {
	w := s.weights
	score := w.Base

	if sig.Institution {
		score += w.Institution
	}
	if sig.Amount {
		score += w.Amount
	}
	if sig.Balance {
		score += w.Balance
	}
	if sig.Reference {
		score += w.Reference
	}
	if sig.Merchant {
		score += w.Merchant
	}
	if sig.Reason {
		score += w.Reason
	}
	if sig.Direction == models.DirectionTransfer {
		score -= w.TransferPenalty
	}
	if sig.AlternateScript {
		score -= w.AlternateScriptPenalty
	}

	return stats.Clamp01(stats.Round(score, 4))
}
