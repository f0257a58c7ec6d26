package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
)

// MessageSignalsUnavailable is the message of a degraded verdict.
const MessageSignalsUnavailable = "Trust signals unavailable; treat this product with caution"

// ClassifierConfig holds the threshold policy.
type ClassifierConfig struct {
	// TrustworthyMin is the lowest trust score classified as trustworthy.
	TrustworthyMin float64
	// SuspiciousMin is the lowest trust score classified as suspicious.
	SuspiciousMin float64
	// OverrideSignal may force high-risk on its own when its trust-equivalent
	// score is below OverrideBelow. A zero OverrideBelow disables the override.
	OverrideSignal valueobject.SignalName
	OverrideBelow  float64
}

// DefaultClassifierConfig returns the default bands: >=85 trustworthy,
// >=60 suspicious, otherwise high-risk; counterfeit trust below 30 forces high-risk.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		TrustworthyMin: 85,
		SuspiciousMin:  60,
		OverrideSignal: valueobject.SignalCounterfeit,
		OverrideBelow:  30,
	}
}

// Validate checks that the bands are ordered and within [0,100].
func (c ClassifierConfig) Validate() error {
	if c.SuspiciousMin < 0 || c.TrustworthyMin > 100 {
		return fmt.Errorf("classifier thresholds must be within [0,100]")
	}
	if c.SuspiciousMin >= c.TrustworthyMin {
		return fmt.Errorf("suspicious threshold %.2f must be below trustworthy threshold %.2f",
			c.SuspiciousMin, c.TrustworthyMin)
	}
	if c.OverrideBelow < 0 || c.OverrideBelow > 100 {
		return fmt.Errorf("override threshold %.2f out of range", c.OverrideBelow)
	}
	if c.OverrideBelow > 0 && c.OverrideSignal.IsZero() {
		return fmt.Errorf("override signal is required when the override threshold is set")
	}
	return nil
}

// Classifier maps a fused score to a verdict.
type Classifier struct {
	cfg ClassifierConfig
	now func() time.Time
}

// NewClassifier creates a Classifier with the given policy.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg, now: time.Now}
}

// Config returns the active policy.
func (c *Classifier) Config() ClassifierConfig {
	return c.cfg
}

// Classify produces the verdict for a scored fusion. The message names the
// signal that most influenced the outcome: the override signal when the
// override fires, otherwise the available signal farthest from the neutral
// midpoint (earliest registered on ties).
func (c *Classifier) Classify(req model.EvaluationRequest, fused model.FusedScore) (model.Verdict, error) {
	classification := c.band(fused.TrustScore())
	cited := mostInfluential(fused)

	if c.cfg.OverrideBelow > 0 {
		if contrib, ok := fused.Contribution(c.cfg.OverrideSignal); ok && contrib.Trust() < c.cfg.OverrideBelow {
			classification = valueobject.ClassificationHighRisk
			cited = contrib.Signal().Name()
		}
	}

	return model.NewVerdict(req, classification, message(classification, cited), fused, cited, c.now())
}

// Degraded produces the suspicious verdict returned when no signal was available.
func (c *Classifier) Degraded(req model.EvaluationRequest, signals []model.SignalResult) model.Verdict {
	return model.NewDegradedVerdict(req, MessageSignalsUnavailable, signals, c.now())
}

func (c *Classifier) band(score float64) valueobject.Classification {
	switch {
	case score >= c.cfg.TrustworthyMin:
		return valueobject.ClassificationTrustworthy
	case score >= c.cfg.SuspiciousMin:
		return valueobject.ClassificationSuspicious
	default:
		return valueobject.ClassificationHighRisk
	}
}

func mostInfluential(fused model.FusedScore) valueobject.SignalName {
	var (
		cited valueobject.SignalName
		best  = -1.0
	)
	for _, contrib := range fused.Contributions() {
		if d := contrib.Deviation(); d > best {
			best = d
			cited = contrib.Signal().Name()
		}
	}
	return cited
}

func message(classification valueobject.Classification, cited valueobject.SignalName) string {
	var base string
	switch classification {
	case valueobject.ClassificationHighRisk:
		switch cited {
		case valueobject.SignalCounterfeit:
			base = "High likelihood of counterfeit based on reviews and seller graph"
		case valueobject.SignalSellerRisk:
			base = "High-risk seller activity detected"
		case valueobject.SignalReviewAuthenticity:
			base = "Review activity indicates manipulation"
		default:
			base = "High risk detected"
		}
	case valueobject.ClassificationSuspicious:
		switch cited {
		case valueobject.SignalSellerRisk:
			base = "Suspicious seller behavior detected"
		case valueobject.SignalCounterfeit:
			base = "Possible counterfeit indicators detected"
		case valueobject.SignalReviewAuthenticity:
			base = "Suspicious review patterns detected"
		default:
			base = "Suspicious signals detected"
		}
	default:
		base = "This product appears trustworthy"
	}

	if cited.IsZero() {
		return base
	}
	return fmt.Sprintf("%s (most influential signal: %s)", base, strings.ToLower(cited.DisplayName()))
}
