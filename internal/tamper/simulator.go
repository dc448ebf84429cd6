package tamper

import (
	"fmt"
	"sort"
	"sync"

	"Verdict/internal/domain/models"
	"Verdict/pkg/logger"
)

// Attack identifies one injectable fault.
type Attack string

const (
	// AttackPriceManipulation inflates the declared market price while the
	// oracle reference stays honest, tripping the tolerance check.
	AttackPriceManipulation Attack = "price_manipulation"
	// AttackSentimentCorruption inverts and amplifies sentiment scores.
	AttackSentimentCorruption Attack = "sentiment_corruption"
	// AttackProofInvalidation strips the attestation proof.
	AttackProofInvalidation Attack = "proof_invalidation"
	// AttackMultiVector applies all three attacks at once.
	AttackMultiVector Attack = "multi_vector"
)

const priceManipulationFactor = 1.15

var knownAttacks = map[Attack]bool{
	AttackPriceManipulation:   true,
	AttackSentimentCorruption: true,
	AttackProofInvalidation:   true,
	AttackMultiVector:         true,
}

// Simulator injects faults into signal bundles after the feeds produce them.
// It operates on copies only; provider state is never touched, so disabling
// an attack immediately restores clean cycles.
type Simulator struct {
	mu     sync.RWMutex
	active map[Attack]bool
	log    *logger.Logger
}

// New creates a simulator with no active attacks.
func New(log *logger.Logger) *Simulator {
	return &Simulator{active: make(map[Attack]bool), log: log}
}

// Enable activates an attack. Enabling an already-active attack is a no-op.
func (s *Simulator) Enable(attack Attack) error {
	if !knownAttacks[attack] {
		return fmt.Errorf("%w: %q", models.ErrUnknownAttack, attack)
	}
	s.mu.Lock()
	s.active[attack] = true
	s.mu.Unlock()

	s.log.Warn("attack simulation enabled", logger.String("attack", string(attack)))
	return nil
}

// Disable deactivates an attack.
func (s *Simulator) Disable(attack Attack) error {
	if !knownAttacks[attack] {
		return fmt.Errorf("%w: %q", models.ErrUnknownAttack, attack)
	}
	s.mu.Lock()
	delete(s.active, attack)
	s.mu.Unlock()

	s.log.Info("attack simulation disabled", logger.String("attack", string(attack)))
	return nil
}

// Reset deactivates every attack.
func (s *Simulator) Reset() {
	s.mu.Lock()
	s.active = make(map[Attack]bool)
	s.mu.Unlock()

	s.log.Info("attack simulations reset")
}

// Active returns the currently enabled attacks in stable order.
func (s *Simulator) Active() []Attack {
	s.mu.RLock()
	out := make([]Attack, 0, len(s.active))
	for a := range s.active {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Inject applies every active attack to a copy of the bundle. The input
// bundle is never mutated. With no active attacks the copy is returned
// untouched.
func (s *Simulator) Inject(bundle *models.SignalBundle) *models.SignalBundle {
	s.mu.RLock()
	multi := s.active[AttackMultiVector]
	price := multi || s.active[AttackPriceManipulation]
	sentiment := multi || s.active[AttackSentimentCorruption]
	proof := multi || s.active[AttackProofInvalidation]
	s.mu.RUnlock()

	out := *bundle
	out.Degraded = append([]string(nil), bundle.Degraded...)

	if price && out.HasPrice {
		out.Price *= priceManipulationFactor
	}
	if sentiment {
		out.SentimentScore = corrupt(out.SentimentScore)
		out.SentimentShortTerm = corrupt(out.SentimentShortTerm)
	}
	if proof {
		out.AttestationProof = ""
	}
	return &out
}

// corrupt flips the score and pushes it toward the opposite extreme.
func corrupt(score float64) float64 {
	v := -1.5 * score
	if v > 100 {
		return 100
	}
	if v < -100 {
		return -100
	}
	return v
}
