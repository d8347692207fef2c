package audit

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrInvalidReport is returned for reports missing required fields.
var ErrInvalidReport = errors.New("invalid report")

// InsecureReport is a participant's raw private value.
type InsecureReport struct {
	Name          string    `json:"name"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Value         *big.Int  `json:"value"`
	ReportedAt    time.Time `json:"reported_at"`
}

// Validate checks required fields.
func (r *InsecureReport) Validate() error {
	if r.Value == nil {
		return fmt.Errorf("%w: missing value", ErrInvalidReport)
	}
	return nil
}

// SecureReport is what a participant discloses in the masked protocol: its
// masked value and the masks it generated for each peer.
type SecureReport struct {
	Name          string              `json:"name"`
	ParticipantID string              `json:"participant_id"`
	Fingerprint   string              `json:"fingerprint"`
	MaskedValue   *big.Int            `json:"masked_value"`
	Perturbations map[string]*big.Int `json:"perturbations"`
	ReportedAt    time.Time           `json:"reported_at"`
}

// Validate checks required fields.
func (r *SecureReport) Validate() error {
	if r.ParticipantID == "" {
		return fmt.Errorf("%w: missing participant_id", ErrInvalidReport)
	}
	if r.MaskedValue == nil {
		return fmt.Errorf("%w: missing masked_value", ErrInvalidReport)
	}
	for peer, v := range r.Perturbations {
		if v == nil {
			return fmt.Errorf("%w: null perturbation for %s", ErrInvalidReport, peer)
		}
	}
	return nil
}
