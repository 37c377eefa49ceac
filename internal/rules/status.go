package rules

import "github.com/opensource-finance/claimguard/internal/domain"

// DeriveStatus maps a risk tier to the claim status shown to the claimant.
// It never returns Pending; an unrecognised tier is sent to review.
func DeriveStatus(level domain.RiskLevel) domain.ClaimStatus {
	switch level {
	case domain.RiskGreen:
		return domain.StatusApproved
	case domain.RiskYellow:
		return domain.StatusUnderReview
	case domain.RiskRed:
		return domain.StatusRejected
	default:
		return domain.StatusUnderReview
	}
}
