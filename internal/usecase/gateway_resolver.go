package usecase

import "telegram-image-studio/internal/domain/model"

// ResolveGateway picks the monetization path for one eligibility answer.
// Priority is fixed: free credit, then sponsor gating, then payment.
// When nothing matches the attempt falls through to free generation.
func ResolveGateway(e model.Eligibility) model.Gateway {
	gw, _ := resolveGateway(e)
	return gw
}

// resolveGateway also reports whether the final fallback rule was taken.
func resolveGateway(e model.Eligibility) (model.Gateway, bool) {
	switch {
	case e.HasFreeCredit:
		return model.GatewayFree, false
	case !e.RequiresPayment && len(e.UnsatisfiedSponsors()) > 0:
		return model.GatewaySponsor, false
	case e.RequiresPayment:
		return model.GatewayPaymentRequired, false
	}
	return model.GatewayFree, true
}
