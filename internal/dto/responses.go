package dto

import (
	"github.com/thankatech/backend/internal/models"
)

// TipIntentResponse carries a created tip together with the Stripe client secret
// the frontend needs to confirm the card payment.
type TipIntentResponse struct {
	*models.Tip
	ClientSecret string `json:"client_secret"`
}

// NewTipIntentResponse builds a TipIntentResponse.
func NewTipIntentResponse(tip *models.Tip, clientSecret string) *TipIntentResponse {
	return &TipIntentResponse{Tip: tip, ClientSecret: clientSecret}
}

// CheckoutSessionResponse carries the Stripe Checkout redirect data for a token purchase.
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
