package model

import (
	"fmt"
	"strings"
)

const maxIdentifierLength = 256

// EvaluationRequest identifies the product/seller pair being assessed.
// It is immutable once created.
type EvaluationRequest struct {
	productID string
	sellerID  string
}

// NewEvaluationRequest creates a validated EvaluationRequest. The product ID
// is required; the seller ID is optional.
func NewEvaluationRequest(productID, sellerID string) (EvaluationRequest, error) {
	productID = strings.TrimSpace(productID)
	sellerID = strings.TrimSpace(sellerID)

	if productID == "" {
		return EvaluationRequest{}, NewValidationError("productId", "product ID is required")
	}
	if len(productID) > maxIdentifierLength {
		return EvaluationRequest{}, NewValidationError("productId",
			fmt.Sprintf("must be at most %d characters", maxIdentifierLength))
	}
	if len(sellerID) > maxIdentifierLength {
		return EvaluationRequest{}, NewValidationError("sellerId",
			fmt.Sprintf("must be at most %d characters", maxIdentifierLength))
	}

	return EvaluationRequest{productID: productID, sellerID: sellerID}, nil
}

func (r EvaluationRequest) ProductID() string { return r.productID }
func (r EvaluationRequest) SellerID() string  { return r.sellerID }

// Key returns the dedup/cache key for this subject. Lengths are encoded so
// that no two distinct (product, seller) pairs share a key.
func (r EvaluationRequest) Key() string {
	return fmt.Sprintf("%d:%s|%s", len(r.productID), r.productID, r.sellerID)
}
