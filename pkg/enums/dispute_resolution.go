package enums

import "fmt"

// DisputeResolution is the outcome an admin or seller picks when resolving
// a dispute.
type DisputeResolution string

const (
	DisputeResolutionBuyerRefund   DisputeResolution = "buyer_refund"
	DisputeResolutionSellerKeep    DisputeResolution = "seller_keep"
	DisputeResolutionPartialRefund DisputeResolution = "partial_refund"
)

var validDisputeResolutions = []DisputeResolution{
	DisputeResolutionBuyerRefund,
	DisputeResolutionSellerKeep,
	DisputeResolutionPartialRefund,
}

// IsValid reports whether the value is a known DisputeResolution.
func (d DisputeResolution) IsValid() bool {
	for _, candidate := range validDisputeResolutions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeResolution converts raw input into a DisputeResolution.
func ParseDisputeResolution(value string) (DisputeResolution, error) {
	for _, candidate := range validDisputeResolutions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute resolution %q", value)
}

// RefundType records how much of the order amount a resolution returned.
type RefundType string

const (
	RefundTypeFull        RefundType = "full"
	RefundTypePartial     RefundType = "partial"
	RefundTypeStoreCredit RefundType = "store_credit"
)

var validRefundTypes = []RefundType{
	RefundTypeFull,
	RefundTypePartial,
	RefundTypeStoreCredit,
}

// IsValid reports whether the value is a known RefundType.
func (r RefundType) IsValid() bool {
	for _, candidate := range validRefundTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundType converts raw input into a RefundType.
func ParseRefundType(value string) (RefundType, error) {
	for _, candidate := range validRefundTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund type %q", value)
}
