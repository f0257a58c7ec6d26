package testutil

// Stable identifiers for deterministic tests.
const (
	TestProductID  = "B0FAKE123"
	TestProductID2 = "B0REAL456"
	TestSellerID   = "seller-acme"
)
