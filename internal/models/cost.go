package models

// CostQuote is a storage price estimate for one payload size and retention period.
type CostQuote struct {
	SizeBytes       int64   `json:"fileSizeBytes"`
	Epochs          int     `json:"epochs"`
	NativeUnitsCost uint64  `json:"totalCost"`
	CostInSui       float64 `json:"totalCostInSui"`
	CostInFiat      float64 `json:"totalCostInUsd"`
	FiatRate        float64 `json:"fiatRate"`
}
