package momo

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Correlation is echoed back by the provider as extraData.
type Correlation struct {
	OrderID int64 `json:"orderId"`
}

// Encode returns base64(json(c)).
func (c Correlation) Encode() string {
	b, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeCorrelation reverses Encode. An empty blob or a zero order id is an error.
func DecodeCorrelation(extraData string) (Correlation, error) {
	if extraData == "" {
		return Correlation{}, errors.New("empty extraData")
	}
	raw, err := base64.StdEncoding.DecodeString(extraData)
	if err != nil {
		return Correlation{}, fmt.Errorf("decode extraData: %w", err)
	}
	var c Correlation
	if err := json.Unmarshal(raw, &c); err != nil {
		return Correlation{}, fmt.Errorf("parse extraData: %w", err)
	}
	if c.OrderID <= 0 {
		return Correlation{}, errors.New("extraData has no orderId")
	}
	return c, nil
}
