// Package pricing computes per-recipient SMS cost from segment counts.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/pkg/segmenter"
)

// Quote is the billable outcome for one rendered message.
type Quote struct {
	Segments int
	Encoding string
	Domestic bool
	Cost     decimal.Decimal // gateway currency units
	Credits  int64           // prepaid credits to reserve
}

// Calculator prices messages. It holds only immutable rates and is safe for
// concurrent use.
type Calculator struct {
	domesticPrefix    string
	domesticRate      decimal.Decimal
	internationalRate decimal.Decimal
	creditValue       decimal.Decimal
}

// NewCalculator builds a Calculator. A zero creditValue means one credit per
// domestic segment.
func NewCalculator(domesticPrefix string, domesticRate, internationalRate, creditValue decimal.Decimal) (*Calculator, error) {
	domesticPrefix = strings.TrimLeft(strings.TrimSpace(domesticPrefix), "+")
	if domesticPrefix == "" {
		return nil, fmt.Errorf("domestic prefix is required")
	}
	if !domesticRate.IsPositive() || !internationalRate.IsPositive() {
		return nil, fmt.Errorf("rates must be positive (domestic=%s, international=%s)", domesticRate, internationalRate)
	}
	if creditValue.IsZero() {
		creditValue = domesticRate
	}
	if creditValue.IsNegative() {
		return nil, fmt.Errorf("credit value must be positive, got %s", creditValue)
	}
	return &Calculator{
		domesticPrefix:    domesticPrefix,
		domesticRate:      domesticRate,
		internationalRate: internationalRate,
		creditValue:       creditValue,
	}, nil
}

// NewCalculatorFromConfig parses the string rates held in config.
func NewCalculatorFromConfig(cfg config.PricingConfig) (*Calculator, error) {
	domestic, err := decimal.NewFromString(cfg.DomesticRate)
	if err != nil {
		return nil, fmt.Errorf("invalid domestic rate %q: %w", cfg.DomesticRate, err)
	}
	international, err := decimal.NewFromString(cfg.InternationalRate)
	if err != nil {
		return nil, fmt.Errorf("invalid international rate %q: %w", cfg.InternationalRate, err)
	}
	creditValue := decimal.Zero
	if cfg.CreditValue != "" {
		if creditValue, err = decimal.NewFromString(cfg.CreditValue); err != nil {
			return nil, fmt.Errorf("invalid credit value %q: %w", cfg.CreditValue, err)
		}
	}
	return NewCalculator(cfg.DomesticPrefix, domestic, international, creditValue)
}

// IsDomestic reports whether recipient carries the domestic country code,
// written bare, with a leading + or with a 00 international prefix.
func (c *Calculator) IsDomestic(recipient string) bool {
	n := strings.TrimSpace(recipient)
	switch {
	case strings.HasPrefix(n, "+"):
		n = n[1:]
	case strings.HasPrefix(n, "00"):
		n = n[2:]
	}
	return strings.HasPrefix(n, c.domesticPrefix)
}

// Cost returns the price of segments parts sent to recipient.
func (c *Calculator) Cost(recipient string, segments int) decimal.Decimal {
	rate := c.internationalRate
	if c.IsDomestic(recipient) {
		rate = c.domesticRate
	}
	return rate.Mul(decimal.NewFromInt(int64(segments)))
}

// Credits converts a cost to whole prepaid credits, rounding up.
func (c *Calculator) Credits(cost decimal.Decimal) int64 {
	return cost.Div(c.creditValue).Ceil().IntPart()
}

// Quote segments message and prices it for recipient.
func (c *Calculator) Quote(recipient, message string) Quote {
	info := segmenter.Analyze(message)
	cost := c.Cost(recipient, info.Segments)
	return Quote{
		Segments: info.Segments,
		Encoding: info.Encoding,
		Domestic: c.IsDomestic(recipient),
		Cost:     cost,
		Credits:  c.Credits(cost),
	}
}
