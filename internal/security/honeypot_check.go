package security

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Risk contributions of the honeypot simulation check.
const (
	riskHoneypotFlag = 0.8
	riskHighBuyTax   = 0.2
	riskHighSellTax  = 0.3
	riskScamFlag     = 0.7

	highTaxPct        = 10.0
	prohibitiveTaxPct = 50.0
)

// HoneypotCheck queries external simulation services (honeypot.is and
// TokenSniffer). Either service answering is enough for the check to
// complete; the check fails only when both are unreachable.
type HoneypotCheck struct {
	client      *resty.Client
	honeypotURL string
	snifferURL  string
	snifferKey  string
	chainID     int
}

// NewHoneypotCheck builds the check with a shared retrying HTTP client.
func NewHoneypotCheck(honeypotURL, snifferURL, snifferKey string, chainID int, timeout time.Duration) *HoneypotCheck {
	return &HoneypotCheck{
		client:      newRestyClient(timeout),
		honeypotURL: honeypotURL,
		snifferURL:  snifferURL,
		snifferKey:  snifferKey,
		chainID:     chainID,
	}
}

// newRestyClient builds the HTTP client used by all API checks.
func newRestyClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; TokenAnalyzer/1.0)")
}

// Name implements Check.
func (c *HoneypotCheck) Name() CheckName { return CheckHoneypot }

type honeypotIsResponse struct {
	IsHoneypot      bool    `json:"IsHoneypot"`
	BuyTax          float64 `json:"BuyTax"`
	SellTax         float64 `json:"SellTax"`
	MaxTxAmountPct  float64 `json:"MaxTxAmountPercent"`
}

type snifferResponse struct {
	Score  float64 `json:"score"`
	IsScam bool    `json:"is_scam"`
}

// Run implements Check.
func (c *HoneypotCheck) Run(ctx context.Context, address string) Outcome {
	f := Findings{}
	answered := false

	var hp honeypotIsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetQueryParam("chainID", fmt.Sprintf("%d", c.chainID)).
		SetResult(&hp).
		Get(c.honeypotURL)
	if err == nil && resp.IsSuccess() {
		answered = true
		f.BuyTaxPct = hp.BuyTax
		f.SellTaxPct = hp.SellTax

		if hp.IsHoneypot {
			f.ForceHoneypot = true
			f.RiskAdd += riskHoneypotFlag
			f.Flags = append(f.Flags, "honeypot_api_flag")
		}
		if hp.BuyTax > highTaxPct {
			f.RiskAdd += riskHighBuyTax
			f.Flags = append(f.Flags, fmt.Sprintf("high_buy_tax:%.1f%%", hp.BuyTax))
		}
		if hp.SellTax > highTaxPct {
			f.RiskAdd += riskHighSellTax
			f.Flags = append(f.Flags, fmt.Sprintf("high_sell_tax:%.1f%%", hp.SellTax))
		}
		if hp.SellTax > prohibitiveTaxPct {
			// Nobody exits a token they cannot sell at a sane price.
			f.ForceHoneypot = true
			f.Flags = append(f.Flags, "prohibitive_sell_tax")
		}
	}

	var sn snifferResponse
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("chainId", fmt.Sprintf("%d", c.chainID)).
		SetResult(&sn)
	if c.snifferKey != "" {
		req.SetQueryParam("apikey", c.snifferKey)
	}
	resp, err = req.Get(fmt.Sprintf("%s/tokens/%s", c.snifferURL, address))
	if err == nil && resp.IsSuccess() {
		answered = true
		if sn.IsScam {
			f.ForceHoneypot = true
			f.RiskAdd += riskScamFlag
			f.Flags = append(f.Flags, "sniffer_scam_flag")
		}
	}

	if !answered {
		return failed(CheckHoneypot, "no simulation service reachable")
	}
	return completed(CheckHoneypot, f)
}

// Compile-time interface check.
var _ Check = (*HoneypotCheck)(nil)
