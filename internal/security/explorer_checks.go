package security

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Risk contributions of the explorer-backed checks.
const (
	riskUnverified      = 0.2
	riskHighFailureRate = 0.3
	riskBotActivity     = 0.2

	failureRateThreshold = 0.3
	botScoreThreshold    = 0.7
)

// explorerEnvelope is the common Etherscan-style response wrapper.
type explorerEnvelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

// VerificationCheck asks the block explorer whether the contract source
// is verified.
type VerificationCheck struct {
	client *resty.Client
	apiURL string
	apiKey string
}

// NewVerificationCheck creates the explorer verification check.
func NewVerificationCheck(apiURL, apiKey string, timeout time.Duration) *VerificationCheck {
	return &VerificationCheck{
		client: newRestyClient(timeout),
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

// Name implements Check.
func (c *VerificationCheck) Name() CheckName { return CheckVerification }

type sourceCodeEntry struct {
	SourceCode   string `json:"SourceCode"`
	ContractName string `json:"ContractName"`
}

// Run implements Check.
func (c *VerificationCheck) Run(ctx context.Context, address string) Outcome {
	var out explorerEnvelope[[]sourceCodeEntry]
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":  "contract",
			"action":  "getsourcecode",
			"address": address,
			"apikey":  c.apiKey,
		}).
		SetResult(&out).
		Get(c.apiURL)
	if err != nil {
		return failed(CheckVerification, fmt.Sprintf("explorer request: %v", err))
	}
	if !resp.IsSuccess() || out.Status != "1" || len(out.Result) == 0 {
		return failed(CheckVerification, fmt.Sprintf("explorer answered status=%q http=%d", out.Status, resp.StatusCode()))
	}

	verified := out.Result[0].SourceCode != ""
	f := Findings{Verified: &verified}
	if !verified {
		f.RiskAdd += riskUnverified
		f.Flags = append(f.Flags, "unverified_source")
	}
	return completed(CheckVerification, f)
}

// Compile-time interface check.
var _ Check = (*VerificationCheck)(nil)

// ActivityCheck inspects recent token transfers for failure spikes and
// bot-like concentration.
type ActivityCheck struct {
	client *resty.Client
	apiURL string
	apiKey string
}

// NewActivityCheck creates the transfer activity check.
func NewActivityCheck(apiURL, apiKey string, timeout time.Duration) *ActivityCheck {
	return &ActivityCheck{
		client: newRestyClient(timeout),
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

// Name implements Check.
func (c *ActivityCheck) Name() CheckName { return CheckActivity }

type tokenTxEntry struct {
	From    string `json:"from"`
	IsError string `json:"isError"`
}

// Run implements Check.
func (c *ActivityCheck) Run(ctx context.Context, address string) Outcome {
	var out explorerEnvelope[[]tokenTxEntry]
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":          "account",
			"action":          "tokentx",
			"contractaddress": address,
			"page":            "1",
			"offset":          "100",
			"sort":            "desc",
			"apikey":          c.apiKey,
		}).
		SetResult(&out).
		Get(c.apiURL)
	if err != nil {
		return failed(CheckActivity, fmt.Sprintf("explorer request: %v", err))
	}
	if !resp.IsSuccess() || out.Status != "1" {
		return failed(CheckActivity, fmt.Sprintf("explorer answered status=%q http=%d", out.Status, resp.StatusCode()))
	}

	return completed(CheckActivity, AssessActivity(toTransferSamples(out.Result)))
}

// TransferSample is one observed token transfer.
type TransferSample struct {
	From   string
	Failed bool
}

func toTransferSamples(entries []tokenTxEntry) []TransferSample {
	samples := make([]TransferSample, 0, len(entries))
	for _, e := range entries {
		samples = append(samples, TransferSample{From: e.From, Failed: e.IsError == "1"})
	}
	return samples
}

// AssessActivity computes failure rate and bot concentration over recent
// transfers. Exported for direct testing.
func AssessActivity(samples []TransferSample) Findings {
	f := Findings{}
	total := len(samples)
	if total == 0 {
		return f
	}

	uniqueFrom := make(map[string]struct{}, total)
	failedCount := 0
	for _, s := range samples {
		uniqueFrom[s.From] = struct{}{}
		if s.Failed {
			failedCount++
		}
	}

	failureRate := float64(failedCount) / float64(total)
	botScore := 1 - float64(len(uniqueFrom))/float64(total)

	if failureRate > failureRateThreshold {
		f.RiskAdd += riskHighFailureRate
		f.Flags = append(f.Flags, fmt.Sprintf("high_failure_rate:%.0f%%", failureRate*100))
	}
	if botScore > botScoreThreshold {
		f.RiskAdd += riskBotActivity
		f.Flags = append(f.Flags, "bot_activity")
	}
	return f
}

// Compile-time interface check.
var _ Check = (*ActivityCheck)(nil)
