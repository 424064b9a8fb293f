package sniper

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"evm-sniper-bot/internal/chain"
	"evm-sniper-bot/internal/domain"
)

// V2 factory addresses on Base paired with their routers.
var defaultFactories = map[string]string{
	"baseswap": "0xFDa619b6d20975be80A10332cD39b9a4b0FAa8BB",
	"camelot":  "0x6EcCab422D763aC031210895C81787E87B9142E5",
}

var (
	getPairSelector   = mustSelector("e6a43905") // getPair(address,address)
	balanceOfSelector = mustSelector("70a08231") // balanceOf(address)
)

// holderProbeLimit bounds the explorer holder listing. The count is an
// approximation: a token with more holders than the limit reads as the
// limit, which is enough for the gates and scoring.
const holderProbeLimit = 200

// TokenResolver assembles a TokenInfo snapshot from the chain, the DEX
// factories and the block explorer.
type TokenResolver struct {
	client    chain.Client
	factories map[string]string
	weth      string

	explorer    *resty.Client
	explorerURL string
	explorerKey string

	log logrus.FieldLogger
	now func() time.Time
}

// NewTokenResolver builds a resolver. Passing an empty explorer URL
// disables holder counting.
func NewTokenResolver(client chain.Client, wethAddress, explorerURL, explorerKey string, timeout time.Duration, log logrus.FieldLogger) *TokenResolver {
	return &TokenResolver{
		client:      client,
		factories:   defaultFactories,
		weth:        wethAddress,
		explorer:    resty.New().SetTimeout(timeout),
		explorerURL: explorerURL,
		explorerKey: explorerKey,
		log:         log,
		now:         time.Now,
	}
}

// Resolve fetches the on-demand snapshot of a token. Metadata failure is
// fatal; holder count and liquidity degrade to zero.
func (r *TokenResolver) Resolve(ctx context.Context, address string) (domain.TokenInfo, error) {
	addr := domain.NormalizeAddress(address)

	meta, err := r.client.TokenMetadata(ctx, addr)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("token metadata: %w", err)
	}

	info := domain.TokenInfo{
		Address:    addr,
		Name:       meta.Name,
		Symbol:     meta.Symbol,
		Decimals:   meta.Decimals,
		DetectedAt: r.now(),
	}
	if meta.TotalSupply != nil {
		supply, _ := new(big.Float).Quo(
			new(big.Float).SetInt(meta.TotalSupply),
			big.NewFloat(1e18),
		).Float64()
		info.TotalSupply = supply
	}

	info.HolderCount = r.holderCount(ctx, addr)
	info.LiquidityETH = r.liquidityETH(ctx, addr)
	return info, nil
}

// holderCount asks the explorer for the token's holder list.
func (r *TokenResolver) holderCount(ctx context.Context, address string) int {
	if r.explorerURL == "" {
		return 0
	}

	var out struct {
		Status string `json:"status"`
		Result []struct {
			HolderAddress string `json:"TokenHolderAddress"`
		} `json:"result"`
	}
	resp, err := r.explorer.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":          "token",
			"action":          "tokenholderlist",
			"contractaddress": address,
			"page":            "1",
			"offset":          fmt.Sprintf("%d", holderProbeLimit),
			"apikey":          r.explorerKey,
		}).
		SetResult(&out).
		Get(r.explorerURL)
	if err != nil || !resp.IsSuccess() {
		r.log.WithField("token", address).Debug("holder count lookup failed")
		return 0
	}
	return len(out.Result)
}

// liquidityETH sums the WETH reserves of the token's pairs across the
// known factories.
func (r *TokenResolver) liquidityETH(ctx context.Context, address string) float64 {
	token := common.HexToAddress(address)
	weth := common.HexToAddress(r.weth)

	pairCall := make([]byte, 0, 68)
	pairCall = append(pairCall, getPairSelector...)
	pairCall = append(pairCall, common.LeftPadBytes(token.Bytes(), 32)...)
	pairCall = append(pairCall, common.LeftPadBytes(weth.Bytes(), 32)...)

	total := new(big.Int)
	for name, factory := range r.factories {
		out, err := r.client.CallContract(ctx, factory, pairCall)
		if err != nil || len(out) < 32 {
			continue
		}
		pair := common.BytesToAddress(out[12:32])
		if pair == (common.Address{}) {
			continue
		}

		balCall := make([]byte, 0, 36)
		balCall = append(balCall, balanceOfSelector...)
		balCall = append(balCall, common.LeftPadBytes(pair.Bytes(), 32)...)
		bal, err := r.client.CallContract(ctx, r.weth, balCall)
		if err != nil || len(bal) < 32 {
			r.log.WithField("factory", name).Debug("pair reserve lookup failed")
			continue
		}
		total.Add(total, new(big.Int).SetBytes(bal))
	}

	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(total), big.NewFloat(1e18)).Float64()
	return eth
}
