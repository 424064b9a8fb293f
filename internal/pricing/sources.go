package pricing

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
)

// DexSource quotes a token's price in the reference asset (ETH).
type DexSource interface {
	Name() string
	TokenPriceETH(ctx context.Context, tokenAddress string) (float64, error)
}

// FiatSource quotes the reference asset's price in USD.
type FiatSource interface {
	Name() string
	ETHPriceUSD(ctx context.Context) (float64, error)
}

// ContractCaller executes read-only contract calls against a router.
type ContractCaller interface {
	CallContract(ctx context.Context, contract string, data []byte) ([]byte, error)
}

const getAmountsOutABI = `[{"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}]`

// oneToken is the probe amount: one whole token at 18 decimals.
var oneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// RouterSource quotes through a V2-style DEX router's getAmountsOut.
type RouterSource struct {
	name       string
	routerAddr string
	wethAddr   string
	caller     ContractCaller
	routerABI  abi.ABI
}

// NewRouterSource builds a quote source for one router.
func NewRouterSource(name, routerAddr, wethAddr string, caller ContractCaller) (*RouterSource, error) {
	parsed, err := abi.JSON(strings.NewReader(getAmountsOutABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return &RouterSource{
		name:       name,
		routerAddr: routerAddr,
		wethAddr:   wethAddr,
		caller:     caller,
		routerABI:  parsed,
	}, nil
}

// Name implements DexSource.
func (s *RouterSource) Name() string { return s.name }

// TokenPriceETH implements DexSource: the ETH received for one whole token.
func (s *RouterSource) TokenPriceETH(ctx context.Context, tokenAddress string) (float64, error) {
	path := []common.Address{common.HexToAddress(tokenAddress), common.HexToAddress(s.wethAddr)}
	data, err := s.routerABI.Pack("getAmountsOut", oneToken, path)
	if err != nil {
		return 0, fmt.Errorf("pack getAmountsOut: %w", err)
	}

	out, err := s.caller.CallContract(ctx, s.routerAddr, data)
	if err != nil {
		return 0, fmt.Errorf("%s getAmountsOut: %w", s.name, err)
	}

	unpacked, err := s.routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return 0, fmt.Errorf("%s unpack amounts: %w", s.name, err)
	}
	amounts, ok := unpacked[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return 0, fmt.Errorf("%s returned malformed amounts", s.name)
	}

	price, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amounts[len(amounts)-1]),
		new(big.Float).SetInt(oneToken),
	).Float64()
	if price <= 0 {
		return 0, fmt.Errorf("%s quoted non-positive price", s.name)
	}
	return price, nil
}

// CoinGeckoSource fetches ETH/USD from the CoinGecko simple price API.
type CoinGeckoSource struct {
	client *resty.Client
	url    string
}

// NewCoinGeckoSource builds the source; url overrides the default for tests.
func NewCoinGeckoSource(url string, timeout time.Duration) *CoinGeckoSource {
	if url == "" {
		url = "https://api.coingecko.com/api/v3/simple/price"
	}
	return &CoinGeckoSource{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

// Name implements FiatSource.
func (s *CoinGeckoSource) Name() string { return "coingecko" }

// ETHPriceUSD implements FiatSource.
func (s *CoinGeckoSource) ETHPriceUSD(ctx context.Context) (float64, error) {
	var out struct {
		Ethereum struct {
			USD float64 `json:"usd"`
		} `json:"ethereum"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("ids", "ethereum").
		SetQueryParam("vs_currencies", "usd").
		SetResult(&out).
		Get(s.url)
	if err != nil {
		return 0, fmt.Errorf("coingecko request: %w", err)
	}
	if !resp.IsSuccess() || out.Ethereum.USD <= 0 {
		return 0, fmt.Errorf("coingecko answered http=%d price=%f", resp.StatusCode(), out.Ethereum.USD)
	}
	return out.Ethereum.USD, nil
}

// CoinMarketCapSource fetches ETH/USD from the CoinMarketCap quotes API.
// Requires an API key; construction without one is a configuration error
// handled by the caller.
type CoinMarketCapSource struct {
	client *resty.Client
	url    string
	apiKey string
}

// NewCoinMarketCapSource builds the source; url overrides the default for tests.
func NewCoinMarketCapSource(url, apiKey string, timeout time.Duration) *CoinMarketCapSource {
	if url == "" {
		url = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest"
	}
	return &CoinMarketCapSource{
		client: resty.New().SetTimeout(timeout),
		url:    url,
		apiKey: apiKey,
	}
}

// Name implements FiatSource.
func (s *CoinMarketCapSource) Name() string { return "coinmarketcap" }

// ETHPriceUSD implements FiatSource.
func (s *CoinMarketCapSource) ETHPriceUSD(ctx context.Context) (float64, error) {
	var out struct {
		Data struct {
			ETH struct {
				Quote struct {
					USD struct {
						Price float64 `json:"price"`
					} `json:"USD"`
				} `json:"quote"`
			} `json:"ETH"`
		} `json:"data"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", "ETH").
		SetHeader("X-CMC_PRO_API_KEY", s.apiKey).
		SetResult(&out).
		Get(s.url)
	if err != nil {
		return 0, fmt.Errorf("coinmarketcap request: %w", err)
	}
	price := out.Data.ETH.Quote.USD.Price
	if !resp.IsSuccess() || price <= 0 {
		return 0, fmt.Errorf("coinmarketcap answered http=%d price=%f", resp.StatusCode(), price)
	}
	return price, nil
}

var (
	_ DexSource  = (*RouterSource)(nil)
	_ FiatSource = (*CoinGeckoSource)(nil)
	_ FiatSource = (*CoinMarketCapSource)(nil)
)
