package binance

import "time"

const (
	productionBaseURL = "https://fapi.binance.com"
	testnetBaseURL    = "https://testnet.binancefuture.com"
)

type Config struct {
	APIKey      string
	APISecret   string
	Testnet     bool
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	final := c
	if final.RESTBaseURL == "" {
		if final.Testnet {
			final.RESTBaseURL = testnetBaseURL
		} else {
			final.RESTBaseURL = productionBaseURL
		}
	}
	if final.HTTPTimeout <= 0 {
		final.HTTPTimeout = 15 * time.Second
	}
	return final
}
