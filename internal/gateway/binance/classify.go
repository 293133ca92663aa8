package binance

import (
	"context"
	"errors"
	"net"

	"mako/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/common"
)

// Binance futures API error codes that matter for classification.
const (
	codeTooManyRequests  = -1003
	codeServerTimeout    = -1007
	codeTimestampAhead   = -1021
	codeUnknownOrder     = -2011
	codeOrderNotFound    = -2013
	codeInsufficientFund = -2019
	codeNoNeedToChange   = -4046
)

// classifyRead tags errors from idempotent queries. Reads never leave remote
// state in doubt, so timeouts are retryable.
func classifyRead(op string, err error) error {
	if err == nil {
		return nil
	}
	if isNetworkDoubt(err) {
		return exchange.NewError(exchange.KindTransient, op, err)
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeTooManyRequests, codeServerTimeout, codeTimestampAhead:
			return exchange.NewError(exchange.KindTransient, op, err)
		}
		if apiErr.Code <= -1100 && apiErr.Code > -1200 {
			// -11xx: malformed request parameters
			return exchange.NewError(exchange.KindPermanent, op, err)
		}
		return exchange.NewError(exchange.KindTransient, op, err)
	}
	return exchange.NewError(exchange.KindTransient, op, err)
}

// classifyWrite tags errors from order mutations. A timeout or dropped
// connection here means the order may or may not have landed: Ambiguous, so
// the execution policy resolves via the client order id before retrying.
func classifyWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if isNetworkDoubt(err) {
		return exchange.NewError(exchange.KindAmbiguous, op, err)
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeTooManyRequests:
			// the request was rejected before reaching the matching engine
			return exchange.NewError(exchange.KindTransient, op, err)
		case codeServerTimeout:
			return exchange.NewError(exchange.KindAmbiguous, op, err)
		case codeInsufficientFund:
			return exchange.NewError(exchange.KindPermanent, op, err)
		}
		if apiErr.Code <= -1100 && apiErr.Code > -1200 {
			return exchange.NewError(exchange.KindPermanent, op, err)
		}
		if apiErr.Code <= -4000 {
			// -4xxx: futures order rules (price/qty filters, margin type...)
			return exchange.NewError(exchange.KindPermanent, op, err)
		}
		return exchange.NewError(exchange.KindAmbiguous, op, err)
	}
	return exchange.NewError(exchange.KindAmbiguous, op, err)
}

// isNetworkDoubt reports transport-level failures where no response arrived.
func isNetworkDoubt(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func apiCode(err error) int64 {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
