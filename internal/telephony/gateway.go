// Package telephony talks to the double-ring call provider.
//
// Business logic only sees CallGateway and the entity event types. Provider
// wire formats stay inside this package.
package telephony

import (
	"context"

	"github.com/mbeoliero/ringlink/internal/entity"
)

// CallGateway places double-ring calls and fetches their detail records
type CallGateway interface {
	Name() string
	// PlaceCall rings caller then bridges to called. correlationId is echoed
	// back by the provider in the detail record.
	PlaceCall(ctx context.Context, callerNumber, calledNumber, correlationId string) (string, error)
	// FetchCDR returns ok=false when the provider has no record yet
	FetchCDR(ctx context.Context, reqId string) (cdr *entity.CDR, ok bool, err error)
}

// ProviderError is a request the provider answered with a failure status
type ProviderError struct {
	Code string
	Msg  string
}

func (e *ProviderError) Error() string {
	return e.Msg
}
