package social

import (
	"context"

	"github.com/goliatone/academia"
)

// CallbackFlow is a federated flow whose provider response already arrived
// on the callback route.
type CallbackFlow struct {
	provider string
	callback academia.FederatedCallback
}

var _ academia.FederatedFlow = (*CallbackFlow)(nil)

// NewCallbackFlow wraps the query parameters of a provider callback.
func NewCallbackFlow(provider string, cb academia.FederatedCallback) *CallbackFlow {
	return &CallbackFlow{provider: provider, callback: cb}
}

// Provider implements academia.FederatedFlow.
func (f *CallbackFlow) Provider() string {
	return f.provider
}

// Await implements academia.FederatedFlow.
func (f *CallbackFlow) Await(ctx context.Context) (academia.FederatedCallback, error) {
	if err := ctx.Err(); err != nil {
		return academia.FederatedCallback{}, err
	}
	return f.callback, nil
}
