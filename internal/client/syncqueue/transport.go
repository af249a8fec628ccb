package syncqueue

import (
	"context"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/netx"
)

// Transport delivers one operation to the remote API.
type Transport interface {
	Replay(ctx context.Context, op *models.QueuedOperation) error
}

// HTTPTransport maps operation kinds to POST, PUT and DELETE against the
// client's base URL, sending the payload as the JSON body.
type HTTPTransport struct {
	client *netx.Client
}

// NewHTTPTransport replays through client, which adds auth and user agent.
func NewHTTPTransport(client *netx.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

// Replay sends op once. Any non-2xx answer comes back as *netx.HTTPError and
// a kind without an HTTP method is rejected before anything is sent.
func (t *HTTPTransport) Replay(ctx context.Context, op *models.QueuedOperation) error {
	method, err := op.Kind.Method()
	if err != nil {
		return err
	}
	var body []byte
	if len(op.Payload) > 0 {
		body = op.Payload
	}
	return t.client.Do(ctx, method, op.Endpoint, body, nil)
}
