package client

import (
	"context"
)

type transport interface {
	// call sends request as JSON body and decodes the reply envelope into response
	call(ctx context.Context, method, path, token string, request, response any) error
	// endpoint the base url of the server
	endpoint() string
	shutdown()
}
