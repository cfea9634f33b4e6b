package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/foomo/helpboard/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	httpTransport struct {
		client *http.Client
		server string
	}
	envelope struct {
		Reply jsoniter.RawMessage `json:"reply"`
	}
)

// NewHTTPTransport will create a new http transport for the given server and client.
// Caution: the provided server url is not validated!
func NewHTTPTransport(server string, client *http.Client) transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{
		server: strings.TrimSuffix(server, "/"),
		client: client,
	}
}

func (ht *httpTransport) endpoint() string {
	return ht.server
}

func (ht *httpTransport) shutdown() {
	ht.client.CloseIdleConnections()
}

func (ht *httpTransport) call(ctx context.Context, method, path, token string, request, response any) error {
	var body io.Reader
	if request != nil {
		requestBytes, err := json.Marshal(request)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(requestBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, ht.server+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if request != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResponse, err := ht.client.Do(req)
	if err != nil {
		return err
	}
	defer httpResponse.Body.Close()

	responseBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	reply := &envelope{}
	if err := json.Unmarshal(responseBytes, reply); err != nil {
		return errors.Errorf("unexpected reply with status %d", httpResponse.StatusCode)
	}

	if httpResponse.StatusCode >= http.StatusBadRequest {
		replyErr := &responses.Error{}
		if err := json.Unmarshal(reply.Reply, replyErr); err != nil || replyErr.Code == 0 {
			return errors.Errorf("non 2xx reply: %d", httpResponse.StatusCode)
		}
		return replyErr
	}
	if response == nil {
		return nil
	}
	return json.Unmarshal(reply.Reply, response)
}
