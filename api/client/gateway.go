package client

import (
	"context"

	"github.com/tocipoco/DAO-Vote/api"
	"github.com/tocipoco/DAO-Vote/coprocessor"
)

// Gateway reaches the co-processor gateway of a remote API.
type Gateway struct {
	c *HTTPclient
}

var _ coprocessor.Gateway = (*Gateway)(nil)

// NewGateway returns the gateway served by the API client c.
func NewGateway(c *HTTPclient) *Gateway {
	return &Gateway{c: c}
}

// Info implements coprocessor.Gateway.
func (g *Gateway) Info(ctx context.Context) (*coprocessor.GatewayInfo, error) {
	info := &coprocessor.GatewayInfo{}
	if err := g.c.call(ctx, HTTPGET, nil, info, nil, api.GatewayInfoEndpoint); err != nil {
		return nil, err
	}
	return info, nil
}

// UserDecrypt implements coprocessor.Gateway.
func (g *Gateway) UserDecrypt(ctx context.Context, req *coprocessor.UserDecryptRequest) (*coprocessor.UserDecryptResponse, error) {
	resp := &coprocessor.UserDecryptResponse{}
	if err := g.c.call(ctx, HTTPPOST, req, resp, nil, api.GatewayUserDecryptEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}
