package ckbrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"ckbrelay/internal/ckb"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Client struct {
	url        string
	httpClient *http.Client
	idCounter  uint64
}

type Config struct {
	URL     string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("ckb rpc url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) TipBlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "get_tip_block_number", []any{}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

// BlockByNumber returns false when the node does not have the block yet.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (ckb.Block, bool, error) {
	var result *rpcBlock
	if err := c.call(ctx, "get_block_by_number", []any{formatHexUint(number)}, &result); err != nil {
		return ckb.Block{}, false, err
	}
	if result == nil {
		return ckb.Block{}, false, nil
	}
	block, err := result.toBlock()
	if err != nil {
		return ckb.Block{}, false, fmt.Errorf("block %d: %w", number, err)
	}
	return block, true, nil
}

func (c *Client) HeaderByNumber(ctx context.Context, number uint64) (ckb.HeaderView, bool, error) {
	var result *rpcHeader
	if err := c.call(ctx, "get_header_by_number", []any{formatHexUint(number)}, &result); err != nil {
		return ckb.HeaderView{}, false, err
	}
	if result == nil {
		return ckb.HeaderView{}, false, nil
	}
	header, err := result.toHeader()
	if err != nil {
		return ckb.HeaderView{}, false, fmt.Errorf("header %d: %w", number, err)
	}
	return header, true, nil
}

func (c *Client) BlockHash(ctx context.Context, number uint64) (common.Hash, bool, error) {
	header, ok, err := c.HeaderByNumber(ctx, number)
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return header.Hash, true, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	ctx, span := otel.Tracer("ckbrelay/ckbrpc").Start(ctx, "ckbrpc."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
		),
	)
	defer span.End()
	if err := c.do(ctx, method, params, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, params []any, result any) error {
	id := atomic.AddUint64(&c.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: rpc status %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return fmt.Errorf("%s: rpc result is empty", method)
	}
	return json.Unmarshal(decoded.Result, result)
}
