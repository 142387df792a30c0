package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/prover"
)

// Client 通过 HTTP 调用外部证明服务：POST /prove 与 POST /verify。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// New 创建证明服务客户端，timeout 非正时为 2 分钟。
func New(rawURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid prover url %q", rawURL))
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{baseURL: parsed, httpClient: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) Name() string { return "remote" }

// GenerateProof 把证明输入的线格式 JSON 发送到 /prove。
func (c *Client) GenerateProof(ctx context.Context, input *proofinput.ProofInput) (*prover.Proof, error) {
	var proof prover.Proof
	if err := c.post(ctx, "/prove", input, &proof); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "")
	}
	return &proof, nil
}

// VerifyProof 把证明发送到 /verify 并返回服务端的结论。
func (c *Client) VerifyProof(ctx context.Context, proof *prover.Proof) (bool, error) {
	var resp verifyResponse
	if err := c.post(ctx, "/verify", proof, &resp); err != nil {
		return false, err
	}
	return resp.Verified, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	u := c.baseURL.ResolveReference(&url.URL{Path: path.Join(c.baseURL.Path, endpoint)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error.Message != "" {
			return fmt.Errorf("prover service %d: %s: %s", resp.StatusCode, er.Error.Code, er.Error.Message)
		}
		return fmt.Errorf("prover service %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
