package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ansel1/merry"

	"bf16lut/pkg/common"
	"bf16lut/pkg/core"
	"bf16lut/pkg/core/generator"
	"bf16lut/pkg/monitor"
)

// Client talks to a running lutgen server over its JSON API.
type Client struct {
	http *http.Client
	base string
}

// GenerateResult is the summary the server returns for a run.
type GenerateResult struct {
	Function  string          `json:"function"`
	Policy    string          `json:"policy"`
	Interval  common.Interval `json:"interval"`
	Bins      int             `json:"bins"`
	WorstUlp  float64         `json:"worst_ulp"`
	AvgUlp    float64         `json:"avg_ulp"`
	Cached    bool            `json:"cached"`
	LatencyMs float64         `json:"latency_ms"`
}

// Dial checks that addr answers and returns a client for it. addr may be a
// bare host:port.
func Dial(addr string) (*Client, error) {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	if u.Host == "" {
		return nil, merry.Errorf("client: no host in %q", addr)
	}

	c := &Client{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{MaxIdleConnsPerHost: 100},
		},
		base: strings.TrimRight(u.String(), "/"),
	}
	if _, err := c.Stats(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Generate(req core.Request) (GenerateResult, error) {
	var res GenerateResult
	body, err := json.Marshal(req)
	if err != nil {
		return res, merry.Wrap(err)
	}
	err = c.do(http.MethodPost, "/api/generate", body, &res)
	return res, err
}

func (c *Client) Table() (*generator.Table, error) {
	var t generator.Table
	if err := c.do(http.MethodGet, "/api/table", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) Eval(x float64) (core.EvalResult, error) {
	var resp struct {
		Result core.EvalResult `json:"result"`
	}
	err := c.do(http.MethodGet, "/api/eval?x="+strconv.FormatFloat(x, 'g', -1, 64), nil, &resp)
	return resp.Result, err
}

// Header fetches the C++ header text; packed selects the fixed-point form.
func (c *Client) Header(packed bool) (string, error) {
	path := "/api/header"
	if packed {
		path += "?format=packed"
	}
	var buf bytes.Buffer
	err := c.do(http.MethodGet, path, nil, &buf)
	return buf.String(), err
}

func (c *Client) Stats() (monitor.Snapshot, error) {
	var resp struct {
		Stats monitor.Snapshot `json:"stats"`
	}
	err := c.do(http.MethodGet, "/api/stats", nil, &resp)
	return resp.Stats, err
}

func (c *Client) Reset() error {
	return c.do(http.MethodPost, "/api/reset", nil, nil)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do sends one request, retrying once on a transport failure. out may be a
// *bytes.Buffer for raw bodies, a JSON target, or nil.
func (c *Client) do(method, path string, body []byte, out interface{}) error {
	resp, err := c.send(method, path, body)
	if err != nil {
		c.http.CloseIdleConnections()
		resp, err = c.send(method, path, body)
		if err != nil {
			return merry.Wrap(err).WithValue("path", path)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	switch v := out.(type) {
	case nil:
		_, err = io.Copy(io.Discard, resp.Body)
	case *bytes.Buffer:
		_, err = v.ReadFrom(resp.Body)
	default:
		err = json.NewDecoder(resp.Body).Decode(out)
	}
	return merry.Wrap(err)
}

func (c *Client) send(method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// decodeError turns an error response back into a merry error with the same
// status. 404 maps onto common.ErrNoTable.
func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if resp.StatusCode == http.StatusNotFound {
		return common.ErrNoTable.WithValue("remote", msg)
	}
	return merry.New(msg).WithHTTPCode(resp.StatusCode)
}
