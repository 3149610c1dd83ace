package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haskel/agupredict/internal/config"
)

// clientMargin is added to the server's write timeout so the server,
// not the client, is the one to give up on a slow script.
const clientMargin = 30 * time.Second

// Client is an HTTP client for the agupredict API.
type Client struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
}

func NewClient() *Client {
	return &Client{
		baseURL: GetServerURL(),
		client: &http.Client{
			Timeout: requestTimeout(),
		},
		user:     user,
		password: password,
	}
}

// requestTimeout is --timeout when set. Otherwise it follows the
// configured server write timeout, which always outlasts scripts.timeout_sec.
func requestTimeout() time.Duration {
	if timeout > 0 {
		return timeout
	}
	cfg := config.LoadOrDefault(cfgFile)
	return cfg.WriteTimeout() + clientMargin
}

func (c *Client) Get(path string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}

	return c.do(req)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(path string, body any) ([]byte, int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return data, resp.StatusCode, nil
}

// Health checks if the server is running.
func (c *Client) Health() error {
	_, status, err := c.Get("/health")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("server returned status %d", status)
	}
	return nil
}

// apiError extracts the {"message": ...} envelope from a failed answer.
func apiError(data []byte, status int) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return fmt.Errorf("%s (status %d)", body.Message, status)
	}
	return fmt.Errorf("server returned status %d: %s", status, bytes.TrimSpace(data))
}
