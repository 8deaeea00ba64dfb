// echo-client exercises a running echo-server: it calls echo without a
// token, signs in, then calls echo and whoami with the issued token.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/spf13/pflag"
)

type client struct {
	endpoint string
	http     *http.Client
	token    string
}

type result struct {
	Status int
	Header http.Header
	Body   string
}

func (r result) String() string {
	return fmt.Sprintf("status=%d server-timing=%q request-id=%q body=%s",
		r.Status, r.Header.Get("Server-Timing"), r.Header.Get("X-Request-ID"), strings.TrimSpace(r.Body))
}

func main() {
	var (
		endpoint string
		username string
		password string
		message  string
		timeout  time.Duration
	)

	flagSet := pflag.NewFlagSet("echo-client", pflag.ContinueOnError)
	flagSet.StringVar(&endpoint, "endpoint", "http://localhost:3000", "base URL of the echo server")
	flagSet.StringVarP(&username, "username", "u", "test", "username for signin")
	flagSet.StringVarP(&password, "password", "p", "abcd12345", "password for signin (at least 8 characters)")
	flagSet.StringVarP(&message, "message", "m", "example", "message to echo")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	httpClient := cleanhttp.DefaultClient()
	httpClient.Timeout = timeout
	c := &client{endpoint: strings.TrimRight(endpoint, "/"), http: httpClient}

	if err := run(context.Background(), c, username, password, message); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client, username, password, message string) error {
	echoBody := map[string]string{"message": message}

	fmt.Println("\n--- Calling echo without authentication")
	res, err := c.post(ctx, "/api/echo", echoBody)
	if err != nil {
		return err
	}
	fmt.Println(res)

	fmt.Println("\n--- Calling signin to get a token")
	res, err = c.post(ctx, "/api/signin", map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	fmt.Println(res)
	if res.Status != http.StatusOK {
		return fmt.Errorf("signin failed with status %d", res.Status)
	}

	var signin struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(res.Body), &signin); err != nil {
		return fmt.Errorf("decoding signin response: %w", err)
	}
	c.token = signin.Token

	fmt.Println("\n--- Calling echo with authentication")
	res, err = c.post(ctx, "/api/echo", echoBody)
	if err != nil {
		return err
	}
	fmt.Println(res)

	fmt.Println("\n--- Calling whoami with authentication")
	res, err = c.get(ctx, "/api/whoami")
	if err != nil {
		return err
	}
	fmt.Println(res)

	return nil
}

func (c *client) post(ctx context.Context, path string, body any) (result, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) get(ctx context.Context, path string) (result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return result{}, err
	}
	return c.do(req)
}

func (c *client) do(req *http.Request) (result, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return result{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{}, fmt.Errorf("reading %s response: %w", req.URL.Path, err)
	}
	return result{Status: resp.StatusCode, Header: resp.Header, Body: string(body)}, nil
}
