package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
)

var (
	success = color.New(color.FgGreen)
	bold    = color.New(color.Bold)
)

// newClient returns a client that reports redirects instead of following them
func newClient() *resty.Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(apiURL, "/"))
	client.SetTimeout(60 * time.Second)
	client.SetHeader("User-Agent", "juice-shop-cli/0.1.0")
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	if authToken != "" {
		client.SetAuthToken(authToken)
	}
	return client
}

func requireToken() error {
	if authToken == "" {
		return fmt.Errorf("no session token: run login first, then export JUICE_SHOP_TOKEN=<token>")
	}
	return nil
}

var errorItem = regexp.MustCompile(`<li>Error: ([^<]*)</li>`)

// apiError turns a failed response into an error. Upload endpoints answer
// with an HTML error page unless JSON is requested, so both shapes are handled.
func apiError(status int, contentType string, body []byte) error {
	if strings.HasPrefix(contentType, "application/json") {
		var errResp map[string]interface{}
		if json.Unmarshal(body, &errResp) == nil {
			if msg, ok := errResp["message"].(string); ok {
				return fmt.Errorf("API error (%d): %s", status, msg)
			}
			if msg, ok := errResp["error"].(string); ok {
				return fmt.Errorf("API error (%d): %s", status, msg)
			}
		}
	}
	if m := errorItem.FindSubmatch(body); m != nil {
		return fmt.Errorf("API error (%d): %s", status, m[1])
	}
	return fmt.Errorf("API error: status %d", status)
}

func responseError(resp *resty.Response) error {
	return apiError(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())
}
