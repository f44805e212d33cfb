package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kanweiwei/speekium/internal/infra"
)

// CheckResult reports whether a model provider endpoint is reachable and
// whether the configured model is available on it.
type CheckResult struct {
	Reachable  bool   `json:"reachable"`
	ModelFound bool   `json:"model_found"`
	Detail     string `json:"detail,omitempty"`
}

// Checker probes chat providers before the worker is pointed at them, so a
// dead endpoint surfaces as a clear settings error instead of a timeout
// mid-conversation.
type Checker struct {
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewChecker() *Checker {
	return &Checker{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

// CheckOllama probes a local Ollama endpoint and looks for the model among
// its pulled tags. Tag names may carry a ":latest" suffix the config omits.
func (c *Checker) CheckOllama(ctx context.Context, baseURL, model string) CheckResult {
	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	if err := c.getJSON(ctx, strings.TrimRight(baseURL, "/")+"/api/tags", "", &payload); err != nil {
		return CheckResult{Detail: err.Error()}
	}

	result := CheckResult{Reachable: true}
	for _, m := range payload.Models {
		if m.Name == model || strings.TrimSuffix(m.Name, ":latest") == model {
			result.ModelFound = true
			break
		}
	}
	if !result.ModelFound {
		result.Detail = fmt.Sprintf("model %q not pulled", model)
	}
	return result
}

// CheckOpenAI probes an OpenAI-compatible endpoint with the configured key.
func (c *Checker) CheckOpenAI(ctx context.Context, baseURL, apiKey, model string) CheckResult {
	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := c.getJSON(ctx, strings.TrimRight(baseURL, "/")+"/v1/models", apiKey, &payload); err != nil {
		return CheckResult{Detail: err.Error()}
	}

	result := CheckResult{Reachable: true}
	for _, m := range payload.Data {
		if m.ID == model {
			result.ModelFound = true
			break
		}
	}
	if !result.ModelFound {
		result.Detail = fmt.Sprintf("model %q not listed", model)
	}
	return result
}

func (c *Checker) getJSON(ctx context.Context, url, bearer string, out any) error {
	// Statuses like 401/404 won't clear up on a retry; they end the loop
	// immediately and surface as the final error.
	var terminal error
	err := infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("contacting provider: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if !infra.IsRetryableHTTPStatus(resp.StatusCode) {
				terminal = statusErr
				return nil
			}
			return statusErr
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding provider response: %w", err)
		}
		return nil
	})
	if terminal != nil {
		return terminal
	}
	return err
}
