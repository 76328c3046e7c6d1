package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xV8/orderbuddy-main/internal/config"
	"github.com/0xV8/orderbuddy-main/internal/model"
)

var client = &http.Client{Timeout: 10 * time.Second}

type apiResponse[T any] struct {
	Data T `json:"data"`
}

// Register announces a printer to the backend and stores the agent key it
// hands back in p.
func Register(ctx context.Context, apiURL, apiKey string, p *config.Printer) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	var resp apiResponse[struct {
		AgentKey string `json:"agent_key"`
	}]
	if err := call(ctx, http.MethodPost, printersEndpoint(apiURL), apiKey, body, &resp); err != nil {
		return err
	}
	if resp.Data.AgentKey == "" {
		return errors.New("no agent_key found in response")
	}
	p.AgentKey = resp.Data.AgentKey
	return nil
}

// ListPrinters fetches the printers registered for this API key.
func ListPrinters(ctx context.Context, apiURL, apiKey string) ([]config.Printer, error) {
	var resp apiResponse[struct {
		Printers []config.Printer `json:"printers"`
	}]
	if err := call(ctx, http.MethodGet, printersEndpoint(apiURL), apiKey, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Printers, nil
}

func printersEndpoint(apiURL string) string {
	return strings.TrimRight(apiURL, "/") + "/api/printers"
}

func call(ctx context.Context, method, url, apiKey string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", apiKey)
	if ua := model.UserAgent(ctx); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API Error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
