package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/pricehist/models"
)

const defaultRows = 30

func main() {
	apiURL := os.Getenv("PRICEHIST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PRICEHIST_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PRICEHIST_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"pricehist",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	fetchTool := mcp.NewTool("fetch_price_history",
		mcp.WithDescription("Fetch up to five years of daily price history (open, high, low, close, adjusted close, volume, daily return) for SGX tickers such as D05.SI, or for full history page URLs. Runs a real browser, so each input takes several seconds."),
		mcp.WithArray("inputs",
			mcp.Required(),
			mcp.Description("Ticker symbols or history page URLs (max 20)"),
		),
		mcp.WithNumber("max_age_ms",
			mcp.Description("Serve a cached result younger than this many milliseconds (default 0, no cache)"),
		),
		mcp.WithNumber("rows",
			mcp.Description("Number of most recent rows to include per ticker (default 30, 0 for all)"),
		),
	)
	s.AddTool(fetchTool, handleFetchHistory(apiURL, apiKey))

	batchTool := mcp.NewTool("batch_price_history",
		mcp.WithDescription("Queue a larger price history batch (max 50 inputs) and wait for it to finish. Optionally notifies a webhook when done."),
		mcp.WithArray("inputs",
			mcp.Required(),
			mcp.Description("Ticker symbols or history page URLs"),
		),
		mcp.WithString("webhook_url",
			mcp.Description("URL that receives a batch.completed event"),
		),
		mcp.WithNumber("rows",
			mcp.Description("Number of most recent rows to include per ticker (default 30, 0 for all)"),
		),
	)
	s.AddTool(batchTool, handleBatchHistory(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer
// "processing" or ctx ends.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleFetchHistory(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inputs, err := request.RequireStringSlice("inputs")
		if err != nil || len(inputs) == 0 {
			return mcp.NewToolResultError("inputs is required and must be an array of strings"), nil
		}

		payload := models.HistoryRequest{
			Inputs: inputs,
			MaxAge: request.GetInt("max_age_ms", 0),
		}
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/history", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history request failed: %v", err)), nil
		}

		var resp models.HistoryResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if resp.Report == nil {
			errMsg := "history request failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		text, err := formatReport(resp.Report, request.GetInt("rows", defaultRows))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(text), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func handleBatchHistory(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inputs, err := request.RequireStringSlice("inputs")
		if err != nil || len(inputs) == 0 {
			return mcp.NewToolResultError("inputs is required and must be an array of strings"), nil
		}

		payload := models.BatchRequest{
			Inputs:     inputs,
			WebhookURL: request.GetString("webhook_url", ""),
		}
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch/history", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var batchResp models.BatchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}
		if batchResp.ID == "" {
			return mcp.NewToolResultError("batch job creation failed"), nil
		}

		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batchResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var status models.BatchStatusResponse
		if err := json.Unmarshal(resultBody, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		header := fmt.Sprintf("Batch %s: %s (%d/%d completed)\n\n", status.ID, status.Status, status.Completed, status.Total)
		if status.Report == nil {
			return mcp.NewToolResultError(header + "no report available"), nil
		}
		text, err := formatReport(status.Report, request.GetInt("rows", defaultRows))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(header + text), nil
	}
}
