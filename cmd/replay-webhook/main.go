// Command replay-webhook signs a Stripe event payload with the webhook secret
// and delivers it to the wallet's callback endpoint.
//
//	replay-webhook -file event.json -url http://localhost:8080/api/webhook/stripe
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/josh-kwaku/stripe-wallet/internal/logging"
	"github.com/josh-kwaku/stripe-wallet/internal/service"
)

func main() {
	file := flag.String("file", "", "path to the event JSON (required)")
	url := flag.String("url", "http://localhost:8080/api/webhook/stripe", "callback endpoint")
	secret := flag.String("secret", os.Getenv("STRIPE_WEBHOOK_SECRET"), "webhook signing secret")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	logging.Init("replay-webhook", "info", "development")

	if err := run(*file, *url, *secret, *timeout); err != nil {
		slog.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func run(file, url, secret string, timeout time.Duration) error {
	if file == "" {
		return fmt.Errorf("run: -file is required")
	}
	if secret == "" {
		return fmt.Errorf("run: -secret or STRIPE_WEBHOOK_SECRET is required")
	}

	payload, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("run: %s is not valid JSON", file)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(service.SignatureHeader, service.SignPayload(payload, secret, time.Now()))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("run: deliver: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	slog.Info("webhook delivered", "status", resp.StatusCode, "response", string(bytes.TrimSpace(body)))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("run: endpoint answered %d", resp.StatusCode)
	}
	return nil
}
