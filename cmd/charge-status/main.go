package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/config"
	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/gateway"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/charge-status/main.go <gateway> <charge-id>")
		fmt.Println("Example: go run cmd/charge-status/main.go asaas pay_080225913252")
		os.Exit(1)
	}

	gw := domain.Gateway(os.Args[1])
	chargeID := os.Args[2]
	if !gw.IsValid() {
		fmt.Fprintf(os.Stderr, "Unknown gateway %q (asaas, stripe, pushinpay)\n", gw)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	registry := gateway.NewRegistryFromConfig(cfg.Gateways, logger)
	adapter, err := registry.Get(gw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fetcher, ok := adapter.(gateway.StatusFetcher)
	if !ok {
		fmt.Fprintf(os.Stderr, "Gateway %s cannot report charge status\n", gw)
		os.Exit(1)
	}

	raw, err := fetcher.FetchStatus(context.Background(), chargeID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch charge: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Gateway:         %s\n", gw)
	fmt.Printf("Charge ID:       %s\n", chargeID)
	fmt.Printf("Gateway status:  %s\n", raw)
	fmt.Printf("Order status:    %s\n", domain.MapGatewayStatus(gw, raw))
}
