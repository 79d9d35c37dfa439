package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/config"
	"github.com/risecheckout/orderengine/internal/pii"
	"github.com/risecheckout/orderengine/internal/repository/postgres"
)

const batchSize = 200

func main() {
	dryRun := len(os.Args) > 1 && os.Args[1] == "--dry-run"

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	encryptor, err := pii.NewEncryptor(cfg.PII.EncryptionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid PII_ENCRYPTION_KEY: %v\n", err)
		os.Exit(1)
	}

	repos := postgres.NewRepositories(db, logger)
	ctx := context.Background()

	total := 0
	for {
		orders, err := repos.Order.ListPlaintextPII(ctx, batchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list orders: %v\n", err)
			os.Exit(1)
		}
		if len(orders) == 0 {
			break
		}

		for _, order := range orders {
			phone, err := sealLegacy(encryptor, order.CustomerPhoneEncrypted)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encrypt phone of order %s: %v\n", order.ID, err)
				os.Exit(1)
			}
			cpf, err := sealLegacy(encryptor, order.CustomerCPFEncrypted)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encrypt tax id of order %s: %v\n", order.ID, err)
				os.Exit(1)
			}

			if dryRun {
				fmt.Printf("would encrypt order %s\n", order.ID)
				continue
			}
			if err := repos.Order.UpdateEncryptedPII(ctx, order.ID, phone, cpf); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to update order %s: %v\n", order.ID, err)
				os.Exit(1)
			}
			total++
		}

		if dryRun {
			break
		}
	}

	fmt.Printf("Encrypted PII of %d orders\n", total)
}

// sealLegacy encrypts a plaintext column. Values already carrying the
// encryption prefix are kept as they are.
func sealLegacy(enc *pii.Encryptor, value *string) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	if pii.IsEncrypted(*value) {
		return value, nil
	}
	return enc.EncryptOptional(value)
}
