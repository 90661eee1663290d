package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"beep/internal/config"
	"beep/internal/core"
	"beep/internal/log"
	"beep/internal/teller"
)

// teller-check verifies provider connectivity for one access token: it
// lists the accounts, their balances, and a sample of recent transactions.
func main() {
	_ = godotenv.Load()

	token := flag.String("token", "", "enrollment access token (required)")
	days := flag.Int("days", 7, "how many days of transactions to sample")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "usage: teller-check -token <access token> [-days n]")
		os.Exit(2)
	}

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	client, err := teller.NewClient(teller.Options{
		BaseURL:  cfg.TellerBaseURL,
		CertFile: cfg.TellerCertFile,
		KeyFile:  cfg.TellerKeyFile,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "teller client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	accounts, err := client.Accounts(ctx, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list accounts: %v\n", err)
		os.Exit(1)
	}

	today := core.DateOf(time.Now())
	query := teller.TransactionQuery{From: today.AddDays(-*days), To: today, Count: 10}

	fmt.Printf("%d account(s)\n", len(accounts))
	for _, account := range accounts {
		fmt.Printf("\n%s (%s ****%s) at %s\n", account.Name, account.Type, account.LastFour, account.InstitutionName)

		balance, err := client.Balance(ctx, *token, account.ID)
		if err != nil {
			fmt.Printf("  balance: error: %v\n", err)
		} else {
			fmt.Printf("  balance: available %s, ledger %s\n",
				core.FormatUSD(balance.Available), core.FormatUSD(balance.Ledger))
		}

		txs, err := client.Transactions(ctx, *token, account.ID, query)
		if err != nil {
			fmt.Printf("  transactions: error: %v\n", err)
			continue
		}
		fmt.Printf("  %d transaction(s) in the last %d day(s)\n", len(txs), *days)
		for _, tx := range txs {
			fmt.Printf("    %s  %-30s  %s  (%s)\n", tx.Date, tx.Description, core.FormatUSD(tx.Amount), tx.Status)
		}
	}
}
