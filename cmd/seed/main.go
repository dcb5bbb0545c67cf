/**
 * @description
 * Account seeding tool for load testing and local development. It runs in
 * two modes: `gen` writes a CSV of randomly numbered accounts with bucketed
 * balances, and `load` bulk-inserts a CSV into casa_account in batches via
 * the PostgreSQL COPY protocol, optionally truncating the ledger first.
 *
 * Usage:
 *   seed -mode gen  -source accounts.csv -count 10000
 *   seed -mode load -source accounts.csv -batch 10000 [-truncate]
 *
 * @dependencies
 * - encoding/csv, flag, math/rand: Standard Go libraries.
 * - github.com/jackc/pgx/v5: COPY-based bulk insert.
 * - github.com/jackc/pgx-shopspring-decimal: NUMERIC <-> decimal.Decimal codec.
 * - github.com/shopspring/decimal: Balance parsing.
 * - internal/config: DATABASE_URL resolution.
 */

package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/casaops/casa-ledger-service/internal/config"
)

var balanceBuckets = []string{"100.00", "500.00", "1000.00", "50000.00", "10000000.00"}

func main() {
	mode := flag.String("mode", "load", "gen or load")
	source := flag.String("source", "", "CSV file to generate or load")
	count := flag.Int("count", 10000, "number of accounts to generate")
	batch := flag.Int("batch", 10000, "rows per COPY batch when loading")
	truncate := flag.Bool("truncate", false, "truncate ledger tables before loading")
	flag.Parse()

	if *source == "" {
		log.Fatal("level=fatal component=seed msg=\"-source is required\"")
	}

	switch *mode {
	case "gen":
		if err := generateCSV(*source, *count); err != nil {
			log.Fatalf("level=fatal component=seed msg=\"generate failed\" err=%v", err)
		}
	case "load":
		if err := loadCSV(*source, *batch, *truncate); err != nil {
			log.Fatalf("level=fatal component=seed msg=\"load failed\" err=%v", err)
		}
	default:
		log.Fatalf("level=fatal component=seed msg=\"unknown mode\" mode=%s", *mode)
	}
}

// generateCSV writes `count` accounts with unique 9-digit account numbers.
func generateCSV(path string, count int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"account_num", "currency", "balance"}); err != nil {
		return err
	}

	for _, n := range uniqueAccountNumbers(count, 9) {
		record := []string{
			fmt.Sprintf("A%09d", n),
			"USD",
			balanceBuckets[rand.Intn(len(balanceBuckets))],
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	log.Printf("level=info component=seed msg=\"accounts generated\" count=%d path=%s", count, path)
	return nil
}

func loadCSV(path string, batchSize int, truncate bool) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be configured")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer conn.Close(ctx)
	pgxdecimal.Register(conn.TypeMap())

	if truncate {
		for _, stmt := range []string{
			"TRUNCATE casa_transaction CASCADE",
			"TRUNCATE casa_account CASCADE",
			"TRUNCATE casa_transfer",
		} {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("truncate failed: %w", err)
			}
		}
		log.Println("level=info component=seed msg=\"ledger tables truncated\"")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil { // header
		return err
	}

	columns := []string{"account_num", "currency", "balance", "avail_balance", "status", "updated_at"}
	now := time.Now()

	var rows [][]any
	total := 0
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		copied, err := conn.CopyFrom(ctx, pgx.Identifier{"casa_account"}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		total += int(copied)
		rows = rows[:0]
		log.Printf("level=info component=seed msg=\"accounts loaded\" total=%d", total)
		return nil
	}

	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		balance, err := decimal.NewFromString(record[2])
		if err != nil {
			return fmt.Errorf("bad balance %q for account %s: %w", record[2], record[0], err)
		}
		rows = append(rows, []any{record[0], record[1], balance, balance, "ACTIVE", now})

		if len(rows) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// uniqueAccountNumbers draws `count` distinct integers with the given number
// of digits.
func uniqueAccountNumbers(count, digits int) []int {
	lower := 1
	for i := 1; i < digits; i++ {
		lower *= 10
	}
	upper := lower*10 - 1

	seen := make(map[int]struct{}, count)
	out := make([]int, 0, count)
	for len(out) < count {
		n := lower + rand.Intn(upper-lower+1)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
