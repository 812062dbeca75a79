package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type contextKey string

const dbKey contextKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*sql.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Seed the database with master ordering data",
		Commands: []*cli.Command{
			{
				Name:  "master",
				Usage: "Seed stores, vendors, and vendor sku configurations",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing master seed data",
						Value:   "./data/seeds/master_data",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runSeeder,
			},
			{
				Name:  "inventory",
				Usage: "Seed on-hand inventory snapshots",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing inventory seed data",
						Value:   "./data/seeds/inventory",
						EnvVars: []string{"SEED_INVENTORY_DIR"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runInventorySeeder,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runSeeder(c *cli.Context) error {
	db := c.Context.Value(dbKey).(*sql.DB)
	dataDir := c.String("data-dir")
	ctx := c.Context

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	log.Println("Starting database seeding...")

	if err := seedNamedTable(ctx, tx, "stores", filepath.Join(dataDir, "stores.csv")); err != nil {
		return fmt.Errorf("failed to seed stores: %w", err)
	}
	if err := seedNamedTable(ctx, tx, "vendors", filepath.Join(dataDir, "vendors.csv")); err != nil {
		return fmt.Errorf("failed to seed vendors: %w", err)
	}
	if err := seedVendorSkuConfigs(ctx, tx, dataDir); err != nil {
		return fmt.Errorf("failed to seed vendor sku configs: %w", err)
	}
	if err := seedVendorOrderingSettings(ctx, tx, dataDir); err != nil {
		return fmt.Errorf("failed to seed vendor ordering settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// seedNamedTable loads a name,active CSV into a table keyed by unique name.
func seedNamedTable(ctx context.Context, tx *sql.Tx, tableName, filePath string) error {
	log.Printf("Seeding %s from %s\n", tableName, filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, active, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			active = EXCLUDED.active,
			updated_at = NOW()
	`, tableName)

	count := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read CSV record: %w", err)
		}
		if len(record) < 2 {
			return fmt.Errorf("invalid record (expected name,active): %v", record)
		}

		active, err := strconv.ParseBool(strings.TrimSpace(record[1]))
		if err != nil {
			return fmt.Errorf("invalid active flag %q: %w", record[1], err)
		}

		if _, err := tx.ExecContext(ctx, query, strings.TrimSpace(record[0]), active); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		count++
	}

	log.Printf("Successfully seeded %s (%d records)\n", tableName, count)
	return nil
}

func seedVendorSkuConfigs(ctx context.Context, tx *sql.Tx, dataDir string) error {
	log.Printf("Seeding vendor_sku_configs\n")

	vendorIDs, err := loadNameIDMap(ctx, tx, "vendors")
	if err != nil {
		return err
	}

	file, err := os.Open(filepath.Join(dataDir, "vendor_sku_configs.csv"))
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	const query = `
		INSERT INTO vendor_sku_configs (
			vendor_id, sku, unit_cost, pack_size, min_order_qty,
			is_default_vendor, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (vendor_id, sku) DO UPDATE SET
			unit_cost = EXCLUDED.unit_cost,
			pack_size = EXCLUDED.pack_size,
			min_order_qty = EXCLUDED.min_order_qty,
			is_default_vendor = EXCLUDED.is_default_vendor,
			active = EXCLUDED.active,
			updated_at = NOW()
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare vendor sku config statement: %w", err)
	}
	defer stmt.Close()

	rowCount := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read record: %w", err)
		}
		if len(record) < 7 {
			return fmt.Errorf("invalid record (expected at least 7 columns): %v", record)
		}

		vendorName := strings.TrimSpace(record[0])
		vendorID, ok := vendorIDs[vendorName]
		if !ok {
			return fmt.Errorf("vendor %s not found", vendorName)
		}

		sku := strings.TrimSpace(record[1])
		unitCost := strings.TrimSpace(record[2])

		packSize, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil || packSize < 1 {
			return fmt.Errorf("invalid pack_size for sku %s: %q", sku, record[3])
		}
		minOrderQty, err := strconv.Atoi(strings.TrimSpace(record[4]))
		if err != nil || minOrderQty < 0 {
			return fmt.Errorf("invalid min_order_qty for sku %s: %q", sku, record[4])
		}
		isDefault, err := strconv.ParseBool(strings.TrimSpace(record[5]))
		if err != nil {
			return fmt.Errorf("invalid is_default_vendor for sku %s: %q", sku, record[5])
		}
		active, err := strconv.ParseBool(strings.TrimSpace(record[6]))
		if err != nil {
			return fmt.Errorf("invalid active flag for sku %s: %q", sku, record[6])
		}

		if _, err := stmt.ExecContext(ctx,
			vendorID, sku, unitCost, packSize, minOrderQty, isDefault, active,
		); err != nil {
			return fmt.Errorf("failed to upsert vendor sku config for sku %s: %w", sku, err)
		}

		rowCount++
		if rowCount%5000 == 0 {
			log.Printf("Seeded %d vendor sku configs...", rowCount)
		}
	}

	log.Printf("Successfully seeded vendor_sku_configs (%d records)\n", rowCount)
	return nil
}

func seedVendorOrderingSettings(ctx context.Context, tx *sql.Tx, dataDir string) error {
	filePath := filepath.Join(dataDir, "vendor_ordering_settings.csv")
	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		log.Println("No vendor ordering settings file, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	log.Printf("Seeding vendor_ordering_settings from %s\n", filePath)

	vendorIDs, err := loadNameIDMap(ctx, tx, "vendors")
	if err != nil {
		return err
	}

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	const query = `
		INSERT INTO vendor_ordering_settings (
			vendor_id, reorder_weeks, stock_up_weeks, history_lookback_days,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (vendor_id) DO UPDATE SET
			reorder_weeks = EXCLUDED.reorder_weeks,
			stock_up_weeks = EXCLUDED.stock_up_weeks,
			history_lookback_days = EXCLUDED.history_lookback_days,
			updated_at = NOW()
	`

	count := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read record: %w", err)
		}
		if len(record) < 4 {
			return fmt.Errorf("invalid record (expected 4 columns): %v", record)
		}

		vendorName := strings.TrimSpace(record[0])
		vendorID, ok := vendorIDs[vendorName]
		if !ok {
			return fmt.Errorf("vendor %s not found", vendorName)
		}

		reorderWeeks, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || reorderWeeks < 1 {
			return fmt.Errorf("invalid reorder_weeks for vendor %s: %q", vendorName, record[1])
		}
		stockUpWeeks, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil || stockUpWeeks <= reorderWeeks {
			return fmt.Errorf("invalid stock_up_weeks for vendor %s: %q", vendorName, record[2])
		}
		lookbackDays, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil || lookbackDays < 7 {
			return fmt.Errorf("invalid history_lookback_days for vendor %s: %q", vendorName, record[3])
		}

		if _, err := tx.ExecContext(ctx, query, vendorID, reorderWeeks, stockUpWeeks, lookbackDays); err != nil {
			return fmt.Errorf("failed to upsert settings for vendor %s: %w", vendorName, err)
		}
		count++
	}

	log.Printf("Successfully seeded vendor_ordering_settings (%d records)\n", count)
	return nil
}

func runInventorySeeder(c *cli.Context) error {
	db := c.Context.Value(dbKey).(*sql.DB)
	dataDir := c.String("data-dir")
	ctx := c.Context

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	storeIDs, err := loadNameIDMap(ctx, tx, "stores")
	if err != nil {
		return err
	}

	filePath := filepath.Join(dataDir, "store_inventory.csv")
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	log.Printf("Seeding store_inventory from %s\n", filePath)

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	const query = `
		INSERT INTO store_inventory (store_id, sku, on_hand_qty, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (store_id, sku) DO UPDATE SET
			on_hand_qty = EXCLUDED.on_hand_qty,
			updated_at = NOW()
	`

	count := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read record: %w", err)
		}
		if len(record) < 3 {
			return fmt.Errorf("invalid record (expected store,sku,on_hand_qty): %v", record)
		}

		storeName := strings.TrimSpace(record[0])
		storeID, ok := storeIDs[storeName]
		if !ok {
			return fmt.Errorf("store %s not found", storeName)
		}

		if _, err := tx.ExecContext(ctx, query, storeID, strings.TrimSpace(record[1]), strings.TrimSpace(record[2])); err != nil {
			return fmt.Errorf("failed to upsert inventory for sku %s: %w", record[1], err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Successfully seeded store_inventory (%d records)\n", count)
	return nil
}

func loadNameIDMap(ctx context.Context, tx *sql.Tx, tableName string) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT name, id FROM %s", tableName)
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s names: %w", tableName, err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var (
			name string
			id   int64
		)
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("failed to scan %s IDs: %w", tableName, err)
		}
		result[name] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s IDs: %w", tableName, err)
	}

	return result, nil
}
