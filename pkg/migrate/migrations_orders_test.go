package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK (quantity > 0)",
		"order_status NOT NULL DEFAULT 'pending'",
		"DROP TABLE IF EXISTS orders",
	}
	for _, want := range checks {
		if !strings.Contains(content, want) {
			t.Errorf("orders migration missing %q", want)
		}
	}
}

func TestCommissionsMigrationEnforcesExactSplit(t *testing.T) {
	content := readMigration(t, "*_create_commissions.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_commissions_order_id",
		"CHECK (seller_amount_cents + commission_amount_cents = order_amount_cents)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_platform_earnings_commission_id",
	}
	for _, want := range checks {
		if !strings.Contains(content, want) {
			t.Errorf("commissions migration missing %q", want)
		}
	}
}

func TestTransactionsMigrationHasUniqueReference(t *testing.T) {
	content := readMigration(t, "*_create_transactions.sql")

	if !strings.Contains(content, "CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_reference") {
		t.Error("transactions migration missing unique reference index")
	}
}
