package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerGuard(t *testing.T) string {
	raw, err := Postgres.ReadFile("postgres/000001_billing_schema.up.sql")
	require.NoError(t, err)

	schema := string(raw)
	start := strings.Index(schema, "CREATE OR REPLACE FUNCTION ledger_entries_guard()")
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(schema[start:], "$$ LANGUAGE plpgsql;")
	require.Greater(t, end, 0)
	return schema[start : start+end]
}

func TestLedgerGuardFreezesFinalizedOutcome(t *testing.T) {
	guard := ledgerGuard(t)

	finalized := strings.Index(guard, "IF OLD.status <> 'pending' THEN")
	require.GreaterOrEqual(t, finalized, 0)
	for _, column := range []string{"failure_code", "failure_message", "confirmed_at"} {
		assert.Contains(t, guard[finalized:], "NEW."+column+" IS DISTINCT FROM OLD."+column, column)
	}
}

func TestLedgerGuardFreezesOwnership(t *testing.T) {
	guard := ledgerGuard(t)

	for _, column := range []string{"amount", "currency", "subscription_id", "user_id", "external_reference_id"} {
		assert.Contains(t, guard, "NEW."+column+" IS DISTINCT FROM OLD."+column, column)
	}
	assert.Contains(t, guard, "ledger entries cannot be deleted")
}
