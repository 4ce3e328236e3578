// Package dbtest opens an in-memory sqlite database carrying the ledger schema for
// repository and transaction tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scoutledger/backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE scouts (
  id TEXT PRIMARY KEY,
  path TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  builder_status TEXT,
  current_balance REAL NOT NULL DEFAULT 0,
  deleted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE scout_wallets (
  address TEXT PRIMARY KEY,
  scout_id TEXT NOT NULL,
  is_primary INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE referral_events (
  id TEXT PRIMARY KEY,
  referrer_id TEXT NOT NULL,
  referee_id TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE builder_nfts (
  id TEXT PRIMARY KEY,
  builder_id TEXT NOT NULL,
  season TEXT NOT NULL,
  token_id INTEGER NOT NULL,
  nft_type TEXT NOT NULL,
  contract_address TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (builder_id, season, nft_type)
);`,
	`CREATE TABLE nft_purchase_events (
  id TEXT PRIMARY KEY,
  builder_nft_id TEXT NOT NULL,
  scout_id TEXT,
  from_address TEXT,
  to_address TEXT,
  tokens_purchased INTEGER NOT NULL,
  week TEXT NOT NULL,
  tx_hash TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE builder_events (
  id TEXT PRIMARY KEY,
  builder_id TEXT NOT NULL,
  type TEXT NOT NULL,
  season TEXT NOT NULL,
  week TEXT NOT NULL,
  metadata BLOB,
  created_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_builder_events_gems_payout ON builder_events (builder_id, week) WHERE type = 'gems_payout';`,
	`CREATE TABLE user_weekly_stats (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  season TEXT NOT NULL,
  week TEXT NOT NULL,
  gems_collected INTEGER NOT NULL DEFAULT 0,
  rank INTEGER,
  UNIQUE (user_id, week)
);`,
	`CREATE TABLE user_season_stats (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  season TEXT NOT NULL,
  points_earned_as_builder REAL NOT NULL DEFAULT 0,
  points_earned_as_scout REAL NOT NULL DEFAULT 0,
  nfts_purchased INTEGER NOT NULL DEFAULT 0,
  UNIQUE (user_id, season)
);`,
	`CREATE TABLE points_receipts (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  recipient_id TEXT,
  sender_id TEXT,
  value REAL NOT NULL,
  season TEXT NOT NULL,
  week TEXT NOT NULL,
  claimed_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE tokens_receipts (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  recipient_address TEXT NOT NULL,
  recipient_id TEXT,
  sender_id TEXT,
  value TEXT NOT NULL,
  season TEXT NOT NULL,
  week TEXT NOT NULL,
  claimed_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE weekly_claims (
  id TEXT PRIMARY KEY,
  season TEXT NOT NULL,
  week TEXT NOT NULL UNIQUE,
  merkle_root TEXT NOT NULL,
  total_claimable TEXT NOT NULL,
  leaves BLOB NOT NULL,
  proofs BLOB NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE claim_submissions (
  id TEXT PRIMARY KEY,
  scout_id TEXT NOT NULL,
  wallet_address TEXT NOT NULL,
  season TEXT NOT NULL,
  week TEXT NOT NULL,
  leaf_index INTEGER NOT NULL,
  amount TEXT NOT NULL,
  tx_hash TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  next_check_at DATETIME,
  confirmed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE scout_merge_events (
  id TEXT PRIMARY KEY,
  merged_from_id TEXT NOT NULL UNIQUE,
  merged_to_id TEXT NOT NULL,
  merged_records BLOB NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a GORM handle on a fresh in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// Client wraps Open in a db.Client so services can run real transactions.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}
