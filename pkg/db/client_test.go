package db

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
)

func newTestClient(t *testing.T) (*Client, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Plan{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return &Client{conn: conn}, conn
}

func planCount(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.Plan{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func TestWithTxCommits(t *testing.T) {
	client, conn := newTestClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&models.Plan{
			Name:         "Starter",
			Price:        decimal.RequireFromString("9.99"),
			SearchLimit:  100,
			DurationDays: 30,
		}).Error
	})
	if err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}
	if got := planCount(t, conn); got != 1 {
		t.Fatalf("expected 1 plan, got %d", got)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client, conn := newTestClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Plan{
			Name:         "Doomed",
			Price:        decimal.Zero,
			SearchLimit:  1,
			DurationDays: 1,
		}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return the callback error")
	}
	if got := planCount(t, conn); got != 0 {
		t.Fatalf("expected rollback to leave no plans, got %d", got)
	}
}

func TestPing(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
