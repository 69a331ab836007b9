package journal

import (
	"fmt"
	"strings"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/liquidation"
	"github.com/ignacioaranguren1/lite-irs/internal/settlement"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database persists settlement and liquidation records.
type Database struct {
	db *gorm.DB
}

// Open connects to a sqlite database and migrates the journal schema.
// Use "file::memory:?cache=shared" for an in-memory journal.
func Open(dsn string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return NewDatabase(db)
}

func NewDatabase(db *gorm.DB) (*Database, error) {
	if err := db.AutoMigrate(&SettlementRecord{}, &LiquidationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Database{db: db}, nil
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordSettlement stores a settlement applied outside of a liquidation.
func (d *Database) RecordSettlement(swapID string, res *settlement.Result) error {
	rec := newSettlementRecord(swapID, res, "")
	return d.db.Create(rec).Error
}

// RecordLiquidation stores a liquidation together with its forced settlement.
func (d *Database) RecordLiquidation(swapID string, out *liquidation.Outcome) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		breaching := make([]string, 0, len(out.Breaching))
		for _, s := range out.Breaching {
			breaching = append(breaching, s.String())
		}
		rec := &LiquidationRecord{
			LiquidationID: out.ID,
			SwapID:        swapID,
			Liquidator:    out.Liquidator.Hex(),
			Breaching:     strings.Join(breaching, ","),
			Threshold:     out.Threshold.String(),
			Fee:           out.Fee.String(),
			FeePaid:       out.FeePaid.String(),
			Shortfall:     out.Shortfall.String(),
			LiquidatedAt:  out.At,
		}
		if out.Settlement != nil {
			rec.SettlementID = out.Settlement.ID
			if err := tx.Create(newSettlementRecord(swapID, out.Settlement, out.ID)).Error; err != nil {
				return err
			}
		}
		return tx.Create(rec).Error
	})
}

func (d *Database) GetSettlement(settlementID string) (*SettlementRecord, error) {
	var rec SettlementRecord
	if err := d.db.Where("settlement_id = ?", settlementID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *Database) GetSwapSettlements(swapID string) ([]SettlementRecord, error) {
	var recs []SettlementRecord
	if err := d.db.Where("swap_id = ?", swapID).Order("as_of ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (d *Database) GetSwapLiquidations(swapID string) ([]LiquidationRecord, error) {
	var recs []LiquidationRecord
	if err := d.db.Where("swap_id = ?", swapID).Order("liquidated_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func newSettlementRecord(swapID string, res *settlement.Result, liquidationID string) *SettlementRecord {
	payer := "none"
	if res.Mark.Due {
		payer = res.Mark.Payer.String()
	}
	return &SettlementRecord{
		SettlementID:   res.ID,
		SwapID:         swapID,
		WindowStart:    res.Mark.From,
		AsOf:           res.Mark.AsOf,
		VariableRate:   res.Mark.VariableRate.String(),
		FixedRate:      res.Mark.FixedRate.String(),
		Payer:          payer,
		Amount:         res.Transferred.String(),
		Final:          res.Final,
		FixedPayout:    payout(res, common.FixedPayer),
		FloatingPayout: payout(res, common.FloatingPayer),
		LiquidationID:  liquidationID,
	}
}

func payout(res *settlement.Result, side common.Side) string {
	total, err := wad.Add(res.Released[side], res.ResidualShare[side])
	if err != nil {
		return "overflow"
	}
	return total.String()
}
