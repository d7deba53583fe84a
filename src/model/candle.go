package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceCandle is an OHLCV row captured from a reference venue (Binance)
// for dashboard charts and price sanity checks. Not part of the execution
// path.
type ReferenceCandle struct {
	ID       uint            `gorm:"primaryKey"`
	Symbol   string          `json:"symbol"   gorm:"type:varchar(50);not null;uniqueIndex:ux_reference_candles_key,priority:1"`
	Interval string          `json:"interval" gorm:"type:varchar(10);not null;uniqueIndex:ux_reference_candles_key,priority:2"`
	Datetime time.Time       `json:"datetime" gorm:"not null;uniqueIndex:ux_reference_candles_key,priority:3;index:idx_reference_candles_datetime"`
	Open     decimal.Decimal `json:"open"   gorm:"type:double precision;not null"`
	High     decimal.Decimal `json:"high"   gorm:"type:double precision;not null"`
	Low      decimal.Decimal `json:"low"    gorm:"type:double precision;not null"`
	Close    decimal.Decimal `json:"close"  gorm:"type:double precision;not null"`
	Volume   decimal.Decimal `json:"volume" gorm:"type:double precision;not null"`
}

func (ReferenceCandle) TableName() string {
	return "reference_candles"
}
