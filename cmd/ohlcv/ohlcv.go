package ohlcv

import (
	"context"
	"net/http"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/model"
	"signalbridge/src/repository"
)

const (
	Duration1m = "1m"
	Duration1h = "1h"
)

// OHLCV pulls reference candles from Binance into the local database. The
// rows feed dashboard charts and price sanity checks; they are not part of
// the execution path.
type OHLCV struct {
	Log      *logger.Entry
	Config   *Config
	exchange goex.API
	candles  *repository.CandleRepository
}

func (o *OHLCV) Start() error {
	o.Config = GetConfig()
	o.exchange = o.newBinanceInstance()
	o.candles = repository.NewCandleRepository()

	ctx := context.Background()

	if o.Config.AutoMode {
		if err := o.determineStartPoint(ctx); err != nil {
			return err
		}
	}

	return o.fetchAndSave(ctx)
}

func (*OHLCV) newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

func (o *OHLCV) fetchAndSave(ctx context.Context) error {
	klines, err := o.fetchSeries()
	if err != nil {
		return err
	}

	rows := make([]model.ReferenceCandle, 0, len(klines))
	for i := range klines {
		k := klines[i]
		rows = append(rows, model.ReferenceCandle{
			Symbol:   o.seriesSymbol(),
			Interval: o.Config.DurationStr,
			Datetime: time.Unix(k.Timestamp, 0).UTC(),
			Open:     decimal.NewFromFloat(k.Open),
			High:     decimal.NewFromFloat(k.High),
			Low:      decimal.NewFromFloat(k.Low),
			Close:    decimal.NewFromFloat(k.Close),
			Volume:   decimal.NewFromFloat(k.Vol),
		})
	}

	if err := o.candles.UpsertBatch(ctx, rows); err != nil {
		o.Log.WithError(err).Error("Failed to upsert candles")
		return err
	}

	o.Log.WithFields(logger.Fields{
		"Symbol":   o.seriesSymbol(),
		"Interval": o.Config.DurationStr,
		"Rows":     len(rows),
	}).Info("Reference candles stored")

	return nil
}

// determineStartPoint resumes from the last stored candle, overlapping one
// interval so a partially formed final candle gets overwritten.
func (o *OHLCV) determineStartPoint(ctx context.Context) error {
	o.Config.StartDt = o.Config.StartDt.Add(-o.parseDuration())
	o.Config.EndDt = time.Now()

	latest, err := o.candles.LatestDatetime(ctx, o.seriesSymbol(), o.Config.DurationStr)
	if err != nil {
		o.Log.WithError(err).Error("Failed to query latest candle datetime")
		return err
	}

	if latest != nil {
		o.Config.StartDt = latest.Add(-o.parseDuration())
		o.Log.
			WithField("StartDt", o.Config.StartDt.String()).
			WithField("EndDt", o.Config.EndDt.String()).
			Info("determineStartPoint resuming from stored data")
	} else {
		o.Log.
			WithField("StartDt", o.Config.StartDt.String()).
			WithField("EndDt", o.Config.EndDt.String()).
			Info("determineStartPoint no stored data, starting from configured StartDt")
	}

	return nil
}

func (o *OHLCV) fetchSeries() ([]goex.Kline, error) {
	targetSymbol := goex.NewCurrencyPair(goex.Currency{Symbol: o.Config.Symbol}, goex.Currency{Symbol: o.Config.Quote})

	const millis = 1000
	klines, err := o.exchange.GetKlineRecords(
		targetSymbol,
		o.parseDurationToGoex(),
		o.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", o.Config.StartDt.Unix()*millis).
			Optional("endTime", o.Config.EndDt.Unix()*millis),
	)
	if err != nil {
		return nil, err
	}

	return klines, nil
}

func (o *OHLCV) seriesSymbol() string {
	return o.Config.Symbol + "_" + o.Config.Quote
}

func (o *OHLCV) parseDuration() time.Duration {
	switch o.Config.DurationStr {
	case Duration1m:
		return time.Minute
	case Duration1h:
		return time.Hour
	default:
		panic("invalid DURATION env var")
	}
}

func (o *OHLCV) parseDurationToGoex() goex.KlinePeriod {
	switch o.Config.DurationStr {
	case Duration1m:
		return goex.KLINE_PERIOD_1MIN
	case Duration1h:
		return goex.KLINE_PERIOD_1H
	default:
		panic("invalid DURATION env var")
	}
}
