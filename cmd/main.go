package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"signalbridge/cmd/monitor"
	"signalbridge/cmd/ohlcv"
	"signalbridge/src/database"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Signalbridge CMD"
	app.Usage = "The Signalbridge command line interface"

	app.Commands = []cli.Command{
		monitorCMD,
		ohlcvCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	monitorCMD = cli.Command{
		Name:        "monitor",
		Usage:       "run the position monitor",
		Action:      monitorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Poll the exchange account state, settle closed positions and refresh venue metadata`,
	}
	ohlcvCMD = cli.Command{
		Name:        "ohlcv",
		Usage:       "run the reference candle importer",
		Action:      ohlcvAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Pull reference OHLCV candles from Binance into the database`,
	}
)

func monitorAction(_ *cli.Context) error {

	logrus.Info("Starting monitor CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	m := &monitor.Monitor{
		Log: logrus.WithField("cmd", "monitor"),
	}
	if err := m.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func ohlcvAction(_ *cli.Context) error {

	logrus.Info("Starting OHLCV CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	o := &ohlcv.OHLCV{
		Log: logrus.WithField("cmd", "ohlcv"),
	}
	if err := o.Start(); err != nil {
		logrus.WithError(err).Error("Starting OHLCV cmd")
		return err
	}

	return nil
}
