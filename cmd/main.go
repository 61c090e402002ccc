package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradingcore/cmd/executor"
	"tradingcore/cmd/pricefeed"
	"tradingcore/cmd/returns"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Tradingcore CMD"
	app.Usage = "The tradingcore command line interface"

	app.Commands = []cli.Command{
		executorCMD,
		priceFeedCMD,
		returnsCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	executorCMD = cli.Command{
		Name:        "executor",
		Usage:       "run Executor",
		Action:      executorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the order execution and maintenance loop`,
	}
	priceFeedCMD = cli.Command{
		Name:        "pricefeed",
		Usage:       "run Price Feed",
		Action:      priceFeedAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Stream mark prices and revalue open positions`,
	}
	returnsCMD = cli.Command{
		Name:        "returns",
		Usage:       "run Returns sweep",
		Action:      returnsAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Fetch daily klines and run volatility risk checks`,
	}
)

func executorAction(_ *cli.Context) error {

	logrus.Info("Starting executor CMD")
	logrus.WithField("cmd", "executor")

	exec := &executor.Executor{}
	err := exec.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func priceFeedAction(_ *cli.Context) error {

	logrus.Info("Starting pricefeed CMD")
	logrus.WithField("cmd", "pricefeed")

	feed := &pricefeed.PriceFeed{}
	err := feed.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

// returnsAction pulls daily klines and sweeps every portfolio through the
// volatility-aware risk checks.
func returnsAction(_ *cli.Context) error {

	logrus.Info("Starting returns CMD")
	logrus.WithField("cmd", "returns")

	sweep := &returns.Sweep{}
	err := sweep.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
