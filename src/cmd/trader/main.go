package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/telegram-trading/src/config"
	"github.com/jiaming2012/telegram-trading/src/risk"
	"github.com/jiaming2012/telegram-trading/src/tradelog"
	"github.com/jiaming2012/telegram-trading/src/trader"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Unattended intraday trading runtime for kabu-station",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading runtime",
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.Run(ctx); err != nil {
			log.Fatalf("runtime stopped: %v", err)
		}
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Force a position sync from the broker and print the result",
	Run: func(cmd *cobra.Command, args []string) {
		app := mustApp()

		result, err := app.Reconciler().ForceSyncFromApi()
		if err != nil {
			log.Fatalf("sync failed: %v", err)
		}

		fmt.Printf("outcome: %s\n", result.Outcome)
		for _, recovery := range result.Recoveries {
			fmt.Printf("  %s\n", recovery)
		}

		holdings, err := app.Broker().GetHoldings()
		if err != nil {
			log.Fatalf("failed to fetch holdings: %v", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Symbol", "Qty", "Avg Price", "Current"})
		for _, h := range holdings {
			table.Append([]string{
				h.Symbol.String(),
				fmt.Sprintf("%.0f", h.Quantity),
				fmt.Sprintf("%.1f", h.AveragePrice),
				fmt.Sprintf("%.1f", h.CurrentPrice),
			})
		}
		table.Render()
	},
}

// killswitch talks to the marker file directly instead of building the full
// runtime: the command must work from a shell with nothing but the .env file,
// and the running process picks the marker up on its next evaluation cycle.
var killSwitchCmd = &cobra.Command{
	Use:   "killswitch [activate|deactivate]",
	Short: "Flip the kill switch",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, err := cmd.Flags().GetString("reason")
		if err != nil {
			log.Fatalf("error getting reason: %v", err)
		}

		mustEnv()
		signal := risk.FileKillSignal{Path: killSwitchPath()}

		switch args[0] {
		case "activate":
			if reason == "" {
				reason = "manual cli request"
			}
			if err := signal.Raise(reason); err != nil {
				log.Fatalf("failed to activate kill switch: %v", err)
			}
			fmt.Printf("kill switch marker written to %s\n", signal.Path)
		case "deactivate":
			if err := signal.Clear(); err != nil {
				log.Fatalf("failed to deactivate kill switch: %v", err)
			}
			fmt.Printf("kill switch marker removed from %s\n", signal.Path)
		default:
			log.Fatalf("unknown action %q, expected activate or deactivate", args[0])
		}
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export trade history as CSV",
	Run: func(cmd *cobra.Command, args []string) {
		from, err := cmd.Flags().GetString("from")
		if err != nil {
			log.Fatalf("error getting from: %v", err)
		}

		to, err := cmd.Flags().GetString("to")
		if err != nil {
			log.Fatalf("error getting to: %v", err)
		}

		mustEnv()

		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatalf("DATABASE_URL must be set to export trade history")
		}

		store, err := tradelog.Open(dsn)
		if err != nil {
			log.Fatalf("error opening trade log: %v", err)
		}

		if err := store.ExportCSV(from, to, os.Stdout); err != nil {
			log.Fatalf("export failed: %v", err)
		}
	},
}

func mustEnv() {
	if err := config.InitEnvironmentVariables(); err != nil {
		log.Fatalf("error loading environment variables: %v", err)
	}
}

// killSwitchPath resolves the marker file the same way the runtime does,
// without requiring the rest of the runtime's configuration.
func killSwitchPath() string {
	if path := os.Getenv("KILL_SWITCH_FILE"); path != "" {
		return path
	}
	return "kill_switch"
}

func mustApp() *trader.App {
	mustEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	app, err := trader.NewApp(cfg)
	if err != nil {
		log.Fatalf("error building runtime: %v", err)
	}

	return app
}

func main() {
	killSwitchCmd.Flags().String("reason", "", "reason recorded with the activation")
	exportCmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	exportCmd.Flags().String("to", "", "end date (YYYY-MM-DD)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(killSwitchCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
