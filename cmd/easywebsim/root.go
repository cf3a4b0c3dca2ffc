package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/soypat/easyweb/metrics"
)

var (
	flagConfigPath  string
	flagVerbose     bool
	flagMetricsAddr string

	log *slog.Logger
	reg *prometheus.Registry
	mx  *metrics.Set
)

var rootCmd = &cobra.Command{
	Use:   "easywebsim",
	Short: "Drive the easyWEB single-connection TCP/IP core against an in-memory NIC",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = newLogger(flagVerbose)
		reg = prometheus.NewRegistry()
		mx = metrics.New(reg)
		if flagMetricsAddr != "" {
			go serveMetrics(flagMetricsAddr)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "easyweb.yaml", "path to the engine config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	rootCmd.AddCommand(serveCmd, connectCmd)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving prometheus metrics", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", slog.String("err", err.Error()))
	}
}
