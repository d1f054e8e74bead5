package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap-incubator/tinydoc/kv/config"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	gitHash = "None"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tinydoc",
		Short: "tinydoc entity collection tool",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Info("gitHash:", gitHash)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides the log level of the config file")

	rootCmd.AddCommand(
		newReplayCommand(),
		newStatsCommand(),
	)

	cobra.EnablePrefixMatching = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	conf := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if conf, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	log.SetLevelByString(conf.LogLevel)
	log.Infof("conf %+v", conf)
	return conf, nil
}

// handleSignal calls stop once when the process is asked to exit.
func handleSignal(stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		log.Infof("Got signal [%s] to exit.", sig)
		stop()
	}()
}
