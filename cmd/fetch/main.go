package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"optionsproxy/internal/app"
	"optionsproxy/internal/config"
	"optionsproxy/internal/logger"
	"optionsproxy/internal/provider"
)

var rootCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one options chain through the configured provider stack and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := cmd.Flags().GetString("date")
		if err != nil {
			return err
		}
		pretty, err := cmd.Flags().GetBool("pretty")
		if err != nil {
			return err
		}

		a, err := build(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Provider.Fetch(cmd.Context(), provider.Query{Date: date})
		if err != nil {
			return err
		}
		body := res.Body
		if pretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, body, "", "  "); err == nil {
				body = buf.Bytes()
			}
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return err
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Acquire a cookie and crumb and report the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := build(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Session == nil {
			return errors.New("upstream mode is not session; set UPSTREAM_MODE=session")
		}

		s, err := a.Session.Get(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "crumb:   %s\n", s.Crumb())
		fmt.Fprintf(out, "cookie:  %d bytes\n", len(s.Cookie()))
		fmt.Fprintf(out, "expires: %s\n", s.ExpiresAt().Format(time.RFC3339))
		return nil
	},
}

func build(cmd *cobra.Command) (*app.App, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnvFiles(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	// stdout carries the payload
	cfg.Log.Output = "stderr"
	log := logger.GetLogger()
	if err := log.Configure(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, 0); err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, log)
}

func main() {
	rootCmd.PersistentFlags().String("config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml")
	rootCmd.Flags().String("date", "", "expiration as unix seconds (provider dependent)")
	rootCmd.Flags().Bool("pretty", false, "indent the JSON output")
	rootCmd.AddCommand(sessionCmd)
	rootCmd.SilenceUsage = true

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
