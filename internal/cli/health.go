package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"signconnect/tutor/internal/config"
	"signconnect/tutor/internal/health"
)

func newHealthCmd() *cobra.Command {
	var asJSON bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check provider credentials and reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			st := health.CheckAll(ctx, config.Load())
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(st)
			} else {
				fmt.Print(st.String())
			}
			if !st.OK {
				return errors.New("health check failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall check timeout")
	return cmd
}
