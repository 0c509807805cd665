package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ballunia",
	Short: "Ballunia storefront backend",
	Long: `Backend for the Ballunia balloon storefront.

It proxies the Airtable catalog and Squarespace commerce APIs, resolves
bundle templates, validates bundle selections and keeps server-side carts.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, checkoutCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
