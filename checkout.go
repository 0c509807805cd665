package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var checkoutSession string

var checkoutCmd = &cobra.Command{
	Use:   "checkout-url",
	Short: "Print the hosted checkout link for a stored cart",
	Long: `Load the cart stored for a session and print the Squarespace
add-to-cart link it would check out with. Lines that carry no variant id
are listed after the link. Carts kept in memory by a running server are
not reachable, so CART_STORAGE must name a shared backend.`,
	RunE: runCheckout,
}

func init() {
	checkoutCmd.Flags().StringVar(&checkoutSession, "session", "", "cart session id (the cartSessionId cookie)")
}

func runCheckout(cmd *cobra.Command, _ []string) error {
	if checkoutSession == "" {
		return errors.New("--session is required")
	}
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cfg.CartStorage == "memory" {
		return errors.New("checkout-url reads carts from shared storage, set CART_STORAGE to redis, postgres or sqlite")
	}

	co, err := a.carts.Checkout(cmd.Context(), checkoutSession)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, co.Url)
	for _, id := range co.Skipped {
		fmt.Fprintf(out, "skipped %s: no variant id\n", id)
	}
	return nil
}
