package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaroslav/modekeeper/internal/client"
)

const requestTimeout = 15 * time.Second

var (
	nodeURLs      []string
	operatorToken string
)

// addClientFlags registers the flags shared by the API commands.
func addClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringSliceVar(&nodeURLs, "url", nil,
		"Node API URL, repeatable (default: $MODEKEEPER_URLS or http://127.0.0.1:8080)")
	cmd.PersistentFlags().StringVar(&operatorToken, "token", "",
		"Operator token for admin calls (default: $MODEKEEPER_TOKEN)")
}

// newAPIClient builds a client from flags and environment.
func newAPIClient() (*client.Client, error) {
	urls := nodeURLs
	if len(urls) == 0 {
		if env := os.Getenv("MODEKEEPER_URLS"); env != "" {
			urls = splitURLs(env)
		}
	}
	if len(urls) == 0 {
		urls = []string{"http://127.0.0.1:8080"}
	}

	tok := operatorToken
	if tok == "" {
		tok = os.Getenv("MODEKEEPER_TOKEN")
	}

	c, err := client.New(client.Config{
		BaseURLs:      urls,
		OperatorToken: tok,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

// splitURLs splits a comma separated URL list without lower-casing it.
func splitURLs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}
