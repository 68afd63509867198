package main

import (
	"errors"

	"github.com/parisxmas/fsdash/internal/config"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/spf13/cobra"
)

type globals struct {
	configPath string
	apiURL     string
	apiKey     string
}

// client builds a client from flags, falling back to the config file and
// FSDASH_API_* environment variables.
func (g *globals) client() (*fsclient.Client, error) {
	api, err := config.LoadAPI(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.apiURL != "" {
		api.URL = g.apiURL
	}
	if g.apiKey != "" {
		api.Key = g.apiKey
	}
	if api.URL == "" {
		return nil, errors.New("no service URL: set --api-url, api.url or FSDASH_API_URL")
	}
	return fsclient.New(api.URL, api.Key, fsclient.WithTimeout(api.Timeout)), nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "fsctl",
		Short:         "Inspect and manage takedown submissions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default ./configs/config.yaml)")
	root.PersistentFlags().StringVar(&g.apiURL, "api-url", "", "submission service URL")
	root.PersistentFlags().StringVar(&g.apiKey, "api-key", "", "submission service API key")

	root.AddCommand(
		listCmd(g),
		getCmd(g),
		statusCmd(g),
		setStatusCmd(g),
		retryCmd(g),
		exportCmd(g),
		healthCmd(g),
		hashPasswordCmd(),
	)
	return root
}
