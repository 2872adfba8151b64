package cmd

import (
	"github.com/spf13/cobra"

	"consult-worker/config"
	server2 "consult-worker/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and transcription workers",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
