package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/chatclient"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the assistant.

With a token the grounded endpoint is used and answers draw on your
uploaded documents; a refused token falls back to the anonymous endpoint.
Type /quit to leave.

Examples:
  ragctl chat
  ragctl chat --server http://localhost:8080 --token "$TOKEN"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		contact, _ := cmd.Flags().GetString("contact")

		opts := []chatclient.Option{}
		if contact != "" {
			opts = append(opts, chatclient.WithContact(contact))
		}
		session := chatclient.New(server, opts...).NewSession(token)
		out := cmd.OutOrStdout()

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}

			printed := 0
			reply, err := session.Send(cmd.Context(), line, func(full string) {
				fmt.Fprint(out, full[printed:])
				printed = len(full)
			})
			switch {
			case errors.Is(err, chatclient.ErrRateLimited):
				fmt.Fprintln(out, "[rate limited, wait a moment and try again]")
				continue
			case reply != nil && reply.Fallback:
				if printed > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "[error: %v]\n%s\n", err, reply.Text)
				continue
			case err != nil:
				return err
			}
			fmt.Fprintln(out)
		}
	},
}

func init() {
	chatCmd.Flags().String("server", envOr("RAGCTL_SERVER", "http://localhost:8080"), "server base URL")
	chatCmd.Flags().String("token", envOr("RAGCTL_TOKEN", ""), "bearer token for grounded answers")
	chatCmd.Flags().String("contact", envOr("RAGCTL_CONTACT", ""), "contact channel named in fallback messages")
}
