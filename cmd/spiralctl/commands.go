package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one chat message",
	Long: `Send a single utterance to the chat router and print the reply.

Examples:
  spiralctl ask "define gravity"
  spiralctl ask "what is quantum computing"
  spiralctl ask "orbit - a curved path around a star"
  spiralctl ask --session 4f6c... "tell me more about gravity"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp chatResponse
		err := doJSON(cmd.Context(), "POST", "/api/v1/chat",
			chatRequest{SessionID: askSession, Message: strings.Join(args, " ")}, &resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Response)
		if askSession == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", resp.SessionID)
		}
		return nil
	},
}

var learnCmd = &cobra.Command{
	Use:   "learn <concept> <explanation...>",
	Short: "Teach an explanation for a concept",
	Long: `Teach spiralmind an explanation directly, without an external lookup.

Examples:
  spiralctl learn gravity "A fundamental force of attraction"
  spiralctl learn "solar system" A star and the bodies orbiting it`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp learnResponse
		err := doJSON(cmd.Context(), "POST", "/api/v1/concepts",
			learnRequest{Concept: args[0], Explanation: strings.Join(args[1:], " ")}, &resp)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Learned: %s\n", resp.Concept)
		if !resp.Persisted {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: the server could not persist this explanation")
		}
		return nil
	},
}

var recallAll bool

var recallCmd = &cobra.Command{
	Use:   "recall <concept>",
	Short: "Recall a concept with its spiral expansion",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp recallResponse
		if err := doJSON(cmd.Context(), "GET", conceptPath(strings.Join(args, " "), ""), nil, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, resp.Answer)
		if recallAll {
			fmt.Fprintf(out, "\nAll explanations for %s:\n", resp.Concept)
			for _, e := range resp.Explanations {
				fmt.Fprintf(out, "  - %s\n", e)
			}
		}
		return nil
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <concept>",
	Short: "List stored concepts sharing a word with the given one",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp relatedResponse
		if err := doJSON(cmd.Context(), "GET", conceptPath(strings.Join(args, " "), "/related"), nil, &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(resp.Related) == 0 {
			fmt.Fprintf(out, "No concepts related to %s\n", resp.Concept)
			return nil
		}
		for _, r := range resp.Related {
			fmt.Fprintln(out, r)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check spiralmind server health",
	Long: `Check the health status of the spiralmind HTTP server.

Examples:
  spiralctl health
  spiralctl health --server http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp healthResponse
		if err := doJSON(cmd.Context(), "GET", "/health", nil, &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Server Status: %s\n", resp.Status)
		fmt.Fprintf(out, "Server URL: %s\n", serverURL)
		fmt.Fprintf(out, "Concepts: %d\n", resp.Concepts)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "session id to continue")
	recallCmd.Flags().BoolVar(&recallAll, "all", false, "also list every stored explanation")
}
