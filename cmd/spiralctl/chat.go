package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Chat with spiralmind line by line. Type 'exit' or 'quit' to leave.

Try:
  define quantum computing
  what is gravity
  orbit - a curved path around a star`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Spiralmind chat. Type 'exit' or 'quit' to leave.")

	var sessionID string
	for {
		fmt.Fprint(out, "You: ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}

		line := strings.TrimSpace(in.Text())
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		var resp chatResponse
		err := doJSON(cmd.Context(), "POST", "/api/v1/chat",
			chatRequest{SessionID: sessionID, Message: line}, &resp)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		fmt.Fprintf(out, "Bot: %s\n", resp.Response)
	}
}
