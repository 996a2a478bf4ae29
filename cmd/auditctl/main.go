// Command auditctl is the operator CLI: it scores audit documents offline and
// checks certification status against a running server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	checklist "fortaudit/internal/checklist/models"
	"fortaudit/internal/scoring"
	session "fortaudit/internal/session/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Fortification audit scoring and verification tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScoreCmd(), newVerifyCmd())
	return root
}

func newScoreCmd() *cobra.Command {
	var templatePath, responsesPath string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a response set against a checklist template, offline",
		Long: `Score reads a checklist template and a response document from disk and
prints the scored result as JSON. The computation is identical to the
server's: the same inputs always produce the same result, including the
integrity stamp.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var template checklist.ChecklistTemplate
			if err := readJSONFile(templatePath, &template); err != nil {
				return fmt.Errorf("reading template: %w", err)
			}

			var responses map[string]*session.AuditResponse
			if err := readJSONFile(responsesPath, &responses); err != nil {
				return fmt.Errorf("reading responses: %w", err)
			}

			result, err := scoring.Score(&template, responses)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "path to the checklist template JSON")
	cmd.Flags().StringVarP(&responsesPath, "responses", "r", "", "path to the responses JSON (item id -> response)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("responses")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "verify <audit-id>",
		Short: "Check the public certification status of an audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Get(server + "/verify/" + args[0])
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s: %s", resp.Status, body)
			}

			var pretty json.RawMessage = body
			return writeJSON(cmd.OutOrStdout(), pretty)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8080", "base URL of the audit server")
	return cmd
}

func readJSONFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
