package skillet

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/skilletlabs/skillet/pkg/sessions"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, inspect, update, and delete conversation sessions",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, _ := cmd.Flags().GetString("user")
		pairs, _ := cmd.Flags().GetStringSlice("context")
		metadata, err := parseContextPairs(pairs)
		if err != nil {
			return err
		}

		store, err := sessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		session, err := store.CreateSession(cmd.Context(), userID, metadata)
		if err != nil {
			return err
		}
		out.Success(fmt.Sprintf("created session %s", session.ID))
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session with its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		session, err := store.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(session)
	},
}

var sessionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Patch a session's context and/or append a turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringSlice("context")
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		patch, err := parseContextPairs(pairs)
		if err != nil {
			return err
		}
		req := sessions.UpdateRequest{ContextPatch: patch}
		if input != "" || output != "" {
			req.AppendTurn = &sessions.Turn{Input: input, Output: output}
		}

		store, err := sessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		session, err := store.UpdateSession(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		out.Success(fmt.Sprintf("updated session %s (%d turns)", session.ID, len(session.History)))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		out.Success(fmt.Sprintf("deleted session %s", args[0]))
		return nil
	},
}

var sessionCaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Store an immutable capture record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		raw, _ := cmd.Flags().GetString("data")

		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			// Not JSON: store the raw string as-is.
			data = raw
		}

		store, err := sessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		capture, err := store.Capture(cmd.Context(), data, kind, nil)
		if err != nil {
			return err
		}
		out.Success(fmt.Sprintf("captured %s (%s)", capture.ID, capture.Kind))
		return nil
	},
}

var sessionCapturesCmd = &cobra.Command{
	Use:   "captures",
	Short: "List captures, optionally filtered by kind",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, _ := cmd.Flags().GetString("kind")

		store, err := sessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		captures, err := store.ListCaptures(cmd.Context(), kind)
		if err != nil {
			return err
		}
		return printJSON(captures)
	},
}

func parseContextPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, errors.Errorf("context entry %q must be key=value", pair)
		}
		m[key] = value
	}
	return m, nil
}

func init() {
	sessionNewCmd.Flags().String("user", "", "owning user id")
	sessionNewCmd.Flags().StringSlice("context", nil, "initial context entries, key=value")
	sessionUpdateCmd.Flags().StringSlice("context", nil, "context patch entries, key=value")
	sessionUpdateCmd.Flags().String("input", "", "turn input text")
	sessionUpdateCmd.Flags().String("output", "", "turn output text")
	sessionCaptureCmd.Flags().String("kind", "", "capture kind, e.g. meeting")
	sessionCaptureCmd.Flags().String("data", "", "capture payload, JSON or plain text")
	_ = sessionCaptureCmd.MarkFlagRequired("kind")
	_ = sessionCaptureCmd.MarkFlagRequired("data")
	sessionCapturesCmd.Flags().String("kind", "", "filter by capture kind")

	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionUpdateCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionCmd.AddCommand(sessionCaptureCmd)
	sessionCmd.AddCommand(sessionCapturesCmd)
}
