package skillet

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/assembly"
	"github.com/skilletlabs/skillet/pkg/content"
	"github.com/skilletlabs/skillet/pkg/generate"
	"github.com/skilletlabs/skillet/pkg/generate/anthropic"
	"github.com/skilletlabs/skillet/pkg/sessions"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble a prompt context from a session, a skill, and knowledge documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, store, err := assembleFromFlags(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, skipped := range result.Skipped {
			out.Warning(fmt.Sprintf("skipped missing knowledge document %s", skipped))
		}
		return printJSON(result.Context)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assemble a prompt context and send it to the generation backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, store, err := assembleFromFlags(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, skipped := range result.Skipped {
			out.Warning(fmt.Sprintf("skipped missing knowledge document %s", skipped))
		}

		gen := anthropic.New(viper.GetString("anthropic_api_key"),
			anthropic.WithModel(viper.GetString("model")))

		sessionID, _ := cmd.Flags().GetString("session")
		input, _ := cmd.Flags().GetString("input")
		stream, _ := cmd.Flags().GetBool("stream")

		text, err := runGeneration(cmd, gen, result.Context, stream)
		if err != nil {
			return err
		}

		// Record the exchange so the next assemble sees it.
		_, err = store.UpdateSession(cmd.Context(), sessionID, sessions.UpdateRequest{
			AppendTurn: &sessions.Turn{Input: input, Output: text},
		})
		return err
	},
}

func runGeneration(cmd *cobra.Command, gen generate.Generator, pc *assembly.PromptContext, stream bool) (string, error) {
	if !stream {
		text, err := gen.Generate(cmd.Context(), pc)
		if err != nil {
			return "", err
		}
		fmt.Println(text)
		return text, nil
	}

	chunks, err := gen.GenerateStream(cmd.Context(), pc)
	if err != nil {
		return "", err
	}
	var text string
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		fmt.Print(chunk.Text)
		text += chunk.Text
	}
	fmt.Println()
	return text, nil
}

// assembleFromFlags builds the assembler from the shared flag set. On
// success the session store is returned open; the caller closes it.
func assembleFromFlags(cmd *cobra.Command) (*assembly.Result, sessions.Store, error) {
	sessionID, _ := cmd.Flags().GetString("session")
	skillRef, _ := cmd.Flags().GetString("skill")
	knowledgeRefs, _ := cmd.Flags().GetStringSlice("knowledge")
	input, _ := cmd.Flags().GetString("input")
	budget, _ := cmd.Flags().GetInt("budget")
	modeName, _ := cmd.Flags().GetString("knowledge-mode")

	req := assembly.SessionRequest{
		SessionID: sessionID,
		NewInput:  input,
		Budget:    budget,
	}

	if skillRef != "" {
		p, err := content.ParsePath(skillRef)
		if err != nil {
			return nil, nil, err
		}
		req.SkillPath = &p
	}
	for _, ref := range knowledgeRefs {
		p, err := content.ParsePath(ref)
		if err != nil {
			return nil, nil, err
		}
		req.KnowledgePaths = append(req.KnowledgePaths, p)
	}

	switch modeName {
	case "all":
		req.KnowledgeMode = assembly.ModeAllOrNothing
	case "skip":
		req.KnowledgeMode = assembly.ModeSkipMissing
	case "":
		// Left unset; the assembler rejects it when knowledge was requested.
	default:
		return nil, nil, apperr.Validation("cli.assemble", modeName, "knowledge-mode must be all or skip")
	}

	store, err := sessionStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	assembler := &assembly.Assembler{
		Skills:    skillResolver(),
		Knowledge: knowledgeResolver(),
		Sessions:  store,
	}
	result, err := assembler.Assemble(cmd.Context(), req)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return result, store, nil
}

func addAssembleFlags(cmd *cobra.Command) {
	cmd.Flags().String("session", "", "session id")
	cmd.Flags().String("skill", "", "skill path, domain/[category/]name")
	cmd.Flags().StringSlice("knowledge", nil, "knowledge paths, domain/category/name (ordered)")
	cmd.Flags().String("input", "", "new user input")
	cmd.Flags().Int("budget", 0, "context size budget in bytes, 0 for unbounded")
	cmd.Flags().String("knowledge-mode", "", "missing-document handling: all (all-or-nothing) or skip")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("input")
}

func init() {
	addAssembleFlags(assembleCmd)
	addAssembleFlags(runCmd)
	runCmd.Flags().Bool("stream", false, "stream the generated text")
}
