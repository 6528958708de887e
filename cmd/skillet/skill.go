package skillet

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skilletlabs/skillet/pkg/content"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "List and inspect skills",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills, optionally filtered to one domain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		domain, _ := cmd.Flags().GetString("domain")

		metas, err := skillResolver().ListSkills(cmd.Context(), domain)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(metas)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tNAME\tDESCRIPTION")
		for _, m := range metas {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Path, m.Name, m.Description)
		}
		return w.Flush()
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <domain/[category/]name>",
	Short: "Show a skill's metadata, instructions, and child files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := content.ParsePath(args[0])
		if err != nil {
			return err
		}
		skill, err := skillResolver().GetSkill(cmd.Context(), p)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(skill)
		}

		out.Section(skill.Name)
		if skill.Description != "" {
			out.Info("%s", skill.Description)
		}
		out.Info("path: %s  layout: %s", skill.Path, layoutName(skill.FlatLayout))
		if len(skill.Parameters) > 0 {
			out.Info("parameters: %s", strings.Join(skill.Parameters, ", "))
		}
		if len(skill.InstructionFiles) > 0 {
			out.Info("instruction files: %s", strings.Join(skill.InstructionFiles, ", "))
		}
		if len(skill.ResourceFiles) > 0 {
			out.Info("resource files: %s", strings.Join(skill.ResourceFiles, ", "))
		}
		out.Info("\n%s", skill.Body)
		return nil
	},
}

var skillInstructionCmd = &cobra.Command{
	Use:   "instruction <domain/[category/]name> <filename>",
	Short: "Print one file from a skill's instructions/ directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printChildFile(cmd, args, "instructions")
	},
}

var skillResourceCmd = &cobra.Command{
	Use:   "resource <domain/[category/]name> <filename>",
	Short: "Print one file from a skill's resources/ directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printChildFile(cmd, args, "resources")
	},
}

func printChildFile(cmd *cobra.Command, args []string, kind string) error {
	p, err := content.ParsePath(args[0])
	if err != nil {
		return err
	}

	r := skillResolver()
	var text string
	if kind == "instructions" {
		text, err = r.LoadInstruction(cmd.Context(), p, args[1])
	} else {
		text, err = r.LoadResource(cmd.Context(), p, args[1])
	}
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func layoutName(flat bool) string {
	if flat {
		return "flat"
	}
	return "nested"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	skillListCmd.Flags().String("domain", "", "filter to one domain")
	skillListCmd.Flags().Bool("json", false, "output as JSON")
	skillShowCmd.Flags().Bool("json", false, "output as JSON")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillInstructionCmd)
	skillCmd.AddCommand(skillResourceCmd)
}
