package skillet

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skilletlabs/skillet/pkg/content"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Browse and search knowledge documents",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var knowledgeTaxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Show the domain/category/document tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		taxonomy, err := knowledgeResolver().GetTaxonomy(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(taxonomy)
		}

		domains := make([]string, 0, len(taxonomy))
		for d := range taxonomy {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		for _, d := range domains {
			out.Section(d)
			categories := make([]string, 0, len(taxonomy[d]))
			for c := range taxonomy[d] {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				out.Info("  %s: %s", c, strings.Join(taxonomy[d][c], ", "))
			}
		}
		return nil
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge documents, optionally filtered",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		category, _ := cmd.Flags().GetString("category")

		metas, err := knowledgeResolver().ListDocuments(cmd.Context(), domain, category)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(metas)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tTITLE\tTYPE\tOWNER\tVERSION")
		for _, m := range metas {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.Path, m.Title, m.ArtefactType, m.Owner, m.Version)
		}
		return w.Flush()
	},
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show <domain/category/name>",
	Short: "Show one knowledge document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := content.ParsePath(args[0])
		if err != nil {
			return err
		}
		doc, err := knowledgeResolver().GetDocument(cmd.Context(), p)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(doc)
		}

		out.Section(doc.Title)
		if doc.ArtefactType != "" {
			out.Info("type: %s  owner: %s  version: %s  approved: %s",
				doc.ArtefactType, doc.Owner, doc.Version, doc.ApprovalDate)
		}
		if len(doc.RelatedSkills) > 0 {
			out.Info("related skills: %s", strings.Join(doc.RelatedSkills, ", "))
		}
		for kind, refs := range doc.RelatedArtefacts {
			out.Info("related %s: %s", kind, strings.Join(refs, ", "))
		}
		out.Info("\n%s", doc.Body)
		return nil
	},
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Substring search over titles, tags, and bodies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := knowledgeResolver().Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(results)
		}

		for _, r := range results {
			out.Section(fmt.Sprintf("%s (%s)", r.Title, r.Path))
			out.Info("%s", r.Excerpt)
		}
		if len(results) == 0 {
			out.Info("no matches")
		}
		return nil
	},
}

func init() {
	knowledgeTaxonomyCmd.Flags().Bool("json", false, "output as JSON")
	knowledgeListCmd.Flags().String("domain", "", "filter to one domain")
	knowledgeListCmd.Flags().String("category", "", "filter to one category")
	knowledgeListCmd.Flags().Bool("json", false, "output as JSON")
	knowledgeShowCmd.Flags().Bool("json", false, "output as JSON")
	knowledgeSearchCmd.Flags().Bool("json", false, "output as JSON")

	knowledgeCmd.AddCommand(knowledgeTaxonomyCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeShowCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
}
