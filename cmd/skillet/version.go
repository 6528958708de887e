package skillet

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skilletlabs/skillet/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			s, err := version.Get().JSON()
			if err != nil {
				return err
			}
			fmt.Println(s)
			return nil
		}
		fmt.Println(version.Get().String())
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "output as JSON")
}
