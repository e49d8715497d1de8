package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keymint/keymint/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long:  "Generate the OpenAPI 3 document describing the keymint REST API.",
		Example: `  keymint openapi                  # print to stdout
  keymint openapi -o openapi.json  # write to file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			openapi.Version = versionString()
			doc, err := openapi.Document()
			if err != nil {
				return fmt.Errorf("generate spec: %w", err)
			}

			if outputFile != "" {
				if err := os.WriteFile(outputFile, doc, 0644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", outputFile)
				return nil
			}
			fmt.Println(string(doc))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}
