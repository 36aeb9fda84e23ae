// cmd/tools/bookctl/registry.go
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"book-availability/pkg/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and validate the branch registry",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered branches",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}

		branches := reg.All()
		if t, _ := cmd.Flags().GetString("type"); t != "" {
			bt := registry.BranchType(t)
			if !bt.Valid() {
				return fmt.Errorf("unknown branch type %q", t)
			}
			branches = reg.ByType(bt)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, branches)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tPHONE")
		for _, b := range branches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Type, b.Phone)
		}
		return w.Flush()
	},
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a registry file for unknown types, empty fields and duplicate IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			path = cfg.Registry.Path
		}
		if path == "" {
			return fmt.Errorf("--path is required when no registry file is configured")
		}
		reg, err := registry.LoadRegistry(path)
		if err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		s := reg.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed: %d branches (%d public, %d smart, %d education)\n",
			s.Total, s.Public, s.Smart, s.Education)
		return nil
	},
}

func init() {
	registryListCmd.Flags().String("type", "", "filter by branch type: public, smart, education")
	registryListCmd.Flags().Bool("json", false, "output branches as JSON")
	registryValidateCmd.Flags().String("path", "", "registry file to validate (default: configured registry.path)")

	registryCmd.AddCommand(registryListCmd, registryValidateCmd)
	rootCmd.AddCommand(registryCmd)
}
