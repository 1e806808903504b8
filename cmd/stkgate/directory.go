package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/spf13/cobra"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Manage the stocker directory",
}

var directoryImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a YAML seed into the directory",
	Long: `Load stockers, ports, carriers, tag mappings and lots from a YAML seed.
Existing records with the same keys are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		seed, err := directory.LoadSeed(args[0])
		if err != nil {
			return err
		}

		store, err := openStore(cfg.Directory)
		if err != nil {
			return fmt.Errorf("failed to open directory: %w", err)
		}
		defer store.Close()

		if err := store.Import(context.Background(), seed); err != nil {
			return fmt.Errorf("failed to import seed: %w", err)
		}

		fmt.Printf("✓ Imported %d stockers, %d ports, %d carriers, %d tags, %d lots\n",
			len(seed.Stockers), len(seed.Ports), len(seed.Carriers), len(seed.Tags), len(seed.Lots))
		return nil
	},
}

var directoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the directory as a YAML seed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg.Directory)
		if err != nil {
			return fmt.Errorf("failed to open directory: %w", err)
		}
		defer store.Close()

		seed, err := store.Export(context.Background())
		if err != nil {
			return fmt.Errorf("failed to export directory: %w", err)
		}
		return seed.WriteYAML(os.Stdout)
	},
}

func init() {
	directoryCmd.AddCommand(directoryImportCmd)
	directoryCmd.AddCommand(directoryShowCmd)
}
