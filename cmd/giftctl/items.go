package main

import (
	"fmt"
	"os"

	"github.com/brroMonta/gifting/internal/sheet"
	"github.com/spf13/cobra"
)

var (
	itemsOwner  string
	itemsPerson string
	itemsFile   string
	itemsOut    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Add items from an XLSX file to a person's gift map",
	Long: `Reads the first sheet of the file. The first row is a header and the
columns are name, url, notes. Rows without a name are skipped.`,
	Example: "  giftctl import --owner u_123 --person 6f1c... --file items.xlsx",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(itemsFile)
		if err != nil {
			return err
		}
		defer f.Close()

		items, skipped, err := sheet.ReadItems(f)
		if err != nil {
			return err
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx := cmd.Context()
		if _, err := s.services.GiftMaps.GetOrCreate(ctx, itemsOwner, itemsPerson); err != nil {
			return err
		}

		for i, item := range items {
			if _, err := s.services.GiftMaps.AddItem(ctx, itemsOwner, itemsPerson, item); err != nil {
				return fmt.Errorf("item %d (%q): %w", i+1, item.Name, err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items, skipped %d rows\n", len(items), skipped)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write a person's gift map to an XLSX file",
	Example: "  giftctl export --owner u_123 --person 6f1c... --out items.xlsx",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		giftMap, err := s.services.GiftMaps.Get(cmd.Context(), itemsOwner, itemsPerson)
		if err != nil {
			return err
		}

		f, err := os.Create(itemsOut)
		if err != nil {
			return err
		}
		if err := sheet.WriteItems(f, giftMap.Items); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", len(giftMap.Items), itemsOut)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{importCmd, exportCmd} {
		c.Flags().StringVar(&itemsOwner, "owner", "", "owner ID")
		c.Flags().StringVar(&itemsPerson, "person", "", "person ID")
		c.MarkFlagRequired("owner")
		c.MarkFlagRequired("person")
		rootCmd.AddCommand(c)
	}
	importCmd.Flags().StringVar(&itemsFile, "file", "", "XLSX file to read")
	importCmd.MarkFlagRequired("file")
	exportCmd.Flags().StringVar(&itemsOut, "out", "items.xlsx", "XLSX file to write")
}
