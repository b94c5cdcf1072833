package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
)

// NewSchemaCmd creates the schema command.
func NewSchemaCmd() *cobra.Command {
	var (
		year   int
		term   string
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "schema [dataset]",
		Short: "Show the schema that applies to a collection year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(args[0], year, term, asYAML)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Collection year (required)")
	cmd.Flags().StringVar(&term, "term", "", "Collection term")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the resolved schema as YAML")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func runSchema(name string, year int, term string, asYAML bool) error {
	reg, err := loadDatasets()
	if err != nil {
		return err
	}
	ds, err := reg.Lookup(name)
	if err != nil {
		return err
	}
	s, err := ds.Loader().Load(year, term)
	if err != nil {
		return err
	}

	if asYAML {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(s)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("%s schema for %d%s\n", ds.Name(), year, termSuffix(term))
	for _, table := range s.TableNames() {
		fmt.Println()
		_, _ = bold.Printf("  %s\n", table)
		t := s.Table(table)
		for _, key := range t.Keys() {
			fmt.Printf("    %-32s %s\n", key, describeColumn(t.Column(key)))
		}
	}
	fmt.Println()
	return nil
}

func termSuffix(term string) string {
	if term == "" {
		return ""
	}
	return " (" + term + ")"
}

func describeColumn(c *schema.Column) string {
	var parts []string
	switch {
	case c.Numeric != nil:
		parts = append(parts, c.Numeric.Type)
		if c.Numeric.MinValue != nil || c.Numeric.MaxValue != nil {
			parts = append(parts, fmt.Sprintf("range=[%s,%s]", bound(c.Numeric.MinValue), bound(c.Numeric.MaxValue)))
		}
	case c.Date != "":
		parts = append(parts, "date "+c.Date)
	case len(c.Category) > 0:
		parts = append(parts, "category "+strings.Join(c.Codes(), "|"))
	default:
		parts = append(parts, string(c.Type()))
	}
	if !c.CanBeBlank {
		parts = append(parts, color.YellowString("required"))
	}
	return strings.Join(parts, " ")
}

func bound(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}
