package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/registry"
	"github.com/hydrant-api/hydrant/resource"
)

var describeCmd = &cobra.Command{
	Use:   "describe [resource]",
	Short: "Show the declared fields of a resource",
	Long:  "Print one row per field: kind, backing attribute, relation target, and flags. With no argument, pick the resource interactively.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load()
		if err != nil {
			return err
		}
		noColor, _ := cmd.Flags().GetBool("no-color")

		// Field declarations carry everything describe needs, so the
		// configured backend is never dialed.
		reg, err := BuildRegistry(cfg, memoryStores(), zap.NewNop())
		if err != nil {
			return err
		}

		name := ""
		if len(args) == 1 {
			name = args[0]
		} else {
			prompt := &survey.Select{
				Message: "Which resource?",
				Options: reg.Names(),
			}
			if err := survey.AskOne(prompt, &name); err != nil {
				return err
			}
		}

		info, err := reg.Describe(name)
		if err != nil {
			return fmt.Errorf("unknown resource %q (have: %s)", name, strings.Join(reg.Names(), ", "))
		}

		Header(os.Stdout, fmt.Sprintf("%s (primary key: %s)", info.Name, info.PrimaryKey), noColor)
		table := NewTable(os.Stdout, []string{"FIELD", "KIND", "ATTRIBUTE", "TARGET", "FLAGS", "HELP"}, &TableOptions{NoColor: noColor})
		for _, f := range info.Fields {
			table.AddRow(f.Name, f.Kind, f.Attribute, f.Target, fieldFlags(f), f.HelpText)
		}
		table.Render()
		return nil
	},
}

func init() {
	describeCmd.Flags().Bool("no-color", false, "Disable colored output")
}

// memoryStores returns throwaway in-memory stores, enough to assemble
// the registry when no record access is needed.
func memoryStores() *Stores {
	return &Stores{
		Authors:  resource.NewMemStore("id"),
		Posts:    resource.NewMemStore("id"),
		Comments: resource.NewMemStore("id"),
	}
}

func fieldFlags(f registry.FieldInfo) string {
	var flags []string
	if f.Readonly {
		flags = append(flags, "readonly")
	}
	if f.Unique {
		flags = append(flags, "unique")
	}
	if f.Nullable {
		flags = append(flags, "null")
	}
	if f.Blank {
		flags = append(flags, "blank")
	}
	if f.Embedded {
		flags = append(flags, "embed")
	}
	if f.Visibility != "all" {
		flags = append(flags, f.Visibility+" only")
	}
	return strings.Join(flags, ", ")
}
