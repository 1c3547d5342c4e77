package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/bundle"
	"github.com/hydrant-api/hydrant/registry"
	"github.com/hydrant-api/hydrant/resource"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample records into the configured backend",
	Long: `Create a handful of demo blog records through the resource engine.
Every record flows through hydration, so the seeded data exercises
locator references, nested related data, and to-many back-references.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load()
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		noColor, _ := cmd.Flags().GetBool("no-color")
		ctx := cmd.Context()

		if !yes {
			var ok bool
			confirm := &survey.Confirm{
				Message: fmt.Sprintf("Seed sample records into the %s backend?", cfg.Store.Backend),
				Default: true,
			}
			if err := survey.AskOne(confirm, &ok); err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		stores, err := OpenStores(ctx, cfg, zap.NewNop())
		if err != nil {
			return err
		}
		defer stores.Close()

		if err := stores.EnsureTables(ctx); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
		reg, err := BuildRegistry(cfg, stores, zap.NewNop())
		if err != nil {
			return err
		}

		created, err := seedRecords(ctx, reg)
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}

		Header(os.Stdout, fmt.Sprintf("Seeded %d records (%s backend)", len(created), cfg.Store.Backend), noColor)
		table := NewTable(os.Stdout, []string{"RESOURCE", "LOCATOR", "LABEL"}, &TableOptions{NoColor: noColor})
		for _, c := range created {
			table.AddRow(c.resource, c.locator, c.label)
		}
		table.Render()
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
	seedCmd.Flags().Bool("no-color", false, "Disable colored output")
}

type seeded struct {
	resource string
	locator  string
	label    string
}

// seedRecords creates the sample graph: one standalone author, one post
// pointing at it by locator with a nested comment, and one post carrying
// a brand-new author inline.
func seedRecords(ctx context.Context, reg *registry.Registry) ([]seeded, error) {
	authors, err := demoResource(reg, "authors")
	if err != nil {
		return nil, err
	}
	posts, err := demoResource(reg, "posts")
	if err != nil {
		return nil, err
	}
	comments, err := demoResource(reg, "comments")
	if err != nil {
		return nil, err
	}

	ada := bundle.New(bundle.WithContext(ctx), bundle.WithData(map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"bio":   "Writes about analytical engines.",
	}))
	if err := authors.Create(ctx, ada); err != nil {
		return nil, err
	}

	enginePost := bundle.New(bundle.WithContext(ctx), bundle.WithData(map[string]any{
		"title":     "Notes on the Analytical Engine",
		"body":      "The engine weaves algebraic patterns just as the loom weaves flowers and leaves.",
		"rating":    "4.5",
		"published": "2024-03-01",
		"author":    authors.Locator(ada.Obj),
		"comments": []any{
			map[string]any{"author_name": "Charles Babbage", "body": "A sound analysis of the machine."},
			map[string]any{"author_name": "Luigi Menabrea", "body": "The notes surpass the memoir itself."},
		},
	}))
	if err := posts.Create(ctx, enginePost); err != nil {
		return nil, err
	}

	// Inline author data: the engine persists the author before the post.
	monsterPost := bundle.New(bundle.WithContext(ctx), bundle.WithData(map[string]any{
		"title": "A Modern Prometheus",
		"body":  "On the responsibilities of creators toward their creations.",
		"author": map[string]any{
			"name":  "Mary Shelley",
			"email": "mary@example.com",
		},
	}))
	if err := posts.Create(ctx, monsterPost); err != nil {
		return nil, err
	}

	out := []seeded{
		{"authors", authors.Locator(ada.Obj), "Ada Lovelace"},
		{"posts", posts.Locator(enginePost.Obj), "Notes on the Analytical Engine"},
		{"posts", posts.Locator(monsterPost.Obj), "A Modern Prometheus"},
	}
	stored, err := comments.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range stored {
		label, _ := c["body"].(string)
		out = append(out, seeded{"comments", comments.Locator(c), label})
	}
	return out, nil
}

func demoResource(reg *registry.Registry, name string) (*resource.Resource, error) {
	res, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("resource %q is not registered", name)
	}
	r, ok := res.(*resource.Resource)
	if !ok {
		return nil, fmt.Errorf("resource %q does not support storage operations", name)
	}
	return r, nil
}
