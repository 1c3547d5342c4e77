package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/bundle"
	"github.com/hydrant-api/hydrant/registry"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through the dehydrate/hydrate cycle in memory",
	Long: `Run the demo blog domain against in-memory stores and print each
step: creating records from representations, embed policy in list versus
detail renderings, per-viewer field visibility, matching related data to
existing records, and updates through unique selectors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noColor, _ := cmd.Flags().GetBool("no-color")
		cfg, err := Load()
		if err != nil {
			return err
		}
		reg, err := BuildRegistry(cfg, memoryStores(), zap.NewNop())
		if err != nil {
			return err
		}
		return runDemo(cmd.Context(), reg, os.Stdout, noColor)
	},
}

func init() {
	demoCmd.Flags().Bool("no-color", false, "Disable colored output")
}

func runDemo(ctx context.Context, reg *registry.Registry, out io.Writer, noColor bool) error {
	authors, err := demoResource(reg, "authors")
	if err != nil {
		return err
	}
	posts, err := demoResource(reg, "posts")
	if err != nil {
		return err
	}

	Header(out, "Hydrant demo: objects in, representations out", noColor)
	fmt.Fprintln(out)

	// 1. Hydrate a graph from plain data.
	post := bundle.New(bundle.WithContext(ctx), bundle.WithData(map[string]any{
		"title":  "Weaving Algebra",
		"body":   "Patterns emerge once the cards are punched.",
		"rating": "4.5",
		"author": map[string]any{
			"name":  "Ada Lovelace",
			"email": "ada@example.com",
		},
		"comments": []any{
			map[string]any{"author_name": "Charles Babbage", "body": "Remarkably thorough."},
		},
	}))
	if err := posts.Create(ctx, post); err != nil {
		return err
	}
	sec := NewSection(out, "1. Create from a representation", noColor)
	sec.AddLine("One POST body carried the post, a brand-new author, and a comment.")
	sec.AddLine("The engine persisted all three and assigned identifiers:")
	sec.AddLine("post    " + posts.Locator(post.Obj))
	sec.AddLine("author  " + authors.Locator(mapAttr(post.Obj, "author")))
	sec.Render()

	// 2. Embed policy: detail embeds the author, the list points at it.
	detail, err := posts.Render(ctx, post.Obj, false)
	if err != nil {
		return err
	}
	list, err := posts.List(ctx)
	if err != nil {
		return err
	}
	sec = NewSection(out, "2. Detail embeds, list refers", noColor)
	if err := addJSON(sec, "detail:", detail); err != nil {
		return err
	}
	if err := addJSON(sec, "list:", list); err != nil {
		return err
	}
	sec.Render()

	// 3. Visibility: the email field needs an authenticated viewer.
	anon, err := authors.Render(ctx, mapAttr(post.Obj, "author"), false)
	if err != nil {
		return err
	}
	authed, err := authors.Render(WithViewer(ctx, "admin@example.com"), mapAttr(post.Obj, "author"), false)
	if err != nil {
		return err
	}
	sec = NewSection(out, "3. Fields can hide per viewer", noColor)
	if err := addJSON(sec, "anonymous:", anon); err != nil {
		return err
	}
	if err := addJSON(sec, "authenticated:", authed); err != nil {
		return err
	}
	sec.Render()

	// 4. Related data matching: identical inline author data binds to the
	// stored record instead of minting a duplicate.
	again := bundle.New(bundle.WithContext(ctx), bundle.WithData(map[string]any{
		"title": "Second Thoughts",
		"body":  "A follow-up.",
		"author": map[string]any{
			"name":  "Ada Lovelace",
			"email": "ada@example.com",
		},
	}))
	if err := posts.Create(ctx, again); err != nil {
		return err
	}
	storedAuthors, err := authors.List(ctx)
	if err != nil {
		return err
	}
	sec = NewSection(out, "4. Inline data matches existing records", noColor)
	sec.AddLine("A second post arrived with the same inline author data.")
	sec.AddLine(fmt.Sprintf("Stored authors after both creates: %d", len(storedAuthors)))
	sec.Render()

	// 5. Update through a unique selector.
	rename := bundle.New(bundle.WithContext(ctx), bundle.WithData(map[string]any{
		"name":  "Augusta Ada King",
		"email": "ada@example.com",
	}))
	if err := authors.Update(ctx, rename, map[string]any{"email": "ada@example.com"}); err != nil {
		return err
	}
	renamed, err := authors.Render(ctx, rename.Obj, false)
	if err != nil {
		return err
	}
	sec = NewSection(out, "5. Update by unique selector", noColor)
	if err := addJSON(sec, "after update:", renamed); err != nil {
		return err
	}
	sec.Render()

	kv := NewKeyValueTable(out, noColor)
	kv.AddRow("resources", fmt.Sprintf("%d", reg.Count()))
	kv.AddRow("posts", posts.Locator(post.Obj))
	kv.AddRow("next", "hydrant serve  (same domain over HTTP)")
	kv.Render()
	return nil
}

// mapAttr returns obj's named entry when obj is a map record.
func mapAttr(obj any, key string) any {
	rec, ok := obj.(map[string]any)
	if !ok {
		return nil
	}
	return rec[key]
}

func addJSON(sec *Section, label string, v any) error {
	body, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		return err
	}
	sec.AddLine(label)
	for _, line := range strings.Split(string(body), "\n") {
		sec.AddLine(line)
	}
	return nil
}
