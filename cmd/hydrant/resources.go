package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// database/sql drivers selectable through store.driver
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hydrant-api/hydrant/bundle"
	"github.com/hydrant-api/hydrant/field"
	"github.com/hydrant-api/hydrant/registry"
	"github.com/hydrant-api/hydrant/resource"
	"github.com/hydrant-api/hydrant/resource/redistore"
	"github.com/hydrant-api/hydrant/resource/sqlstore"
)

// Stores holds one store per demo resource, all opened against the same
// configured backend.
type Stores struct {
	Authors  resource.Store
	Posts    resource.Store
	Comments resource.Store

	tables  []*sqlstore.Store
	closers []func() error
}

// Close releases the underlying connections.
func (s *Stores) Close() error {
	var firstErr error
	for _, fn := range s.closers {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EnsureTables creates the backing tables on the sql backend. The other
// backends need no schema and return nil.
func (s *Stores) EnsureTables(ctx context.Context) error {
	for _, t := range s.tables {
		if err := t.EnsureTable(ctx); err != nil {
			return err
		}
	}
	return nil
}

var (
	authorColumns  = []string{"name", "email", "bio", "joined_at"}
	postColumns    = []string{"title", "body", "rating", "published_on", "author"}
	commentColumns = []string{"post_id", "author_name", "body", "written_at"}
)

// OpenStores opens the configured storage backend and returns one store
// per demo resource.
func OpenStores(ctx context.Context, cfg *Config, logger *zap.Logger) (*Stores, error) {
	switch cfg.Store.Backend {
	case "memory":
		return &Stores{
			Authors:  resource.NewMemStore("id"),
			Posts:    resource.NewMemStore("id"),
			Comments: resource.NewMemStore("id"),
		}, nil

	case "sql":
		db, err := sql.Open(cfg.Store.Driver, GetDatabaseURL(cfg))
		if err != nil {
			return nil, fmt.Errorf("opening %s database: %w", cfg.Store.Driver, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("pinging %s database: %w", cfg.Store.Driver, err)
		}
		stores := &Stores{closers: []func() error{db.Close}}
		for _, tbl := range []struct {
			name    string
			columns []string
			dst     *resource.Store
		}{
			{"authors", authorColumns, &stores.Authors},
			{"posts", postColumns, &stores.Posts},
			{"comments", commentColumns, &stores.Comments},
		} {
			st, err := sqlstore.New(&sqlstore.Config{
				DB:      db,
				Table:   tbl.name,
				Columns: tbl.columns,
				Logger:  logger,
			})
			if err != nil {
				db.Close()
				return nil, err
			}
			*tbl.dst = st
			stores.tables = append(stores.tables, st)
		}
		return stores, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,

			// Connection pooling
			PoolSize:     100,
			MinIdleConns: 10,
			MaxIdleConns: 20,

			// Timeouts
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Redis.Addr, err)
		}
		prefix := cfg.Redis.KeyPrefix
		return &Stores{
			Authors:  redistore.NewFromClient(client, prefix+"authors:", "id"),
			Posts:    redistore.NewFromClient(client, prefix+"posts:", "id"),
			Comments: redistore.NewFromClient(client, prefix+"comments:", "id"),
			closers:  []func() error{client.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// BuildRegistry assembles the demo blog domain: authors write posts,
// posts carry comments. Every relation tour the engine offers shows up
// somewhere: posts embed their author in detail renderings but point at
// it from lists, and comments hang off posts through a back-reference.
func BuildRegistry(cfg *Config, stores *Stores, logger *zap.Logger) (*registry.Registry, error) {
	reg := registry.New(registry.WithLogger(logger))

	authors, err := newAuthors(cfg, stores.Authors, logger)
	if err != nil {
		return nil, err
	}
	posts, err := newPosts(cfg, stores.Posts, stores.Comments, logger)
	if err != nil {
		return nil, err
	}
	comments, err := newComments(cfg, stores.Comments, logger)
	if err != nil {
		return nil, err
	}

	for _, res := range []*resource.Resource{authors, posts, comments} {
		if err := reg.Register(res); err != nil {
			return nil, err
		}
	}
	if err := reg.ValidateAll(); err != nil {
		return nil, err
	}
	return reg, nil
}

type fieldDef struct {
	name  string
	field *field.Field
}

func newFieldSet(defs ...fieldDef) (*field.Set, error) {
	set := field.NewSet()
	for _, d := range defs {
		if err := set.Add(d.name, d.field); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func newAuthors(cfg *Config, store resource.Store, logger *zap.Logger) (*resource.Resource, error) {
	fields, err := newFieldSet(
		fieldDef{"id", field.New(field.KindString,
			field.WithAttribute("id"),
			field.WithReadonly(),
			field.WithHelpText("Server-assigned identifier."))},
		fieldDef{"name", field.New(field.KindString,
			field.WithAttribute("name"))},
		fieldDef{"email", field.New(field.KindString,
			field.WithAttribute("email"),
			field.WithUnique(),
			field.WithVisibilityFunc(authenticated),
			field.WithHelpText("Rendered only for authenticated viewers."))},
		fieldDef{"bio", field.New(field.KindString,
			field.WithAttribute("bio"),
			field.WithNull())},
		fieldDef{"joined", field.New(field.KindDateTime,
			field.WithAttribute("joined_at"),
			field.WithDefaultFunc(func() any { return time.Now().UTC() }))},
	)
	if err != nil {
		return nil, err
	}
	validator := resource.NewFieldValidator(fields).
		AddCheck("name", resource.MinLen(1), resource.MaxLen(120)).
		AddCheck("email", resource.Email())

	return resource.New("authors",
		resource.WithFields(fields),
		resource.WithStore(store),
		resource.WithValidator(validator),
		resource.WithLocatorPrefix(cfg.LocatorPrefix),
		resource.WithLogger(logger),
	)
}

func newPosts(cfg *Config, store, comments resource.Store, logger *zap.Logger) (*resource.Resource, error) {
	fields, err := newFieldSet(
		fieldDef{"id", field.New(field.KindString,
			field.WithAttribute("id"),
			field.WithReadonly())},
		fieldDef{"title", field.New(field.KindString,
			field.WithAttribute("title"))},
		fieldDef{"slug", field.New(field.KindString,
			field.WithAttributeFunc(postSlug),
			field.WithReadonly(),
			field.WithHelpText("Derived from the title."))},
		fieldDef{"body", field.New(field.KindString,
			field.WithAttribute("body"),
			field.WithVisibility(field.VisibleDetail))},
		fieldDef{"rating", field.New(field.KindDecimal,
			field.WithAttribute("rating"),
			field.WithNull())},
		fieldDef{"published", field.New(field.KindDate,
			field.WithAttribute("published_on"),
			field.WithNull())},
		fieldDef{"author", field.ToOne("authors", "author",
			field.WithEmbed(),
			field.WithEmbedInList(false))},
		fieldDef{"comments", field.ToMany("comments", "comments",
			field.WithAttributeFunc(commentsByPost(comments)),
			field.WithRelatedName("post_id"),
			field.WithEmbed(),
			field.WithEmbedInList(false),
			field.WithNull(),
			field.WithBlank())},
	)
	if err != nil {
		return nil, err
	}
	validator := resource.NewFieldValidator(fields).
		AddCheck("title", resource.MinLen(1), resource.MaxLen(200))

	return resource.New("posts",
		resource.WithFields(fields),
		resource.WithStore(store),
		resource.WithValidator(validator),
		resource.WithLocatorPrefix(cfg.LocatorPrefix),
		resource.WithLogger(logger),
	)
}

func newComments(cfg *Config, store resource.Store, logger *zap.Logger) (*resource.Resource, error) {
	fields, err := newFieldSet(
		fieldDef{"id", field.New(field.KindString,
			field.WithAttribute("id"),
			field.WithReadonly())},
		fieldDef{"post_id", field.New(field.KindString,
			field.WithAttribute("post_id"),
			field.WithBlank(),
			field.WithHelpText("Filled from the owning post on save."))},
		fieldDef{"author_name", field.New(field.KindString,
			field.WithAttribute("author_name"))},
		fieldDef{"body", field.New(field.KindString,
			field.WithAttribute("body"))},
		fieldDef{"written", field.New(field.KindDateTime,
			field.WithAttribute("written_at"),
			field.WithDefaultFunc(func() any { return time.Now().UTC() }))},
	)
	if err != nil {
		return nil, err
	}
	validator := resource.NewFieldValidator(fields).
		AddCheck("body", resource.MinLen(1))

	return resource.New("comments",
		resource.WithFields(fields),
		resource.WithStore(store),
		resource.WithValidator(validator),
		resource.WithLocatorPrefix(cfg.LocatorPrefix),
		resource.WithLogger(logger),
	)
}

// authenticated gates a field on the request having a logged-in viewer.
func authenticated(b *bundle.Bundle) bool {
	return ViewerFrom(b.Context()) != ""
}

// commentsByPost loads the comments pointing back at the rendered post.
func commentsByPost(comments resource.Store) func(*bundle.Bundle) (any, error) {
	return func(b *bundle.Bundle) (any, error) {
		pk, err := field.Attr(b.Obj, "id")
		if err != nil {
			return nil, err
		}
		return comments.Select(b.Context(), map[string]any{"post_id": pk})
	}
}

// postSlug derives a URL slug from the post title.
func postSlug(b *bundle.Bundle) (any, error) {
	title, err := field.Attr(b.Obj, "title")
	if err != nil {
		return nil, err
	}
	s, _ := title.(string)
	return slugify(s), nil
}

// slugify lowercases s and collapses every non-alphanumeric run into a
// single hyphen.
func slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
		default:
			hyphen = true
		}
	}
	return b.String()
}
