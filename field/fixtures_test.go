package field

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hydrant-api/hydrant/bundle"
)

// fakeResource implements Resource over an in-memory locator map and
// records the calls the engine makes against it.
type fakeResource struct {
	name     string
	pk       string
	fields   *Set
	noUpdate bool

	objects  map[string]any
	updateFn func(b *bundle.Bundle, selectors map[string]any) error

	updates  []map[string]any
	hydrated int
}

func newFakeResource(name string) *fakeResource {
	return &fakeResource{
		name:    name,
		fields:  NewSet(),
		objects: make(map[string]any),
	}
}

func (r *fakeResource) Name() string { return r.name }

func (r *fakeResource) PrimaryKey() string {
	if r.pk == "" {
		return "id"
	}
	return r.pk
}

func (r *fakeResource) Fields() *Set { return r.fields }

func (r *fakeResource) Locator(obj any) string {
	v, _ := getAttr(obj, r.PrimaryKey())
	if !truthy(v) {
		return ""
	}
	return fmt.Sprintf("/api/%s/%v", r.name, v)
}

func (r *fakeResource) ResolveLocator(_ context.Context, locator string) (any, error) {
	if obj, ok := r.objects[locator]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("%w: locator %q", ErrNotFound, locator)
}

func (r *fakeResource) FullDehydrate(_ context.Context, b *bundle.Bundle, forList bool) error {
	for _, f := range r.fields.Fields() {
		if !f.VisibleIn(b, forList) {
			continue
		}
		v, err := f.Dehydrate(b, forList)
		if err != nil {
			return err
		}
		b.Data[f.Name()] = v
	}
	return nil
}

func (r *fakeResource) FullHydrate(_ context.Context, b *bundle.Bundle) error {
	r.hydrated++
	obj := make(map[string]any)
	for _, f := range r.fields.Fields() {
		if f.Readonly() || f.IsToMany() {
			continue
		}
		v, err := f.Hydrate(b)
		if err != nil {
			return err
		}
		if f.Attribute() == "" {
			continue
		}
		if child, ok := v.(*bundle.Bundle); ok {
			obj[f.Attribute()] = child.Obj
			continue
		}
		if v != nil || f.Null() {
			obj[f.Attribute()] = v
		}
	}
	b.Obj = obj
	return nil
}

func (r *fakeResource) CanUpdate() bool { return !r.noUpdate }

func (r *fakeResource) Update(_ context.Context, b *bundle.Bundle, selectors map[string]any) error {
	copied := make(map[string]any, len(selectors))
	for k, v := range selectors {
		copied[k] = v
	}
	r.updates = append(r.updates, copied)
	if r.updateFn != nil {
		return r.updateFn(b, selectors)
	}
	return ErrNotFound
}

// authorFixture is a two-field resource whose objects are plain maps.
func authorFixture() *fakeResource {
	r := newFakeResource("authors")
	mustAdd(r.fields, "id", New(KindString, WithAttribute("id"), WithBlank()))
	mustAdd(r.fields, "name", New(KindString, WithAttribute("name"), WithNull()))
	r.fields.Bind(r, nil)
	return r
}

func mustAdd(s *Set, name string, f *Field) {
	if err := s.Add(name, f); err != nil {
		panic(err)
	}
}

// named registers a field in a throwaway set so it carries a name, the way
// production descriptors always do.
func named(name string, f *Field) *Field {
	mustAdd(NewSet(), name, f)
	return f
}

// fakeResolver maps names to resources and counts lookups.
type fakeResolver struct {
	resources map[string]Resource
	calls     int
}

func (r *fakeResolver) Resolve(name string) (Resource, error) {
	r.calls++
	if res, ok := r.resources[name]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("no resource registered as %q", name)
}

// fakeCollection satisfies Collection and counts drains.
type fakeCollection struct {
	items []any
	calls int
}

func (c *fakeCollection) All(_ context.Context) ([]any, error) {
	c.calls++
	return c.items, nil
}

type testAuthor struct {
	ID   string
	Name string
	Bio  *string
}

type testPost struct {
	ID        string
	Title     string
	Author    *testAuthor
	CreatedAt time.Time
	Tags      []string
	ViewCount int
}

func (p *testPost) Slug() string {
	return strings.ToLower(strings.ReplaceAll(p.Title, " ", "-"))
}

func (p *testPost) AuthorName() (string, error) {
	if p.Author == nil {
		return "", fmt.Errorf("%w: post has no author", ErrNotFound)
	}
	return p.Author.Name, nil
}
