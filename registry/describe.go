package registry

import (
	"github.com/hydrant-api/hydrant/field"
)

// ResourceInfo is a point-in-time description of a registered resource,
// suitable for rendering as a table or serving as schema JSON.
type ResourceInfo struct {
	Name       string      `json:"name"`
	PrimaryKey string      `json:"primary_key"`
	Fields     []FieldInfo `json:"fields"`
}

// FieldInfo describes one field of a resource.
type FieldInfo struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Attribute  string `json:"attribute,omitempty"`
	Target     string `json:"target,omitempty"`
	Nullable   bool   `json:"nullable"`
	Blank      bool   `json:"blank"`
	Readonly   bool   `json:"readonly"`
	Unique     bool   `json:"unique"`
	Embedded   bool   `json:"embedded,omitempty"`
	Visibility string `json:"visibility"`
	HelpText   string `json:"help_text"`
}

// Describe returns the description of one registered resource.
func (r *Registry) Describe(name string) (*ResourceInfo, error) {
	res, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return describeResource(res), nil
}

// DescribeAll returns descriptions for every resource in registration
// order.
func (r *Registry) DescribeAll() []*ResourceInfo {
	all := r.All()
	infos := make([]*ResourceInfo, 0, len(all))
	for _, res := range all {
		infos = append(infos, describeResource(res))
	}
	return infos
}

func describeResource(res field.Resource) *ResourceInfo {
	info := &ResourceInfo{
		Name:       res.Name(),
		PrimaryKey: res.PrimaryKey(),
	}
	for _, f := range res.Fields().Fields() {
		fi := FieldInfo{
			Name:       f.Name(),
			Kind:       f.Kind().String(),
			Attribute:  f.Attribute(),
			Nullable:   f.Null(),
			Blank:      f.Blank(),
			Readonly:   f.Readonly(),
			Unique:     f.Unique(),
			Visibility: f.Visibility().String(),
			HelpText:   f.HelpText(),
		}
		if f.IsRelated() {
			fi.Target = f.TargetName()
			fi.Embedded = f.Embedded()
		}
		info.Fields = append(info.Fields, fi)
	}
	return info
}
