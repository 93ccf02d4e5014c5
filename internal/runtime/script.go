package runtime

import (
	"context"
	"slices"

	"github.com/risor-io/risor/object"

	"github.com/jward/detective/internal/classify"
)

// ScriptClassifier is a classifier whose Classify runs a Risor script. Each
// call gets a fresh VM with these globals besides the standard ones:
//
//	item          map: kind, value, tags, plus relpath/abspath for files or
//	              plan_stack/plan_path for packages
//	add_tags(...) attach tags (strings or lists of strings) to the item
//	has_tag(t)    whether any classifier asserted t
//	has_tag_type(t)
//
// No state survives between calls.
type ScriptClassifier struct {
	classify.Base
	rt     *Runtime
	source string
	label  string
}

// NewScriptClassifier returns a classifier running source through rt.
func NewScriptClassifier(rt *Runtime, base classify.Base, source string) *ScriptClassifier {
	return &ScriptClassifier{Base: base, rt: rt, source: source, label: base.Name()}
}

var _ classify.ContextClassifier = (*ScriptClassifier)(nil)

// Classify runs the script without a deadline. classify.Run calls
// ClassifyContext instead.
func (c *ScriptClassifier) Classify(item classify.Item) error {
	return c.ClassifyContext(context.Background(), item)
}

// ClassifyContext runs the script, stopping the VM when ctx is done.
func (c *ScriptClassifier) ClassifyContext(ctx context.Context, item classify.Item) error {
	return c.rt.eval(ctx, c.source, c.label, c.itemGlobals(item))
}

func (c *ScriptClassifier) itemGlobals(item classify.Item) map[string]any {
	return map[string]any{
		"item": itemObject(item),
		"add_tags": object.NewBuiltin("add_tags", func(ctx context.Context, args ...object.Object) object.Object {
			var tags []string
			for _, arg := range args {
				more, err := toStringList(arg)
				if err != nil {
					return object.Errorf("add_tags: %v", err)
				}
				tags = append(tags, more...)
			}
			item.AddTags(c, tags...)
			return object.Nil
		}),
		"has_tag": object.NewBuiltin("has_tag", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("has_tag", 1, len(args))
			}
			tag, err := toString(args[0])
			if err != nil {
				return object.Errorf("has_tag: %v", err)
			}
			return object.NewBool(item.HasTag(tag))
		}),
		"has_tag_type": object.NewBuiltin("has_tag_type", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("has_tag_type", 1, len(args))
			}
			tagType, err := toString(args[0])
			if err != nil {
				return object.Errorf("has_tag_type: %v", err)
			}
			return object.NewBool(item.HasTagType(tagType))
		}),
	}
}

// itemObject snapshots item for a script.
func itemObject(item classify.Item) *object.Map {
	m := map[string]object.Object{
		"kind":  object.NewString(string(item.Kind())),
		"value": object.NewString(item.Value()),
		"tags":  stringList(slices.Collect(item.Tags())),
	}
	switch it := item.(type) {
	case *classify.FileItem:
		m["relpath"] = object.NewString(it.RelPath())
		m["abspath"] = object.NewString(it.AbsPath())
	case *classify.PackageItem:
		m["plan_stack"] = stringList(it.PlanStack())
		m["plan_path"] = object.NewString(it.PlanPath())
	}
	return object.NewMap(m)
}
