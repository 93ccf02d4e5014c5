package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/detective/internal/classify"
)

// ModuleExt is the file extension of detective modules.
const ModuleExt = ".risor"

// ErrModulesNotFound is returned when no candidate modules directory exists.
var ErrModulesNotFound = errors.New("runtime: modules directory not found")

// ErrRegistryFrozen is returned by LoadModules once classification started.
var ErrRegistryFrozen = errors.New("runtime: registry is frozen")

// FindModulesDir returns the first candidate which is an existing directory.
func FindModulesDir(candidates []string) (string, error) {
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrModulesNotFound, candidates)
}

// ModuleFiles lists the modules to load, sorted by name. Files whose name
// starts with "_" are helper libraries meant for import and are not run.
func (r *Runtime) ModuleFiles() ([]string, error) {
	var names []string
	if r.fsys != nil {
		matches, err := fs.Glob(r.fsys, "*"+ModuleExt)
		if err != nil {
			return nil, fmt.Errorf("runtime: listing modules: %w", err)
		}
		names = matches
	} else {
		entries, err := os.ReadDir(r.modulesDir)
		if err != nil {
			return nil, fmt.Errorf("runtime: listing modules in %s: %w", r.modulesDir, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ModuleExt) {
				names = append(names, e.Name())
			}
		}
	}

	names = slices.DeleteFunc(names, func(n string) bool {
		return strings.HasPrefix(path.Base(n), "_")
	})
	sort.Strings(names)
	return names, nil
}

// LoadModules runs every module file with the registration globals bound to
// reg, and returns the names of the modules loaded. A module failing to load
// stops the pass.
func (r *Runtime) LoadModules(ctx context.Context, reg *classify.Registry) ([]string, error) {
	if reg.Frozen() {
		return nil, ErrRegistryFrozen
	}
	files, err := r.ModuleFiles()
	if err != nil {
		return nil, err
	}

	globals := r.registrationGlobals(reg)
	loaded := make([]string, 0, len(files))
	for _, f := range files {
		before := reg.Len()
		if err := r.RunScript(ctx, f, globals); err != nil {
			return loaded, err
		}
		r.logger.Debug("loaded module", "module", f, "classifiers", reg.Len()-before)
		loaded = append(loaded, strings.TrimSuffix(f, ModuleExt))
	}
	return loaded, nil
}

// registrationGlobals are the functions modules use to declare classifiers.
//
//	exact_path(name, path, tags[, weight])
//	subdir(name, path, recursive, tags[, weight])
//	glob(name, pattern, tags[, weight])
//	classifier({"name", "weight", "item_type", "script" | "script_file"})
func (r *Runtime) registrationGlobals(reg *classify.Registry) map[string]any {
	return map[string]any{
		"exact_path": makeExactPathFn(reg),
		"subdir":     makeSubdirFn(reg),
		"glob":       makeGlobFn(reg),
		"classifier": makeClassifierFn(r, reg),
	}
}

// optionalWeight reads the trailing weight argument, if present.
func optionalWeight(args []object.Object, at int) (int, error) {
	if len(args) <= at {
		return 0, nil
	}
	return toInt(args[at])
}

func makeExactPathFn(reg *classify.Registry) *object.Builtin {
	return object.NewBuiltin("exact_path", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 && len(args) != 4 {
			return object.Errorf("exact_path: expected 3 or 4 arguments, got %d", len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("exact_path: name %v", err)
		}
		p, err := toString(args[1])
		if err != nil {
			return object.Errorf("exact_path: path %v", err)
		}
		tags, err := toStringList(args[2])
		if err != nil {
			return object.Errorf("exact_path: tags %v", err)
		}
		weight, err := optionalWeight(args, 3)
		if err != nil {
			return object.Errorf("exact_path: weight %v", err)
		}

		reg.Register(func() classify.Classifier {
			c := classify.NewExactPath(name, p, slices.Clone(tags)...)
			c.Base = c.WithWeight(weight)
			return c
		})
		return object.Nil
	})
}

func makeSubdirFn(reg *classify.Registry) *object.Builtin {
	return object.NewBuiltin("subdir", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 4 && len(args) != 5 {
			return object.Errorf("subdir: expected 4 or 5 arguments, got %d", len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("subdir: name %v", err)
		}
		dir, err := toString(args[1])
		if err != nil {
			return object.Errorf("subdir: path %v", err)
		}
		recursive, err := toBool(args[2])
		if err != nil {
			return object.Errorf("subdir: recursive %v", err)
		}
		tags, err := toStringList(args[3])
		if err != nil {
			return object.Errorf("subdir: tags %v", err)
		}
		weight, err := optionalWeight(args, 4)
		if err != nil {
			return object.Errorf("subdir: weight %v", err)
		}

		reg.Register(func() classify.Classifier {
			c := classify.NewSubdir(name, dir, recursive, slices.Clone(tags)...)
			c.Base = c.WithWeight(weight)
			return c
		})
		return object.Nil
	})
}

func makeGlobFn(reg *classify.Registry) *object.Builtin {
	return object.NewBuiltin("glob", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 && len(args) != 4 {
			return object.Errorf("glob: expected 3 or 4 arguments, got %d", len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("glob: name %v", err)
		}
		pattern, err := toString(args[1])
		if err != nil {
			return object.Errorf("glob: pattern %v", err)
		}
		tags, err := toStringList(args[2])
		if err != nil {
			return object.Errorf("glob: tags %v", err)
		}
		weight, err := optionalWeight(args, 3)
		if err != nil {
			return object.Errorf("glob: weight %v", err)
		}
		// Validate now so a bad pattern fails the module, not a later run.
		if _, err := classify.NewGlob(name, pattern); err != nil {
			return object.Errorf("glob: %s: %v", pattern, err)
		}

		reg.Register(func() classify.Classifier {
			c, _ := classify.NewGlob(name, pattern, slices.Clone(tags)...)
			c.Base = c.WithWeight(weight)
			return c
		})
		return object.Nil
	})
}

func makeClassifierFn(r *Runtime, reg *classify.Registry) *object.Builtin {
	return object.NewBuiltin("classifier", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("classifier", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("classifier: %v", err)
		}

		name := getString(m, "name")
		if name == "" {
			return object.Errorf("classifier: name is required")
		}
		kind, err := parseKind(getString(m, "item_type"))
		if err != nil {
			return object.Errorf("classifier %s: %v", name, err)
		}

		source, label := getString(m, "script"), name
		if file := getString(m, "script_file"); file != "" {
			if source != "" {
				return object.Errorf("classifier %s: script and script_file are exclusive", name)
			}
			loaded, err := r.LoadScript(file)
			if err != nil {
				return object.Errorf("classifier %s: %v", name, err)
			}
			source, label = loaded, file
		}
		if source == "" {
			return object.Errorf("classifier %s: script or script_file is required", name)
		}

		base := classify.NewBase(name, kind, getInt(m, "weight"))
		reg.Register(func() classify.Classifier {
			c := NewScriptClassifier(r, base, source)
			c.label = label
			return c
		})
		return object.Nil
	})
}

func parseKind(s string) (classify.Kind, error) {
	switch s {
	case "", "any":
		return "", nil
	case string(classify.KindFile):
		return classify.KindFile, nil
	case string(classify.KindPackage):
		return classify.KindPackage, nil
	}
	return "", fmt.Errorf("unknown item_type %q", s)
}
