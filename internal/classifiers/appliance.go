package classifiers

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/jward/detective/internal/classify"
)

// Ignore marks files living under directories whose contents should never be
// linted: "ignore:__pycache__" and "ignore:.git".
type Ignore struct {
	classify.Base
}

// NewIgnore returns the ignored-directory classifier. It runs before the
// other built-ins.
func NewIgnore() classify.Classifier {
	return &Ignore{Base: classify.NewBase("IgnoreClassifier", classify.KindFile, 5)}
}

func (c *Ignore) Classify(item classify.Item) error {
	f, ok := item.(*classify.FileItem)
	if !ok {
		return nil
	}
	for _, dir := range []string{"__pycache__", ".git"} {
		if hasAncestorDir(f.AbsPath(), dir) {
			f.AddTags(c, "ignore:"+dir)
		}
	}
	return nil
}

// hasAncestorDir reports whether any segment of p equals dir.
func hasAncestorDir(p, dir string) bool {
	return slices.Contains(strings.Split(filepath.ToSlash(p), "/"), dir)
}

// applianceLayout lists the path classifiers describing a TurnKey appliance.
var applianceLayout = []func() classify.Classifier{
	func() classify.Classifier {
		return classify.NewExactPath("ApplianceMakefileClassifier", "Makefile", "appliance-makefile")
	},
	func() classify.Classifier {
		return classify.NewSubdir("ApplianceConfDClassifier", "conf.d", false, "appliance-conf.d")
	},
	func() classify.Classifier {
		return classify.NewSubdir("ApplianceOverlayClassifier", "overlay", true, "appliance-overlay")
	},
	func() classify.Classifier {
		return classify.NewSubdir("AppliancePlanClassifier", "plan", false, "appliance-plan")
	},
	func() classify.Classifier {
		return classify.NewSubdir("ApplianceInithookFirstbootClassifier",
			"overlay/usr/lib/inithooks/firstboot.d", false, "appliance-inithook-firstboot")
	},
	func() classify.Classifier {
		return classify.NewSubdir("ApplianceInithookBinClassifier",
			"overlay/usr/lib/inithooks/bin", false, "appliance-inithook-bin")
	},
	func() classify.Classifier {
		return classify.NewExactPath("ApplianceReadmeClassifier", "README.rst", "appliance-readme")
	},
	func() classify.Classifier {
		return classify.NewExactPath("ApplianceChangelogClassifier", "changelog", "appliance-readme")
	},
	func() classify.Classifier {
		return classify.NewExactPath("ApplianceRemovelistClassifier", "removelist", "appliance-removelist")
	},
}

// RegisterDefaults registers every built-in classifier.
func RegisterDefaults(reg *classify.Registry) {
	reg.Register(NewIgnore)
	reg.Register(NewFiletype)
	reg.Register(NewShebang)
	reg.Register(NewPlanPackage)
	for _, f := range applianceLayout {
		reg.Register(f)
	}
}
