package classifiers

import "github.com/jward/detective/internal/classify"

// PlanPackage tags packages by which plan introduced them: "plan:appliance"
// when listed directly in the appliance plan, "plan:common" when pulled in
// through an #include.
type PlanPackage struct {
	classify.Base
}

// NewPlanPackage returns the plan provenance classifier.
func NewPlanPackage() classify.Classifier {
	return &PlanPackage{Base: classify.NewBase("PlanPackageClassifier", classify.KindPackage, 0)}
}

func (c *PlanPackage) Classify(item classify.Item) error {
	p, ok := item.(*classify.PackageItem)
	if !ok {
		return nil
	}
	if len(p.PlanStack()) > 1 {
		p.AddTags(c, "plan:common")
	} else {
		p.AddTags(c, "plan:appliance")
	}
	return nil
}
