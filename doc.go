// Package detective classifies the files and packages of an appliance and
// lints them by the tags they were given.
//
// # Pipeline
//
//  1. Locate: resolve an appliance name or path to its root, then collect the
//     top level files, conf.d, plan and overlay entries as file items, and
//     every package named by the plans (following #include) as package items.
//
//  2. Classify: run every registered classifier over every item in ascending
//     (Weight, Name) order. Classifiers attach tags to items; each tag is
//     recorded under the classifier that asserted it.
//
//  3. Lint: run the linters whose enable and disable tags select an item, then
//     pass the reports through the weighted filter chain.
//
// # Usage
//
//	e := detective.New(detective.WithModulesDirs("tkldet_modules"))
//	ctx := context.Background()
//	if _, err := e.LoadModules(ctx); err != nil { ... }
//	res, err := e.Run(ctx, "core")
//	for _, item := range res.Items {
//		item.Dump(os.Stdout)
//	}
//
// # Modules
//
// Classifier modules are Risor scripts in the modules directory. Each module
// declares classifiers through the exact_path, subdir, glob and classifier
// functions. See the internal/runtime package for the globals exposed to
// modules and to script classifiers. The modules package embeds a default
// set, which cmd/tkldet falls back to when no modules directory exists.
package detective
