// Package censusml replays two census microdata walkthroughs in Go:
// dataframe exploration and model explanation with SHAP.
//
// The library packages can be used on their own:
//
//   - dataframe: a gota-backed table with CSV loading, projection, casting,
//     sorting, filtering, one-hot encoding, summary statistics and
//     train/validation splits
//   - sklearn/tree, sklearn/linear_model, sklearn/cluster, preprocessing,
//     metrics: estimators with a scikit-learn style API on gonum matrices
//   - explain/shap: exact TreeSHAP and Kernel SHAP, with background
//     sampling and k-means summaries
//   - explain/plot: force plots as go-echarts HTML and mean |SHAP| bar
//     charts through gonum/plot
//
// The censusml command runs the walkthroughs end to end:
//
//	censusml explore --data testdata/census_sample.csv
//	censusml explain --max-depth 4 --background-method kmeans -o out
//
// Settings come from defaults, censusml.yaml, CENSUSML_* environment
// variables and flags, in increasing precedence.
//
// # Quick Start
//
//	df, err := dataframe.ReadCSV("testdata/census_sample.csv")
//	if err != nil {
//		log.Fatal(err)
//	}
//	X, err := df.Matrix("AGE", "HRSWORK")
//	...
//	dt := tree.NewDecisionTreeClassifier(tree.WithMaxDepth(4))
//	if err := dt.Fit(X, y); err != nil {
//		log.Fatal(err)
//	}
//	ex, err := shap.NewTreeExplainer(dt, shap.WithFeatureNames("AGE", "HRSWORK"))
//	...
//	e, err := ex.Explain(ctx, X)
//
// Errors carry structured types from pkg/errors and are logged through
// pkg/log, which writes zerolog JSON lines by default.
package censusml
