// Package winequality trains an ElasticNet regressor on the UCI red wine
// quality dataset and records the run with an MLflow-compatible tracker.
//
// The job is a single command:
//
//	winequality [alpha] [l1_ratio]
//
// It downloads the semicolon-separated CSV, holds out a quarter of the rows,
// fits the model by coordinate descent, prints RMSE, MAE and R² for the
// held-out rows and logs parameters, metrics and the model artifact to the
// configured tracking backend.
//
// # Packages
//
//   - dataset: CSV loading from http(s), file paths and compressed sources
//   - modelselection: seeded train/test splitting
//   - linear: ElasticNet with scikit-learn compatible coordinate descent
//   - metrics: regression metrics (MSE, RMSE, MAE, R²)
//   - tracking: runs, params, metrics, tags, artifacts and model logging
//   - tracking/filestore, tracking/sqlstore, tracking/rest: tracking backends
//   - tracking/artifact: local, S3 and proxied artifact repositories
//   - plotting: prediction-vs-actual plots logged as run artifacts
//   - core/model: weight export and persistence shared by models
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Tracking backends
//
// The tracking URI selects the backend:
//
//	./mlruns or file:///abs/path   local directory store, no registry
//	sqlite:///mlflow.db            SQL store with model registry
//	postgresql://host/db           SQL store with model registry
//	http://mlflow:5000             MLflow REST API with model registry
//
// # Library usage
//
//	frame, err := dataset.NewLoader(logger).Load(ctx, url)
//	if err != nil {
//	    return err
//	}
//	X, y, err := frame.XY("quality")
//	if err != nil {
//	    return err
//	}
//	model := linear.NewElasticNet(linear.WithAlpha(0.5), linear.WithL1Ratio(0.5))
//	if err := model.FitContext(ctx, X.Data, y); err != nil {
//	    return err
//	}
package winequality
