package linear

// Option is a function that configures ElasticNet.
type Option func(*ElasticNet)

// WithAlpha sets the overall regularization strength.
func WithAlpha(alpha float64) Option {
	return func(e *ElasticNet) {
		e.alpha = alpha
	}
}

// WithL1Ratio sets the L1/L2 mixing parameter. 1 is the lasso penalty,
// 0 is the ridge penalty.
func WithL1Ratio(ratio float64) Option {
	return func(e *ElasticNet) {
		e.l1Ratio = ratio
	}
}

// WithFitIntercept sets whether to calculate the intercept.
func WithFitIntercept(fit bool) Option {
	return func(e *ElasticNet) {
		e.fitIntercept = fit
	}
}

// WithMaxIter sets the maximum number of coordinate descent epochs.
func WithMaxIter(n int) Option {
	return func(e *ElasticNet) {
		e.maxIter = n
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(e *ElasticNet) {
		e.tol = tol
	}
}

// WithSelection sets the coordinate update order, SelectionCyclic or
// SelectionRandom.
func WithSelection(selection string) Option {
	return func(e *ElasticNet) {
		e.selection = selection
	}
}

// WithRandomState seeds the coordinate order when selection is random.
func WithRandomState(seed uint64) Option {
	return func(e *ElasticNet) {
		e.randomState = seed
	}
}

// WithFeatureNames records column names so exported weights are labeled.
func WithFeatureNames(names []string) Option {
	return func(e *ElasticNet) {
		e.featureNames = append([]string(nil), names...)
	}
}
