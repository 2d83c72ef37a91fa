package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kernel is a covariance function for the Gaussian process surrogate.
type Kernel interface {
	// Eval computes the kernel value between two points x1 and x2
	Eval(x1, x2 []float64) float64
}

// RBFKernel is the squared exponential kernel.
type RBFKernel struct {
	LengthScale float64
	SignalVar   float64
}

// Eval implements Kernel.
func (k RBFKernel) Eval(x1, x2 []float64) float64 {
	r2 := squaredDistance(x1, x2) / (2 * k.LengthScale * k.LengthScale)
	return k.SignalVar * math.Exp(-r2)
}

// Matern52Kernel is the Matérn kernel with smoothness 5/2.
type Matern52Kernel struct {
	LengthScale float64
	SignalVar   float64
}

// Eval implements Kernel.
func (k Matern52Kernel) Eval(x1, x2 []float64) float64 {
	r := math.Sqrt(squaredDistance(x1, x2)) / k.LengthScale
	return k.SignalVar * (1 + math.Sqrt(5)*r + 5.0/3.0*r*r) * math.Exp(-math.Sqrt(5)*r)
}

func squaredDistance(x1, x2 []float64) float64 {
	var sum float64
	for i := range x1 {
		d := x1[i] - x2[i]
		sum += d * d
	}
	return sum
}

// gaussianProcess is a zero-mean GP regression model with a fixed kernel.
type gaussianProcess struct {
	kernel   Kernel
	noiseVar float64

	x     [][]float64
	alpha *mat.VecDense
	chol  mat.Cholesky
}

// fit conditions the model on the points x with values y. The diagonal is
// raised by a growing jitter until the kernel matrix factorizes.
func (gp *gaussianProcess) fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return NewErrorf("cannot fit %d points to %d values", n, len(y)).WithOperation("fit").WithComponent("gaussian_process")
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			k.SetSym(i, j, gp.kernel.Eval(x[i], x[j]))
		}
	}

	jitter := 1e-10
	for attempt := 0; ; attempt++ {
		noisy := mat.NewSymDense(n, nil)
		noisy.CopySym(k)
		for i := 0; i < n; i++ {
			noisy.SetSym(i, i, k.At(i, i)+gp.noiseVar+jitter)
		}
		if gp.chol.Factorize(noisy) {
			break
		}
		if attempt == 6 {
			return NewErrorf("kernel matrix of %d points is not positive definite", n).
				WithOperation("fit").WithComponent("gaussian_process")
		}
		jitter *= 100
	}

	gp.alpha = mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(gp.alpha, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return WrapError(err, "solving for weights").WithOperation("fit").WithComponent("gaussian_process")
	}
	gp.x = x
	return nil
}

// predict returns the posterior mean and standard deviation at u.
func (gp *gaussianProcess) predict(u []float64) (mean, sd float64) {
	n := len(gp.x)
	kStar := mat.NewVecDense(n, nil)
	for i, xi := range gp.x {
		kStar.SetVec(i, gp.kernel.Eval(u, xi))
	}
	mean = mat.Dot(kStar, gp.alpha)

	w := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(w, kStar); err != nil {
		return mean, 0
	}
	variance := gp.kernel.Eval(u, u) - mat.Dot(kStar, w)
	return mean, math.Sqrt(math.Max(variance, 0))
}

// expectedImprovement is the expected amount by which a point with posterior
// N(mu, sigma²) improves on best by more than xi, for minimization.
func expectedImprovement(best, xi, mu, sigma float64) float64 {
	improvement := best - mu - xi
	if sigma <= 1e-12 {
		return math.Max(improvement, 0)
	}
	z := improvement / sigma
	return improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
}
