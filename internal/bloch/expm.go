package bloch

import "math"

// MaxFixedDim is the largest augmented dimension handled on fixed storage
// (three CEST pools plus MT: 13 physical components and the reference element).
const MaxFixedDim = 14

const theta13 = 5.371920351148152

var pade13 = [14]float64{
	64764752532480000, 32382376266240000, 7771770303897600,
	1187353796428800, 129060195264000, 10559470521600,
	670442572800, 33522128640, 1323241920,
	40840800, 960960, 16380, 182, 1,
}

const fixedLen = MaxFixedDim * MaxFixedDim

// padeWorkspace holds the scratch matrices of one exponential evaluation.
// Only the leading n*n elements of each array are used.
type padeWorkspace struct {
	a, a2, a4, a6 [fixedLen]float64
	u, v, t       [fixedLen]float64
	piv           [MaxFixedDim]int
}

// expm writes exp(src*dt) into dst using Pade(13) scaling and squaring.
// src and dst are row-major n x n and must not alias the workspace.
func (w *padeWorkspace) expm(dst, src []float64, n int, dt float64) error {
	nn := n * n
	a := w.a[:nn]
	for i, v := range src[:nn] {
		a[i] = v * dt
	}

	norm := norm1(a, n)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return ErrNumerical
	}
	s := 0
	if norm > theta13 {
		s = int(math.Ceil(math.Log2(norm / theta13)))
		scale := math.Ldexp(1, -s)
		for i := range a {
			a[i] *= scale
		}
	}

	a2, a4, a6 := w.a2[:nn], w.a4[:nn], w.a6[:nn]
	matmul(a2, a, a, n)
	matmul(a4, a2, a2, n)
	matmul(a6, a4, a2, n)

	b := &pade13
	u, v, t := w.u[:nn], w.v[:nn], w.t[:nn]

	// U = A (A6 (b13 A6 + b11 A4 + b9 A2) + b7 A6 + b5 A4 + b3 A2 + b1 I)
	for i := range t {
		t[i] = b[13]*a6[i] + b[11]*a4[i] + b[9]*a2[i]
	}
	matmul(u, a6, t, n)
	for i := range u {
		u[i] += b[7]*a6[i] + b[5]*a4[i] + b[3]*a2[i]
	}
	for i := 0; i < n; i++ {
		u[i*n+i] += b[1]
	}
	copy(t, u)
	matmul(u, a, t, n)

	// V = A6 (b12 A6 + b10 A4 + b8 A2) + b6 A6 + b4 A4 + b2 A2 + b0 I
	for i := range t {
		t[i] = b[12]*a6[i] + b[10]*a4[i] + b[8]*a2[i]
	}
	matmul(v, a6, t, n)
	for i := range v {
		v[i] += b[6]*a6[i] + b[4]*a4[i] + b[2]*a2[i]
	}
	for i := 0; i < n; i++ {
		v[i*n+i] += b[0]
	}

	// Solve (V - U) X = (V + U); the numerator lands in dst, the denominator in a.
	p, q := dst[:nn], a
	for i := range p {
		p[i] = v[i] + u[i]
		q[i] = v[i] - u[i]
	}
	if err := luSolve(q, p, w.piv[:n], n); err != nil {
		return err
	}

	for ; s > 0; s-- {
		copy(t, p)
		matmul(p, t, t, n)
	}
	for _, x := range p {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ErrNumerical
		}
	}
	return nil
}

// norm1 is the maximum absolute column sum.
func norm1(a []float64, n int) float64 {
	best := 0.0
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += math.Abs(a[i*n+j])
		}
		if sum > best || math.IsNaN(sum) {
			best = sum
		}
	}
	return best
}

// matmul computes dst = x*y for row-major n x n matrices. dst must not alias x or y.
func matmul(dst, x, y []float64, n int) {
	for i := 0; i < n; i++ {
		row := dst[i*n : i*n+n]
		for j := range row {
			row[j] = 0
		}
		for k := 0; k < n; k++ {
			xik := x[i*n+k]
			if xik == 0 {
				continue
			}
			yk := y[k*n : k*n+n]
			for j, v := range yk {
				row[j] += xik * v
			}
		}
	}
}

// luSolve overwrites b with the solution of a*X = b, destroying a.
// Partial pivoting; an exactly singular pivot reports ErrNumerical.
func luSolve(a, b []float64, piv []int, n int) error {
	for k := 0; k < n; k++ {
		p := k
		maxv := math.Abs(a[k*n+k])
		for i := k + 1; i < n; i++ {
			if v := math.Abs(a[i*n+k]); v > maxv {
				maxv, p = v, i
			}
		}
		if maxv == 0 || math.IsNaN(maxv) {
			return ErrNumerical
		}
		piv[k] = p
		if p != k {
			for j := 0; j < n; j++ {
				a[k*n+j], a[p*n+j] = a[p*n+j], a[k*n+j]
				b[k*n+j], b[p*n+j] = b[p*n+j], b[k*n+j]
			}
		}
		pivot := a[k*n+k]
		for i := k + 1; i < n; i++ {
			f := a[i*n+k] / pivot
			if f == 0 {
				continue
			}
			a[i*n+k] = f
			for j := k + 1; j < n; j++ {
				a[i*n+j] -= f * a[k*n+j]
			}
			for j := 0; j < n; j++ {
				b[i*n+j] -= f * b[k*n+j]
			}
		}
	}
	for k := n - 1; k >= 0; k-- {
		pivot := a[k*n+k]
		for j := 0; j < n; j++ {
			sum := b[k*n+j]
			for i := k + 1; i < n; i++ {
				sum -= a[k*n+i] * b[i*n+j]
			}
			b[k*n+j] = sum / pivot
		}
	}
	return nil
}
