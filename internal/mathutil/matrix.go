package mathutil

// Vec is a float64 vector.
type Vec = []float64

// Mat is a 2D float64 matrix stored as row-major [][]float64.
type Mat = [][]float64

// NewMat creates a rows x cols matrix initialized to zero.
// All rows share one contiguous backing array.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

// CloneMat returns a deep copy of m.
func CloneMat(m Mat) Mat {
	if len(m) == 0 {
		return Mat{}
	}
	c := NewMat(len(m), len(m[0]))
	for i := range m {
		copy(c[i], m[i])
	}
	return c
}

// FillMat fills all elements of an existing matrix with val.
func FillMat(m Mat, val float64) {
	for i := range m {
		for j := range m[i] {
			m[i][j] = val
		}
	}
}

// AddMat adds src into dst element-wise. Shapes must match.
func AddMat(dst, src Mat) {
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] += src[i][j]
		}
	}
}

// Flatten concatenates the rows of m into a single vector.
func Flatten(m Mat) Vec {
	if len(m) == 0 {
		return nil
	}
	out := make(Vec, 0, len(m)*len(m[0]))
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// FillVec fills all elements of an existing vector with val.
func FillVec(v Vec, val float64) {
	for i := range v {
		v[i] = val
	}
}

// CloneVec returns a copy of v.
func CloneVec(v Vec) Vec {
	c := make(Vec, len(v))
	copy(c, v)
	return c
}
