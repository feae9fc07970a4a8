package types

// Mat4 is a row-major 4x4 matrix of float32, laid out as
// m[row*4+col]. Row 3 (m[12..15]) holds the homogeneous row and is {0,0,0,1}
// for affine transforms; column 3 of rows 0-2 (m[3], m[7], m[11]) holds the
// translation component. This matches the indexing used elsewhere in the
// package (e.g. Mat4.Mat3 in vector.go reads m[0],m[1],m[2],m[4],m[5],m[6],
// m[8],m[9],m[10]).
type Mat4 [16]float32

// Mat3 is a row-major 3x3 matrix of float32, laid out as m[row*3+col].
type Mat3 [9]float32

// Ident4 returns a 4x4 identity matrix.
func Ident4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate4 returns a translation matrix moving by v.
func Translate4(v Vec3) Mat4 {
	m := Ident4()
	m[3], m[7], m[11] = v[0], v[1], v[2]
	return m
}

// Scale4 returns a scale matrix with per-axis factors v.
func Scale4(v Vec3) Mat4 {
	return Mat4{
		v[0], 0, 0, 0,
		0, v[1], 0, 0,
		0, 0, v[2], 0,
		0, 0, 0, 1,
	}
}

// IsIdentity reports whether m is the identity matrix.
func (m Mat4) IsIdentity() bool {
	return m == Ident4()
}

// Mul returns m * other.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * o[k*4+col]
			}
			out[row*4+col] = sum
		}
	}
	return out
}

// MulPoint transforms a point (implicit w=1) by m.
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11],
	}
}

// MulDir transforms a direction (implicit w=0, no translation) by m.
func (m Mat4) MulDir(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2],
	}
}

// Transpose returns the transpose of m.
func (m Mat4) Transpose() Mat4 {
	var out Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[col*4+row] = m[row*4+col]
		}
	}
	return out
}

// Inv returns the inverse of m using cofactor expansion. If m is singular
// the result is undefined (matches the teacher's convention of never
// validating matrix invertibility explicitly).
func (m Mat4) Inv() Mat4 {
	// Shorthand for the 2x2 sub-determinants used by the cofactor expansion.
	s0 := m[0]*m[5] - m[1]*m[4]
	s1 := m[0]*m[6] - m[2]*m[4]
	s2 := m[0]*m[7] - m[3]*m[4]
	s3 := m[1]*m[6] - m[2]*m[5]
	s4 := m[1]*m[7] - m[3]*m[5]
	s5 := m[2]*m[7] - m[3]*m[6]

	c5 := m[10]*m[15] - m[11]*m[14]
	c4 := m[9]*m[15] - m[11]*m[13]
	c3 := m[9]*m[14] - m[10]*m[13]
	c2 := m[8]*m[15] - m[11]*m[12]
	c1 := m[8]*m[14] - m[10]*m[12]
	c0 := m[8]*m[13] - m[9]*m[12]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	idet := 1.0 / det

	return Mat4{
		(m[5]*c5 - m[6]*c4 + m[7]*c3) * idet,
		(-m[1]*c5 + m[2]*c4 - m[3]*c3) * idet,
		(m[13]*s5 - m[14]*s4 + m[15]*s3) * idet,
		(-m[9]*s5 + m[10]*s4 - m[11]*s3) * idet,

		(-m[4]*c5 + m[6]*c2 - m[7]*c1) * idet,
		(m[0]*c5 - m[2]*c2 + m[3]*c1) * idet,
		(-m[12]*s5 + m[14]*s2 - m[15]*s1) * idet,
		(m[8]*s5 - m[10]*s2 + m[11]*s1) * idet,

		(m[4]*c4 - m[5]*c2 + m[7]*c0) * idet,
		(-m[0]*c4 + m[1]*c2 - m[3]*c0) * idet,
		(m[12]*s4 - m[13]*s2 + m[15]*s0) * idet,
		(-m[8]*s4 + m[9]*s2 - m[11]*s0) * idet,

		(-m[4]*c3 + m[5]*c1 - m[6]*c0) * idet,
		(m[0]*c3 - m[1]*c1 + m[2]*c0) * idet,
		(-m[12]*s3 + m[13]*s1 - m[14]*s0) * idet,
		(m[8]*s3 - m[9]*s1 + m[10]*s0) * idet,
	}
}

// Lerp4 returns the component-wise linear interpolation between a and b at
// parameter t in [0,1]. Used on its own to interpolate a
// TransformedInstance's start/end transform at a given ray time (spec
// section 4.7).
func Lerp4(a, b Mat4, t float32) Mat4 {
	var out Mat4
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*t
	}
	return out
}
