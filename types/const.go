package types

// floatCmpEpsilon is the tolerance used when comparing lengths/norms that
// should be treated as zero or one.
const floatCmpEpsilon float32 = 1e-6
