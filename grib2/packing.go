package grib2

// DefaultBitsPerValue is the packing width used when a message does not ask
// for one.
const DefaultBitsPerValue = 24
