package main

import "strconv"

var siPrefixes = []string{"", "K", "M", "G", "T"}

// scale divides f by 1000 until it fits the largest SI prefix.
func scale(f float64) (float64, string) {
	i := 0
	for f >= 1e3 && i < len(siPrefixes)-1 {
		f /= 1e3
		i++
	}
	return f, siPrefixes[i]
}

// hbytes == "human bytes"
func hbytes(i uint64) string {
	if i < 1e3 {
		return strconv.FormatUint(i, 10) + "B"
	}
	f, prefix := scale(float64(i))
	return strconv.FormatFloat(f, 'f', 2, 64) + prefix + "B"
}

// hrate == "human rate"
func hrate(f float64) string {
	f, prefix := scale(f)
	return strconv.FormatFloat(f, 'f', 2, 64) + prefix
}
