package basin

// Pfafstetter codes are handled as opaque digit strings. Nothing here parses
// them as numbers: leading digits carry position, not magnitude.

// CodeWidth is the number of Pfafstetter digits carried by basins at level.
// HydroBASINS encodes one digit per level.
func CodeWidth(level int) int {
	return level
}

// IsDigits reports whether code is a non-empty string of ASCII digits.
func IsDigits(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// CommonPrefix returns the longest shared leading substring of a and b.
func CommonPrefix(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// Trail returns the digits of code that follow its common prefix with other.
//
//	Trail("987654321987", "987654321900") == "87"
//	Trail("987654321900", "987654321987") == "00"
func Trail(code, other string) string {
	return code[len(CommonPrefix(code, other)):]
}

// AllOddOrZero reports whether every digit of trail is odd or zero. Odd
// digits are mainstem interbasins, zero pads basins that are not subdivided
// further. An empty trail is vacuously true.
func AllOddOrZero(trail string) bool {
	for i := 0; i < len(trail); i++ {
		d := trail[i] - '0'
		if d != 0 && d%2 == 0 {
			return false
		}
	}
	return true
}

// ParentCode returns the code of the enclosing basin one level coarser.
func ParentCode(code string, level int) string {
	if level <= MinLevel {
		return ""
	}
	w := CodeWidth(level - 1)
	if len(code) < w {
		return code
	}
	return code[:w]
}
