package fakerate

import (
	"fmt"
	"strconv"
	"strings"
)

// FloatArrayFlags is a flag value collecting floats from repeated or
// comma-separated arguments. The first Set replaces the default.
type FloatArrayFlags struct {
	Array   []float64
	beenSet bool
}

func (f *FloatArrayFlags) Set(valueStr string) error {
	if !f.beenSet {
		f.beenSet = true
		f.Array = nil
	}
	for _, s := range strings.Split(valueStr, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		f.Array = append(f.Array, value)
	}
	return nil
}

func (f *FloatArrayFlags) String() string {
	s := make([]string, len(f.Array))
	for i, v := range f.Array {
		s[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(s, ",") + "]"
}

func (f *FloatArrayFlags) Type() string { return "floats" }

// Changed reports whether Set was called.
func (f *FloatArrayFlags) Changed() bool { return f.beenSet }
