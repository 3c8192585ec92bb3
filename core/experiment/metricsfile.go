package experiment

import (
	"bytes"
	"encoding/json"
	"math"
)

// encodeMetrics maps non-finite values to null, which encoding/json cannot
// otherwise represent.
func encodeMetrics(m map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = nil
			continue
		}
		v := v
		out[k] = &v
	}
	return out
}

// decodeMetrics reads a metrics mapping. null reads back as NaN. Files
// carrying bare NaN or Infinity literals are accepted too, and those
// literals read back as NaN as well.
func decodeMetrics(data []byte) (map[string]float64, error) {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		if err2 := json.Unmarshal(nullNonFinite(data), &raw); err2 != nil {
			return nil, err
		}
	}
	m := make(map[string]float64, len(raw))
	for k, v := range raw {
		if v == nil {
			m[k] = math.NaN()
			continue
		}
		m[k] = *v
	}
	return m, nil
}

var nonFinite = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// nullNonFinite replaces NaN, Infinity and -Infinity outside strings with null.
func nullNonFinite(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		b := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			out.WriteByte(b)
			continue
		}
		if b == '"' {
			inString = true
			out.WriteByte(b)
			continue
		}
		replaced := false
		for _, lit := range nonFinite {
			if bytes.HasPrefix(data[i:], lit) {
				out.WriteString("null")
				i += len(lit) - 1
				replaced = true
				break
			}
		}
		if !replaced {
			out.WriteByte(b)
		}
	}
	return out.Bytes()
}
