// Package tier converts tier assignments into ordinal ratings.
package tier

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Label is one of the five canonical tiers.
type Label string

// Canonical tiers, highest first.
const (
	S Label = "S"
	A Label = "A"
	B Label = "B"
	C Label = "C"
	D Label = "D"
)

// Order lists the tiers from highest to lowest.
var Order = []Label{S, A, B, C, D}

var ratings = map[Label]int{S: 5, A: 4, B: 3, C: 2, D: 1}

// ErrMalformedPayload is returned by Decode when the payload is not a tier object.
var ErrMalformedPayload = errors.New("malformed tier payload")

// Rating returns the ordinal rating of a tier, 5 for S down to 1 for D.
func (l Label) Rating() (int, bool) {
	r, ok := ratings[l]
	return r, ok
}

// LabelFor returns the tier that produces rating r.
func LabelFor(r int) (Label, bool) {
	if r < 1 || r > len(Order) {
		return "", false
	}
	return Order[len(Order)-r], true
}

// Assignment maps tier labels to the image ids placed in them.
// Ids are kept as text so malformed entries survive decoding and are skipped at extraction.
type Assignment map[string][]string

// Decode parses a stored payload. Ids may be JSON strings or numbers.
// Keys other than the canonical tiers, and tiers whose value is not a list,
// are dropped rather than failing the whole payload.
func Decode(payload []byte) (Assignment, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Assignment{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := make(Assignment, len(Order))
	for _, label := range Order {
		value, ok := raw[string(label)]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			continue
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				ids = append(ids, s)
				continue
			}
			ids = append(ids, string(item))
		}
		out[string(label)] = ids
	}
	return out, nil
}

// Encode serializes an assignment back to its stored form.
func Encode(a Assignment) ([]byte, error) {
	return json.Marshal(a)
}

// Extract maps every identifiable image in the assignment to its rating.
// Unknown tiers are ignored and unparsable ids skipped. An image listed in
// more than one tier keeps its highest rating.
func Extract(a Assignment) map[int64]int {
	out := make(map[int64]int)
	for _, label := range Order {
		rating := ratings[label]
		for _, raw := range a[string(label)] {
			id, ok := parseID(raw)
			if !ok {
				continue
			}
			if _, seen := out[id]; seen {
				continue
			}
			out[id] = rating
		}
	}
	return out
}

// ExtractPayload decodes and extracts in one step; a malformed payload yields no ratings.
func ExtractPayload(payload []byte) map[int64]int {
	a, err := Decode(payload)
	if err != nil {
		return map[int64]int{}
	}
	return Extract(a)
}

func parseID(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	// integral JSON numbers such as 12.0
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
