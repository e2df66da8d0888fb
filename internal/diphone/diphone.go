// Package diphone turns a phone sequence into the unit names that cover it.
package diphone

import "strings"

// Silence brackets every utterance.
const Silence = "pau"

// ID names one diphone unit: the transition from Front into Back.
type ID struct {
	Front string
	Back  string
}

// String serializes the ID as "front-back", the form unit files are named by.
func (id ID) String() string {
	return id.Front + "-" + id.Back
}

// Filename is the recording name the ID resolves to.
func (id ID) Filename() string {
	return id.String() + ".wav"
}

// Parse splits "front-back" into an ID.
func Parse(s string) (ID, bool) {
	front, back, ok := strings.Cut(s, "-")
	if !ok || front == "" || back == "" || strings.Contains(back, "-") {
		return ID{}, false
	}
	return ID{Front: front, Back: back}, true
}

// Sequence returns len(phones)+1 IDs: silence into the first phone, every
// adjacent pair, and the last phone back into silence. No phones means no
// units.
func Sequence(phones []string) []ID {
	if len(phones) == 0 {
		return nil
	}
	ids := make([]ID, 0, len(phones)+1)
	prev := Silence
	for _, ph := range phones {
		ids = append(ids, ID{Front: prev, Back: ph})
		prev = ph
	}
	return append(ids, ID{Front: prev, Back: Silence})
}

// Strings serializes ids in order.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
