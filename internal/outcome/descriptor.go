package outcome

import "strings"

// Attribute is one secondary result of a round, e.g. "A : Under 21(10)".
type Attribute struct {
	Name   string
	Result string
}

// Descriptor is the normalized outcome of a round. Feed strings are parsed
// into this shape exactly once; matching never touches the raw string again.
type Descriptor struct {
	Winner     string
	Attributes []Attribute
	Raw        string
}

func (d Descriptor) Empty() bool {
	return d.Winner == "" && len(d.Attributes) == 0
}

// Parse decodes a delimited feed descriptor: segments split on '#', the first
// being the primary winner and the rest "name : result" pairs. Malformed
// input never errors; whatever cannot be understood is dropped, degrading to
// a descriptor that matches nothing.
func Parse(raw string) Descriptor {
	d := Descriptor{Raw: raw}
	segments := strings.Split(raw, "#")
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if i == 0 {
			d.Winner = seg
			continue
		}
		name, result, found := strings.Cut(seg, ":")
		if !found {
			d.Attributes = append(d.Attributes, Attribute{Name: strings.TrimSpace(name)})
			continue
		}
		d.Attributes = append(d.Attributes, Attribute{
			Name:   strings.TrimSpace(name),
			Result: strings.TrimSpace(result),
		})
	}
	return d
}

// Encode renders the descriptor back into the delimited wire form. Locally
// generated outcomes use this as the stored round outcome, so feeds and local
// draws persist identically.
func (d Descriptor) Encode() string {
	var b strings.Builder
	b.WriteString(d.Winner)
	for _, a := range d.Attributes {
		b.WriteString("#")
		b.WriteString(a.Name)
		if a.Result != "" {
			b.WriteString(" : ")
			b.WriteString(a.Result)
		}
	}
	return b.String()
}
