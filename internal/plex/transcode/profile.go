package transcode

import "strings"

// Attr is one key/value attribute of a profile directive.
type Attr struct {
	Key   string
	Value string
}

// Directive is one clause of the client-profile mini-language, e.g.
// add-transcode-target(type=videoProfile&container=mp4&...). The server
// matches clauses by their full attribute set; attribute order within a
// clause does not matter but the emitted order is kept stable anyway.
type Directive struct {
	Name  string
	Attrs []Attr
}

func (d Directive) String() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte('(')
	for i, a := range d.Attrs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value)
	}
	b.WriteByte(')')
	return b.String()
}

// Profile is an ordered sequence of directives. Order matters across
// directives: the server treats the first matching transcode target as
// preferred.
type Profile []Directive

// String serializes the profile to the wire format: clauses joined by "+".
// The result is passed as the X-Plex-Client-Profile-Extra query parameter,
// which takes care of percent-encoding.
func (p Profile) String() string {
	parts := make([]string, len(p))
	for i, d := range p {
		parts[i] = d.String()
	}
	return strings.Join(parts, "+")
}
