package haproxy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/psantana5/haproxy-autoconf/internal/uid"
)

// Filename prefixes. HAProxy loads the inbox directory in lexical order, so
// the prefix decides load order. Both are three digits wide to keep lexical
// and numeric order identical.
const (
	FrontendPrefix = "100"
	BackendPrefix  = "200"
)

// FileExtension is the suffix of every managed artifact
const FileExtension = ".cfg"

// Kind distinguishes the two artifacts a process owns
type Kind string

const (
	KindFrontend Kind = "frontend"
	KindBackend  Kind = "backend"
)

// Prefix returns the load-order prefix for the kind
func (k Kind) Prefix() string {
	if k == KindBackend {
		return BackendPrefix
	}
	return FrontendPrefix
}

// FileName returns "<prefix>-<uid>.cfg" for the kind
func (k Kind) FileName(id uid.UID) string {
	return fmt.Sprintf("%s-%s%s", k.Prefix(), id, FileExtension)
}

// RenderBackend renders the backend block named after id that forwards to address.
func RenderBackend(id uid.UID, address string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend %s\n", id)
	b.WriteString("mode http\n")
	fmt.Fprintf(&b, "server %s %s\n", id, address)
	b.WriteString("http-request set-header X-Forwarded-Port %[dst_port]\n")
	b.WriteString("http-request add-header X-Forwarded-Proto https if { ssl_fc }\n")
	b.WriteString("\n")
	return b.String()
}

// RenderFrontend renders one SNI routing rule per domain, sorted and
// followed by a blank line. Repeated domains produce repeated rules.
func RenderFrontend(id uid.UID, domains []string) string {
	sorted := slices.Clone(domains)
	slices.Sort(sorted)

	var b strings.Builder
	for _, domain := range sorted {
		fmt.Fprintf(&b, "use_backend %s if { ssl_fc_sni_end -i %s }\n", id, domain)
	}
	b.WriteString("\n")
	return b.String()
}
