package fs

import "strings"

// Normalize turns p into a canonical absolute remote path. Empty segments
// and "." are dropped, ".." pops the previous segment and never climbs
// above root. The result always starts with "/" and has no trailing slash
// unless it is the root itself.
func Normalize(p string) string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}

func Join(base, name string) string {
	return Normalize(base + "/" + name)
}

// Resolve interprets p against cwd: absolute paths replace it, relative
// ones are joined onto it.
func Resolve(cwd, p string) string {
	if strings.HasPrefix(p, "/") {
		return Normalize(p)
	}
	return Join(cwd, p)
}

// Base returns the last segment of a remote path, or "download" when there is none.
func Base(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return "download"
	}
	return p
}
