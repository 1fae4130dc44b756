package jnicheck

// matchName reports whether name matches pattern, where '*' matches any run
// of characters, including '/' and spaces, and every other byte matches
// itself. An empty pattern matches nothing.
func matchName(pattern, name string) bool {
	if pattern == "" {
		return false
	}
	p, n := 0, 0
	star, mark := -1, 0
	for n < len(name) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, n
			p++
		case p < len(pattern) && pattern[p] == name[n]:
			p++
			n++
		case star >= 0:
			p = star + 1
			mark++
			n = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// Traced reports whether calls through site on s are traced.
func (c *Checker) Traced(s *Context, site string) bool {
	return matchName(c.cfg.TraceMethods, site) && matchName(c.cfg.TraceThreads, s.Name)
}

// TraceCall logs the call at trace level when the site matches the
// trace_methods pattern and the thread name matches trace_threads.
func (c *Checker) TraceCall(s *Context, site string) bool {
	if !c.Traced(s, site) {
		return false
	}
	c.logger.TracedCall(s, site)
	return true
}
