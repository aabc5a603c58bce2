// Package minified classifies JVM module names that look like the output of
// ProGuard/R8 obfuscation.
package minified

import "regexp"

// pattern matches package prefixes such as "a.", "ab.c.", "abc.d." or
// "abc.de.fg." that obfuscators produce when renaming packages.
var pattern = regexp.MustCompile(`^(\w|\w{2}\.\w{1,2}|\w{3}((\.\w)|(\.\w{2}){2}))(\.|$)`)

// IsMinified reports whether module looks obfuscated. The empty module is
// never minified.
func IsMinified(module string) bool {
	if module == "" {
		return false
	}
	return pattern.MatchString(module)
}

// AnyMinified reports whether at least one of the modules looks obfuscated.
func AnyMinified(modules []string) bool {
	for _, m := range modules {
		if IsMinified(m) {
			return true
		}
	}
	return false
}
