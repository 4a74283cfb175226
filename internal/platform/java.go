package platform

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// versionPattern matches the quoted version in `java -version` output,
// e.g. `openjdk version "17.0.8" 2023-07-18` or `java version "1.8.0_392"`.
var versionPattern = regexp.MustCompile(`version "([^"]+)"`)

// bareVersionPattern matches an unquoted version string.
var bareVersionPattern = regexp.MustCompile(`^\d+(\.\d+)*([._+-][0-9A-Za-z.+-]*)?$`)

// JavaMajorVersion extracts the Java major version from `java -version`
// output or a bare version string. Legacy "1.x" versions map to x.
func JavaMajorVersion(output string) (int, bool) {
	verStr := strings.TrimSpace(output)
	if m := versionPattern.FindStringSubmatch(output); m != nil {
		verStr = m[1]
	} else if !bareVersionPattern.MatchString(verStr) {
		return 0, false
	}

	parts := strings.FieldsFunc(verStr, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	if major == 1 && len(parts) > 1 {
		major, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, false
		}
	}
	return major, true
}

// DetectJava runs `<javaCmd> -version` and returns the major version.
// It returns false when Java is missing or the output cannot be parsed.
func DetectJava(ctx context.Context, runner CommandRunner, javaCmd string) (int, bool) {
	out, err := runner.RunCombined(ctx, javaCmd, "-version")
	if err != nil && len(out) == 0 {
		return 0, false
	}
	return JavaMajorVersion(string(out))
}
