package conversation

import "strings"

// Image turn triggers: the explicit command plus the natural-language prefix
// the mobile UI teaches users.
var imageIntentPrefixes = []string{"/image", "画一张"}

// IsImageIntent reports whether the input routes to the image-generation
// branch instead of the token stream.
func IsImageIntent(input string) bool {
	trimmed := strings.TrimSpace(input)
	for _, prefix := range imageIntentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
