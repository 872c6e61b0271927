package conversation_test

import (
	"testing"

	"github.com/yongyiq/Persona/internal/service/conversation"
)

func TestIsImageIntent(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"/image a red fox", true},
		{"画一张猫", true},
		{"  /image with leading spaces", true},
		{"hello", false},
		{"给我讲个故事", false},
		{"image without slash", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := conversation.IsImageIntent(tc.input); got != tc.want {
			t.Errorf("IsImageIntent(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
