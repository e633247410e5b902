package traffic

import "testing"

func TestMessageTypeOf(t *testing.T) {
	cases := map[string]string{
		`POST /delta HTTP/1.1\r\n,X-Message-Type: DELTA\r\n,Content-Type: application/json\r\n`: "DELTA",
		`X-Message-Type: ANTI-ENTROPY\r\n`: "ANTI-ENTROPY",
		`X-Message-Type:HELLO`:             "HELLO",
		`Content-Type: application/json`:   "",
		``:                                 "",
	}
	for in, want := range cases {
		if got := messageTypeOf(in); got != want {
			t.Errorf("messageTypeOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathOf(t *testing.T) {
	cases := map[string]string{
		"http://10.0.1.0:8080/delta": "/delta",
		"http://10.0.1.0:8080/":      "/",
		"http://10.0.1.0:8080":       "/",
		"/state":                     "/state",
	}
	for in, want := range cases {
		if got := pathOf(in); got != want {
			t.Errorf("pathOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFieldTupleHelpers(t *testing.T) {
	parts := []string{"17", "342", "", "/delta"}
	if field(parts, 0) != "17" || field(parts, 2) != "" || field(parts, 9) != "" {
		t.Error("field index handling wrong")
	}
	if atoi("342") != 342 || atoi("") != 0 || atoi("x") != 0 {
		t.Error("atoi handling wrong")
	}
}
