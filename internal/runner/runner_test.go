package runner

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name         string
		timedOut     bool
		launchFailed bool
		exitCode     int
		want         string
	}{
		{"timeout", true, false, 0, "hang"},
		{"launch failure", false, true, -1, "error"},
		{"nonzero exit", false, false, 1, "crash"},
		{"clean exit", false, false, 0, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.timedOut, tc.launchFailed, tc.exitCode)
			if got.String() != tc.want {
				t.Errorf("classify(%v,%v,%d) = %s, want %s", tc.timedOut, tc.launchFailed, tc.exitCode, got, tc.want)
			}
		})
	}
}

func TestExitCodeFromErr(t *testing.T) {
	code, launchFailed := exitCodeFromErr(nil)
	if code != 0 || launchFailed {
		t.Errorf("nil error should report exit 0, launchFailed=false; got %d, %v", code, launchFailed)
	}
}
