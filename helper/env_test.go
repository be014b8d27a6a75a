package helper

import (
	"os"
	"testing"
)

func TestEnvMap(t *testing.T) {
	_ = os.Setenv("SPK_TEST_SET", "x")
	_ = os.Setenv("SPK_TEST_EMPTY", "")
	_ = os.Unsetenv("SPK_TEST_UNSET")
	defer os.Unsetenv("SPK_TEST_SET")
	defer os.Unsetenv("SPK_TEST_EMPTY")
	m := EnvMap("SPK_TEST_SET", "SPK_TEST_EMPTY", "SPK_TEST_UNSET")
	if len(m) != 1 || m["SPK_TEST_SET"] != "x" {
		t.Fatalf("unexpected env map %v", m)
	}
}
