package helper

import "os"

// EnvMap returns the values of the named environment variables that are set, keyed by variable name.
func EnvMap(names ...string) map[string]interface{} {
	retval := make(map[string]interface{})
	for _, n := range names {
		if v, ok := os.LookupEnv(n); ok && v != "" {
			retval[n] = v
		}
	}
	return retval
}
