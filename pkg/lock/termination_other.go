//go:build !unix

package lock

import "os"

func describeTermination(state *os.ProcessState) string {
	return state.String()
}
