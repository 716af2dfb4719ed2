//go:build !unix

package audio

import "os"

// ffmpeg can only be killed here, which leaves a segment unfinalized
const interruptSupported = false

func interruptedExit(state *os.ProcessState) bool {
	return false
}
