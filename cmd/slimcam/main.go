// slimcam continuously captures frames from a V4L2 camera, persisting every Kth frame to disk
// without ever stalling the acquisition of frames
package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

func main() {
	rootCmd, shutdownLogging := newRootCmd(viper.New())

	err := rootCmd.Execute()
	if serr := shutdownLogging(); serr != nil {
		fmt.Fprintf(os.Stderr, "failed to shut down logger: %s\n", serr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
